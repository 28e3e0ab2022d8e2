// Package types holds the JSON envelopes every /api/v1 handler writes.
package types

// SuccessEnvelope wraps a 2xx payload as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the caller-facing error body. Code is one of the stable
// pkg/errors codes; Details carries structured context such as a stock
// shortage and is omitted when empty.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps a non-2xx payload as {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
