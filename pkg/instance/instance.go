// Package instance names the running worker process in logs.
package instance

import "os"

const (
	envInstanceID = "KHATABILL_INSTANCE_ID"
	fallbackID    = "worker-0"
)

// GetID returns KHATABILL_INSTANCE_ID, falling back to the host name.
func GetID() string {
	if id := os.Getenv(envInstanceID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
