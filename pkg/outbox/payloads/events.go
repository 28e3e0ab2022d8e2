package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/khatabill/khatabill-backend/pkg/enums"
)

// InvoicePostedEvent carries what the notification collaborator needs to
// build a share link for a freshly posted bill. Amounts are presentation
// strings rounded to two places.
type InvoicePostedEvent struct {
	InvoiceID     uuid.UUID           `json:"invoice_id"`
	Number        string              `json:"number"`
	IssuedAt      time.Time           `json:"issued_at"`
	GrandTotal    string              `json:"grand_total"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone,omitempty"`
}

// PaymentRecordedEvent is emitted when a customer pays back Udhaar.
type PaymentRecordedEvent struct {
	EntryID    uuid.UUID `json:"entry_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Amount     string    `json:"amount"`
	EntryDate  time.Time `json:"entry_date"`
}
