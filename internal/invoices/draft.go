package invoices

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khatabill/khatabill-backend/internal/tax"
	"github.com/khatabill/khatabill-backend/pkg/enums"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

// Draft is an unposted sale as submitted by the cashier.
type Draft struct {
	CustomerID    uuid.UUID
	PaymentMethod enums.PaymentMethod
	Discount      decimal.Decimal
	Lines         []DraftLine
	// Claimed carries totals the client computed. They are compared and
	// logged but never persisted.
	Claimed *ClaimedTotals
}

// DraftLine is one line of a draft. Name, price, GST rate and HSN code are
// the catalog snapshot taken when the line was selected.
type DraftLine struct {
	CatalogItemID *uuid.UUID
	Name          string
	HSNCode       string
	UnitPrice     decimal.Decimal
	Quantity      int
	Discount      decimal.Decimal
	GSTRate       decimal.Decimal
}

// ClaimedTotals are client-side totals.
type ClaimedTotals struct {
	Subtotal   *decimal.Decimal
	GrandTotal *decimal.Decimal
}

type computedDraft struct {
	lines  []tax.Line
	totals tax.Totals
}

// compute validates d and derives every amount from its lines. It does no I/O,
// so all caller-fixable problems surface before a transaction opens.
func (d Draft) compute() (computedDraft, error) {
	if d.CustomerID == uuid.Nil {
		return computedDraft{}, pkgerrors.New(pkgerrors.CodeValidation, "customer is required")
	}
	if !d.PaymentMethod.IsValid() {
		return computedDraft{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", d.PaymentMethod))
	}
	if len(d.Lines) == 0 {
		return computedDraft{}, pkgerrors.New(pkgerrors.CodeValidation, "invoice must have at least one line")
	}
	if d.Discount.IsNegative() {
		return computedDraft{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}

	lines := make([]tax.Line, len(d.Lines))
	discount := d.Discount
	for i, line := range d.Lines {
		if err := line.validate(i); err != nil {
			return computedDraft{}, err
		}
		computed, err := tax.ComputeLine(line.UnitPrice, line.Quantity, line.GSTRate)
		if err != nil {
			return computedDraft{}, err
		}
		if line.Discount.GreaterThan(computed.Base) {
			return computedDraft{}, lineErr(i, "discount exceeds line amount")
		}
		lines[i] = computed
		discount = discount.Add(line.Discount)
	}

	totals := tax.Sum(lines, discount)
	if totals.GrandTotal.IsNegative() {
		return computedDraft{}, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds invoice total")
	}
	if d.PaymentMethod.Deferred() && !totals.GrandTotal.IsPositive() {
		return computedDraft{}, pkgerrors.New(pkgerrors.CodeValidation, "credit invoices must have a positive total")
	}
	return computedDraft{lines: lines, totals: totals}, nil
}

func (l DraftLine) validate(i int) error {
	if strings.TrimSpace(l.Name) == "" {
		return lineErr(i, "item name is required")
	}
	if l.Quantity < 1 {
		return lineErr(i, "quantity must be at least 1")
	}
	if l.UnitPrice.IsNegative() {
		return lineErr(i, "unit price must not be negative")
	}
	if l.GSTRate.IsNegative() {
		return lineErr(i, "gst rate must not be negative")
	}
	if l.Discount.IsNegative() {
		return lineErr(i, "discount must not be negative")
	}
	if l.CatalogItemID != nil && *l.CatalogItemID == uuid.Nil {
		return lineErr(i, "catalog item id is invalid")
	}
	return nil
}

func lineErr(i int, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: %s", i+1, msg)).
		WithDetails(map[string]int{"line": i + 1})
}
