// Package tax computes GST splits for invoice lines. Every sale is treated as
// intra-state: tax is split evenly into CGST and SGST and IGST is always zero.
// Amounts keep full decimal precision; rounding happens only in Round.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

var half = decimal.New(5, -1)

// Line is the tax breakdown of one invoice line.
type Line struct {
	Base      decimal.Decimal
	CGST      decimal.Decimal
	SGST      decimal.Decimal
	IGST      decimal.Decimal
	LineTotal decimal.Decimal
}

// TotalTax returns CGST + SGST + IGST.
func (l Line) TotalTax() decimal.Decimal {
	return l.CGST.Add(l.SGST).Add(l.IGST)
}

// ComputeLine returns the split for unitPrice × quantity at gstRatePercent.
func ComputeLine(unitPrice decimal.Decimal, quantity int, gstRatePercent decimal.Decimal) (Line, error) {
	if unitPrice.IsNegative() {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unit price must not be negative (got %s)", unitPrice))
	}
	if quantity < 0 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must not be negative (got %d)", quantity))
	}
	if gstRatePercent.IsNegative() {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("gst rate must not be negative (got %s)", gstRatePercent))
	}

	base := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	// Shift and multiplying by 0.5 are exact, unlike Div.
	totalTax := base.Mul(gstRatePercent).Shift(-2)
	split := totalTax.Mul(half)

	return Line{
		Base:      base,
		CGST:      split,
		SGST:      split,
		IGST:      decimal.Zero,
		LineTotal: base.Add(totalTax),
	}, nil
}

// Totals is the invoice-level aggregate of its lines.
type Totals struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	CGST       decimal.Decimal
	SGST       decimal.Decimal
	IGST       decimal.Decimal
	GrandTotal decimal.Decimal
}

// Sum adds lines elementwise and applies discount:
// grand total = subtotal - discount + CGST + SGST + IGST.
func Sum(lines []Line, discount decimal.Decimal) Totals {
	totals := Totals{
		Subtotal: decimal.Zero,
		Discount: discount,
		CGST:     decimal.Zero,
		SGST:     decimal.Zero,
		IGST:     decimal.Zero,
	}
	for _, line := range lines {
		totals.Subtotal = totals.Subtotal.Add(line.Base)
		totals.CGST = totals.CGST.Add(line.CGST)
		totals.SGST = totals.SGST.Add(line.SGST)
		totals.IGST = totals.IGST.Add(line.IGST)
	}
	totals.GrandTotal = totals.Subtotal.Sub(discount).Add(totals.CGST).Add(totals.SGST).Add(totals.IGST)
	return totals
}

// Round rounds an amount for presentation, half away from zero.
func Round(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.Round(places)
}
