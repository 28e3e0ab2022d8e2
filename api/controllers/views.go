package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khatabill/khatabill-backend/internal/invoices"
	"github.com/khatabill/khatabill-backend/internal/tax"
	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/enums"
)

// Amounts are stored unrounded and rounded here, once, for display.

type invoiceLineView struct {
	Position      int             `json:"position"`
	CatalogItemID *uuid.UUID      `json:"catalog_item_id,omitempty"`
	Name          string          `json:"name"`
	HSNCode       string          `json:"hsn_code,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	Discount      decimal.Decimal `json:"discount"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	IGST          decimal.Decimal `json:"igst"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

type invoiceView struct {
	ID            uuid.UUID           `json:"id"`
	Number        string              `json:"number"`
	IssuedAt      time.Time           `json:"issued_at"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	CustomerName  string              `json:"customer_name,omitempty"`
	CustomerPhone string              `json:"customer_phone,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	CGST          decimal.Decimal     `json:"cgst"`
	SGST          decimal.Decimal     `json:"sgst"`
	IGST          decimal.Decimal     `json:"igst"`
	GrandTotal    decimal.Decimal     `json:"grand_total"`
	Items         []invoiceLineView   `json:"items,omitempty"`
}

func newInvoiceView(inv *models.Invoice, places int32) invoiceView {
	view := invoiceView{
		ID:            inv.ID,
		Number:        inv.Number,
		IssuedAt:      inv.IssuedAt,
		CustomerID:    inv.CustomerID,
		PaymentMethod: inv.PaymentMethod,
		Subtotal:      tax.Round(inv.Subtotal, places),
		Discount:      tax.Round(inv.Discount, places),
		CGST:          tax.Round(inv.CGST, places),
		SGST:          tax.Round(inv.SGST, places),
		IGST:          tax.Round(inv.IGST, places),
		GrandTotal:    tax.Round(inv.GrandTotal, places),
	}
	for _, item := range inv.Items {
		view.Items = append(view.Items, invoiceLineView{
			Position:      item.Position,
			CatalogItemID: item.CatalogItemID,
			Name:          item.Name,
			HSNCode:       item.HSNCode,
			UnitPrice:     tax.Round(item.UnitPrice, places),
			Quantity:      item.Quantity,
			Discount:      tax.Round(item.Discount, places),
			GSTRate:       item.GSTRate,
			CGST:          tax.Round(item.CGST, places),
			SGST:          tax.Round(item.SGST, places),
			IGST:          tax.Round(item.IGST, places),
			LineTotal:     tax.Round(item.LineTotal, places),
		})
	}
	return view
}

func newInvoiceDetailView(detail *invoices.InvoiceView, places int32) invoiceView {
	view := newInvoiceView(&detail.Invoice, places)
	view.CustomerName = detail.CustomerName
	view.CustomerPhone = detail.CustomerPhone
	return view
}

type ledgerEntryView struct {
	ID          uuid.UUID             `json:"id"`
	CustomerID  uuid.UUID             `json:"customer_id"`
	InvoiceID   *uuid.UUID            `json:"invoice_id,omitempty"`
	Type        enums.LedgerEntryType `json:"type"`
	Amount      decimal.Decimal       `json:"amount"`
	EntryDate   time.Time             `json:"entry_date"`
	Description string                `json:"description,omitempty"`
}

func newLedgerEntryView(entry models.LedgerEntry, places int32) ledgerEntryView {
	return ledgerEntryView{
		ID:          entry.ID,
		CustomerID:  entry.CustomerID,
		InvoiceID:   entry.InvoiceID,
		Type:        entry.Type,
		Amount:      tax.Round(entry.Amount, places),
		EntryDate:   entry.EntryDate,
		Description: entry.Description,
	}
}

type catalogItemView struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	HSNCode           string          `json:"hsn_code,omitempty"`
	Price             decimal.Decimal `json:"price"`
	GSTRate           decimal.Decimal `json:"gst_rate"`
	StockQty          int             `json:"stock_qty"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	LowStock          bool            `json:"low_stock"`
}

func newCatalogItemView(item *models.CatalogItem) catalogItemView {
	return catalogItemView{
		ID:                item.ID,
		Name:              item.Name,
		HSNCode:           item.HSNCode,
		Price:             item.Price,
		GSTRate:           item.GSTRate,
		StockQty:          item.StockQty,
		LowStockThreshold: item.LowStockThreshold,
		LowStock:          item.StockQty <= item.LowStockThreshold,
	}
}

type customerView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newCustomerView(c *models.Customer) customerView {
	return customerView{ID: c.ID, Name: c.Name, Phone: c.Phone, CreatedAt: c.CreatedAt}
}
