package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/enums"
)

// Invoice is a posted GST bill. Rows are written once by the posting engine
// and never updated after commit.
type Invoice struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ShopOwnerID   uuid.UUID           `gorm:"column:shop_owner_id;type:uuid;not null;uniqueIndex:ux_invoices_shop_number,priority:1;index:idx_invoices_shop_issued,priority:1"`
	Number        string              `gorm:"column:number;not null;uniqueIndex:ux_invoices_shop_number,priority:2"`
	Sequence      int64               `gorm:"column:sequence;not null"`
	IssuedAt      time.Time           `gorm:"column:issued_at;not null;index:idx_invoices_shop_issued,priority:2"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:numeric;not null;default:0"`
	Discount      decimal.Decimal     `gorm:"column:discount;type:numeric;not null;default:0"`
	CGST          decimal.Decimal     `gorm:"column:cgst;type:numeric;not null;default:0"`
	SGST          decimal.Decimal     `gorm:"column:sgst;type:numeric;not null;default:0"`
	IGST          decimal.Decimal     `gorm:"column:igst;type:numeric;not null;default:0"`
	GrandTotal    decimal.Decimal     `gorm:"column:grand_total;type:numeric;not null;default:0"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`

	Items []InvoiceLineItem `gorm:"foreignKey:InvoiceID"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// InvoiceLineItem snapshots a sold item at posting time. Position preserves
// the order the cashier entered lines in.
type InvoiceLineItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID     uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index:idx_invoice_line_items_invoice,priority:1"`
	ShopOwnerID   uuid.UUID       `gorm:"column:shop_owner_id;type:uuid;not null;index"`
	Position      int             `gorm:"column:position;not null;index:idx_invoice_line_items_invoice,priority:2"`
	CatalogItemID *uuid.UUID      `gorm:"column:catalog_item_id;type:uuid"`
	Name          string          `gorm:"column:name;not null"`
	HSNCode       string          `gorm:"column:hsn_code;not null;default:''"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric;not null"`
	Quantity      int             `gorm:"column:quantity;not null;check:chk_invoice_line_items_quantity,quantity >= 1"`
	Discount      decimal.Decimal `gorm:"column:discount;type:numeric;not null;default:0"`
	GSTRate       decimal.Decimal `gorm:"column:gst_rate;type:numeric;not null"`
	CGST          decimal.Decimal `gorm:"column:cgst;type:numeric;not null"`
	SGST          decimal.Decimal `gorm:"column:sgst;type:numeric;not null"`
	IGST          decimal.Decimal `gorm:"column:igst;type:numeric;not null"`
	LineTotal     decimal.Decimal `gorm:"column:line_total;type:numeric;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`

	CatalogItem *CatalogItem `gorm:"foreignKey:CatalogItemID,ShopOwnerID;references:ID,ShopOwnerID" json:"-"`
}

func (l *InvoiceLineItem) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
