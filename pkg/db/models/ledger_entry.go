package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/enums"
)

// LedgerEntry records one movement of a customer's Udhaar balance. Entries
// are append-only; corrections are new offsetting entries.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ShopOwnerID uuid.UUID             `gorm:"column:shop_owner_id;type:uuid;not null;index:idx_ledger_entries_shop_customer,priority:1"`
	CustomerID  uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index:idx_ledger_entries_shop_customer,priority:2"`
	InvoiceID   *uuid.UUID            `gorm:"column:invoice_id;type:uuid"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:text;not null"`
	Amount      decimal.Decimal       `gorm:"column:amount;type:numeric;not null;check:chk_ledger_entries_amount,amount > 0"`
	EntryDate   time.Time             `gorm:"column:entry_date;not null"`
	Description string                `gorm:"column:description;not null;default:''"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
