package models

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceSequence is the per-shop bill number counter.
type InvoiceSequence struct {
	ShopOwnerID uuid.UUID `gorm:"column:shop_owner_id;type:uuid;primaryKey"`
	LastValue   int64     `gorm:"column:last_value;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}
