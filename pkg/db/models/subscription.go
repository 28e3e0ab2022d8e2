package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/khatabill/khatabill-backend/pkg/enums"
)

// Subscription stores the plan a shop owner is on. The invoice count is never
// stored here; it is derived from the invoices table.
type Subscription struct {
	ShopOwnerID uuid.UUID              `gorm:"column:shop_owner_id;type:uuid;primaryKey"`
	Tier        enums.SubscriptionTier `gorm:"column:tier;type:text;not null;default:'FREE'"`
	ExpiresAt   *time.Time             `gorm:"column:expires_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
