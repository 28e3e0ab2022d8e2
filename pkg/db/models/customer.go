package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a buyer known to one shop.
type Customer struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShopOwnerID uuid.UUID `gorm:"column:shop_owner_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	Phone       string    `gorm:"column:phone;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
