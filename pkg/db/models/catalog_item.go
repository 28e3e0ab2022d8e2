package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogItem is a sellable product with its embedded stock record.
type CatalogItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey;uniqueIndex:ux_catalog_items_id_shop,priority:1"`
	ShopOwnerID       uuid.UUID       `gorm:"column:shop_owner_id;type:uuid;not null;index;uniqueIndex:ux_catalog_items_id_shop,priority:2"`
	Name              string          `gorm:"column:name;not null"`
	HSNCode           string          `gorm:"column:hsn_code;not null;default:''"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric;not null;default:0"`
	GSTRate           decimal.Decimal `gorm:"column:gst_rate;type:numeric;not null;default:0"`
	StockQty          int             `gorm:"column:stock_qty;not null;default:0;check:chk_catalog_items_stock_qty,stock_qty >= 0"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null;default:0"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CatalogItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
