package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db/models"
)

// Repository persists catalog items and their stock counts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.CatalogItem) error
	FindByID(ctx context.Context, shopOwnerID, itemID uuid.UUID) (*models.CatalogItem, error)
	DebitStock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (bool, error)
	AddStock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (bool, error)
	SetStock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (bool, error)
	ListLowStock(ctx context.Context, shopOwnerID uuid.UUID) ([]models.CatalogItem, error)
	CountLowStock(ctx context.Context, shopOwnerID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.CatalogItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID returns gorm.ErrRecordNotFound when the item is absent or owned by
// another shop.
func (r *repository) FindByID(ctx context.Context, shopOwnerID, itemID uuid.UUID) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := r.db.WithContext(ctx).
		Where("shop_owner_id = ? AND id = ?", shopOwnerID, itemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DebitStock decrements stock in a single conditional statement. It reports
// false when the item is missing, foreign, or short on stock.
func (r *repository) DebitStock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, errors.New("debit quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.CatalogItem{}).
		Where("shop_owner_id = ? AND id = ? AND stock_qty >= ?", shopOwnerID, itemID, qty).
		UpdateColumn("stock_qty", gorm.Expr("stock_qty - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AddStock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, errors.New("restock quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.CatalogItem{}).
		Where("shop_owner_id = ? AND id = ?", shopOwnerID, itemID).
		UpdateColumn("stock_qty", gorm.Expr("stock_qty + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetStock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (bool, error) {
	if qty < 0 {
		return false, errors.New("stock quantity must not be negative")
	}
	res := r.db.WithContext(ctx).
		Model(&models.CatalogItem{}).
		Where("shop_owner_id = ? AND id = ?", shopOwnerID, itemID).
		UpdateColumn("stock_qty", qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListLowStock(ctx context.Context, shopOwnerID uuid.UUID) ([]models.CatalogItem, error) {
	var items []models.CatalogItem
	if err := r.db.WithContext(ctx).
		Where("shop_owner_id = ? AND stock_qty <= low_stock_threshold", shopOwnerID).
		Order("stock_qty ASC").
		Order("name ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CountLowStock(ctx context.Context, shopOwnerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CatalogItem{}).
		Where("shop_owner_id = ? AND stock_qty <= low_stock_threshold", shopOwnerID).
		Count(&count).Error
	return count, err
}
