package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/khatabill/khatabill-backend/pkg/db/models"
)

// Repository reads and writes subscription state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, shopOwnerID uuid.UUID) (*models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription) error
	CountInvoices(ctx context.Context, shopOwnerID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Find returns nil without error when the shop never had a plan row.
func (r *repository) Find(ctx context.Context, shopOwnerID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("shop_owner_id = ?", shopOwnerID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Upsert(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tier", "expires_at", "updated_at"}),
		}).
		Create(sub).Error
}

func (r *repository) CountInvoices(ctx context.Context, shopOwnerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("shop_owner_id = ?", shopOwnerID).
		Count(&count).Error
	return count, err
}
