package invoices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/pagination"
)

// Repository persists invoices and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateHeader(ctx context.Context, invoice *models.Invoice) error
	CreateLine(ctx context.Context, line *models.InvoiceLineItem) error
	FindByID(ctx context.Context, shopOwnerID, invoiceID uuid.UUID) (*models.Invoice, error)
	FindByNumber(ctx context.Context, shopOwnerID uuid.UUID, number string) (*models.Invoice, error)
	List(ctx context.Context, shopOwnerID uuid.UUID, params pagination.Params) ([]models.Invoice, string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateHeader inserts only the header row; lines are inserted one by one.
func (r *repository) CreateHeader(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(invoice).Error
}

func (r *repository) CreateLine(ctx context.Context, line *models.InvoiceLineItem) error {
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *repository) FindByID(ctx context.Context, shopOwnerID, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.withItems(ctx).
		Where("shop_owner_id = ? AND id = ?", shopOwnerID, invoiceID).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByNumber(ctx context.Context, shopOwnerID uuid.UUID, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.withItems(ctx).
		Where("shop_owner_id = ? AND number = ?", shopOwnerID, number).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns headers newest first. The cursor is the last sequence seen.
func (r *repository) List(ctx context.Context, shopOwnerID uuid.UUID, params pagination.Params) ([]models.Invoice, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Where("shop_owner_id = ?", shopOwnerID)
	if cursor != nil {
		query = query.Where("sequence < ?", cursor.Position)
	}

	var rows []models.Invoice
	if err := query.
		Order("sequence DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		next = pagination.EncodeCursor(pagination.Cursor{Position: rows[len(rows)-1].Sequence})
	}
	return rows, next, nil
}

func (r *repository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}
