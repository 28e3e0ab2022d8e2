package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db/models"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

type txRunner interface {
	WithTenantTx(ctx context.Context, shopOwnerID uuid.UUID, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog stock administration.
type Service interface {
	CreateItem(ctx context.Context, shopOwnerID uuid.UUID, input CreateItemInput) (*models.CatalogItem, error)
	GetItem(ctx context.Context, shopOwnerID, itemID uuid.UUID) (*models.CatalogItem, error)
	SetStock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (*models.CatalogItem, error)
	Restock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (*models.CatalogItem, error)
	ListLowStock(ctx context.Context, shopOwnerID uuid.UUID) ([]models.CatalogItem, error)
}

// CreateItemInput describes a new catalog item and its opening stock.
type CreateItemInput struct {
	Name              string
	HSNCode           string
	Price             decimal.Decimal
	GSTRate           decimal.Decimal
	StockQty          int
	LowStockThreshold int
}

// Shortage is attached as details to INSUFFICIENT_STOCK errors.
type Shortage struct {
	ItemID    uuid.UUID `json:"item_id"`
	ItemName  string    `json:"item_name"`
	Available int       `json:"available"`
	Requested int       `json:"requested"`
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires the inventory service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) CreateItem(ctx context.Context, shopOwnerID uuid.UUID, input CreateItemInput) (*models.CatalogItem, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if input.GSTRate.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gst rate must not be negative")
	}
	if input.StockQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock quantity must not be negative")
	}
	if input.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low stock threshold must not be negative")
	}

	item := &models.CatalogItem{
		ShopOwnerID:       shopOwnerID,
		Name:              name,
		HSNCode:           strings.TrimSpace(input.HSNCode),
		Price:             input.Price,
		GSTRate:           input.GSTRate,
		StockQty:          input.StockQty,
		LowStockThreshold: input.LowStockThreshold,
	}
	if err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, item)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create catalog item")
	}
	return item, nil
}

func (s *service) GetItem(ctx context.Context, shopOwnerID, itemID uuid.UUID) (*models.CatalogItem, error) {
	var item *models.CatalogItem
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		var err error
		item, err = s.repo.WithTx(tx).FindByID(ctx, shopOwnerID, itemID)
		return err
	})
	if err != nil {
		return nil, mapItemErr(err, itemID)
	}
	return item, nil
}

func (s *service) SetStock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (*models.CatalogItem, error) {
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock quantity must not be negative")
	}
	return s.adjust(ctx, shopOwnerID, itemID, func(repo Repository) (bool, error) {
		return repo.SetStock(ctx, shopOwnerID, itemID, qty)
	})
}

func (s *service) Restock(ctx context.Context, shopOwnerID, itemID uuid.UUID, qty int) (*models.CatalogItem, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}
	return s.adjust(ctx, shopOwnerID, itemID, func(repo Repository) (bool, error) {
		return repo.AddStock(ctx, shopOwnerID, itemID, qty)
	})
}

func (s *service) adjust(ctx context.Context, shopOwnerID, itemID uuid.UUID, apply func(Repository) (bool, error)) (*models.CatalogItem, error) {
	var item *models.CatalogItem
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := apply(repo)
		if err != nil {
			return err
		}
		if !ok {
			return gorm.ErrRecordNotFound
		}
		item, err = repo.FindByID(ctx, shopOwnerID, itemID)
		return err
	})
	if err != nil {
		return nil, mapItemErr(err, itemID)
	}
	return item, nil
}

func (s *service) ListLowStock(ctx context.Context, shopOwnerID uuid.UUID) ([]models.CatalogItem, error) {
	var items []models.CatalogItem
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		var err error
		items, err = s.repo.WithTx(tx).ListLowStock(ctx, shopOwnerID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock items")
	}
	return items, nil
}

// ExplainDebitFailure builds the error for a DebitStock call that affected no
// rows. The read only shapes the message; it never changes the outcome, and
// under concurrent writers it may show a slightly newer quantity.
func ExplainDebitFailure(ctx context.Context, repo Repository, shopOwnerID, itemID uuid.UUID, requested int) error {
	item, err := repo.FindByID(ctx, shopOwnerID, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("catalog item %s not found", itemID))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock after failed debit")
	}
	return pkgerrors.New(
		pkgerrors.CodeInsufficient,
		fmt.Sprintf("insufficient stock for %s: available %d, requested %d", item.Name, item.StockQty, requested),
	).WithDetails(Shortage{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Available: item.StockQty,
		Requested: requested,
	})
}

func mapItemErr(err error, itemID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("catalog item %s not found", itemID))
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog item lookup")
}
