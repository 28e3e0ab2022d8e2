package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db/models"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

type txRunner interface {
	WithTenantTx(ctx context.Context, shopOwnerID uuid.UUID, fn func(tx *gorm.DB) error) error
}

// Service manages a shop's customers.
type Service interface {
	Create(ctx context.Context, shopOwnerID uuid.UUID, input CreateInput) (*models.Customer, error)
	Get(ctx context.Context, shopOwnerID, customerID uuid.UUID) (*models.Customer, error)
}

// CreateInput captures a new customer.
type CreateInput struct {
	Name  string
	Phone string
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires the customer service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, shopOwnerID uuid.UUID, input CreateInput) (*models.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	customer := &models.Customer{
		ShopOwnerID: shopOwnerID,
		Name:        name,
		Phone:       strings.TrimSpace(input.Phone),
	}
	if err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, customer)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}
	return customer, nil
}

func (s *service) Get(ctx context.Context, shopOwnerID, customerID uuid.UUID) (*models.Customer, error) {
	var customer *models.Customer
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		var err error
		customer, err = s.repo.WithTx(tx).FindByID(ctx, shopOwnerID, customerID)
		return err
	})
	if err != nil {
		return nil, MapLookupErr(err, customerID)
	}
	return customer, nil
}

// MapLookupErr turns a FindByID failure into a typed error. A customer owned
// by another shop is reported exactly like a missing one.
func MapLookupErr(err error, customerID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("customer %s not found", customerID))
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "customer lookup")
}
