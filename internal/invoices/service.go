package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/internal/customers"
	"github.com/khatabill/khatabill-backend/pkg/db/models"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
	"github.com/khatabill/khatabill-backend/pkg/pagination"
)

// Service is the read side used by export and listing callers.
type Service interface {
	GetByNumber(ctx context.Context, shopOwnerID uuid.UUID, number string) (*InvoiceView, error)
	List(ctx context.Context, shopOwnerID uuid.UUID, params pagination.Params) (*ListResult, error)
}

// InvoiceView is a posted invoice with the customer fields renderers need.
type InvoiceView struct {
	Invoice       models.Invoice
	CustomerName  string
	CustomerPhone string
}

// ListResult is one page of invoice headers.
type ListResult struct {
	Invoices   []models.Invoice
	NextCursor string
}

type service struct {
	repo      Repository
	customers customers.Repository
	tx        txRunner
}

// NewService wires the invoice read service.
func NewService(repo Repository, customerRepo customers.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if customerRepo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, customers: customerRepo, tx: tx}, nil
}

func (s *service) GetByNumber(ctx context.Context, shopOwnerID uuid.UUID, number string) (*InvoiceView, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number is required")
	}

	var view *InvoiceView
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		invoice, err := s.repo.WithTx(tx).FindByNumber(ctx, shopOwnerID, number)
		if err != nil {
			return err
		}
		customer, err := s.customers.WithTx(tx).FindByID(ctx, shopOwnerID, invoice.CustomerID)
		if err != nil {
			return err
		}
		view = &InvoiceView{Invoice: *invoice, CustomerName: customer.Name, CustomerPhone: customer.Phone}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("invoice %s not found", number))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return view, nil
}

func (s *service) List(ctx context.Context, shopOwnerID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	result := &ListResult{}
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		rows, next, err := s.repo.WithTx(tx).List(ctx, shopOwnerID, params)
		if err != nil {
			return err
		}
		result.Invoices = rows
		result.NextCursor = next
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return result, nil
}
