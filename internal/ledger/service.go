package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/internal/customers"
	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/enums"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
	"github.com/khatabill/khatabill-backend/pkg/outbox"
	"github.com/khatabill/khatabill-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTenantTx(ctx context.Context, shopOwnerID uuid.UUID, fn func(tx *gorm.DB) error) error
}

type customerLoader interface {
	WithTx(tx *gorm.DB) customers.Repository
}

// Service records Udhaar movements and answers balance queries.
type Service interface {
	RecordTransaction(ctx context.Context, shopOwnerID uuid.UUID, input RecordInput) (*models.LedgerEntry, error)
	RecordTx(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error
	RecordPayment(ctx context.Context, shopOwnerID uuid.UUID, input PaymentInput) (*models.LedgerEntry, error)
	GetBalance(ctx context.Context, shopOwnerID, customerID uuid.UUID) (decimal.Decimal, error)
	GetHistory(ctx context.Context, shopOwnerID, customerID uuid.UUID) ([]models.LedgerEntry, error)
	GetAllBalances(ctx context.Context, shopOwnerID uuid.UUID) ([]CustomerBalance, error)
}

// RecordInput is a raw ledger entry.
type RecordInput struct {
	CustomerID  uuid.UUID
	InvoiceID   *uuid.UUID
	Type        enums.LedgerEntryType
	Amount      decimal.Decimal
	EntryDate   time.Time
	Description string
}

// PaymentInput records a customer paying back part of their balance.
type PaymentInput struct {
	CustomerID  uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo      Repository
	Customers customerLoader
	TxRunner  txRunner
	Outbox    outbox.Emitter
	Now       func() time.Time
}

type service struct {
	repo      Repository
	customers customerLoader
	tx        txRunner
	outbox    outbox.Emitter
	now       func() time.Time
}

// NewService wires a ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		customers: params.Customers,
		tx:        params.TxRunner,
		outbox:    params.Outbox,
		now:       now,
	}, nil
}

// ValidateEntry checks the only rules a ledger insert enforces.
func ValidateEntry(entry *models.LedgerEntry) error {
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "ledger entry required")
	}
	if entry.ShopOwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shop owner id required")
	}
	if entry.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !entry.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", entry.Type))
	}
	if !entry.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "ledger amount must be positive")
	}
	return nil
}

func (s *service) RecordTransaction(ctx context.Context, shopOwnerID uuid.UUID, input RecordInput) (*models.LedgerEntry, error) {
	entry := s.entryFrom(shopOwnerID, input)
	if err := ValidateEntry(entry); err != nil {
		return nil, err
	}
	if err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, entry)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger entry")
	}
	return entry, nil
}

// RecordTx inserts entry inside a transaction owned by the caller.
func (s *service) RecordTx(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if entry != nil && entry.EntryDate.IsZero() {
		entry.EntryDate = s.now().UTC()
	}
	if err := ValidateEntry(entry); err != nil {
		return err
	}
	return s.repo.WithTx(tx).Create(ctx, entry)
}

func (s *service) RecordPayment(ctx context.Context, shopOwnerID uuid.UUID, input PaymentInput) (*models.LedgerEntry, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = "Payment received"
	}
	entry := s.entryFrom(shopOwnerID, RecordInput{
		CustomerID:  input.CustomerID,
		Type:        enums.LedgerEntryCredit,
		Amount:      input.Amount,
		Description: description,
	})
	if err := ValidateEntry(entry); err != nil {
		return nil, err
	}

	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		if _, err := s.customers.WithTx(tx).FindByID(ctx, shopOwnerID, input.CustomerID); err != nil {
			return customers.MapLookupErr(err, input.CustomerID)
		}
		if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   entry.ID,
			ShopOwnerID:   shopOwnerID,
			OccurredAt:    entry.EntryDate,
			Data: payloads.PaymentRecordedEvent{
				EntryID:    entry.ID,
				CustomerID: entry.CustomerID,
				Amount:     entry.Amount.StringFixed(2),
				EntryDate:  entry.EntryDate,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	return entry, nil
}

func (s *service) GetBalance(ctx context.Context, shopOwnerID, customerID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		var err error
		balance, err = s.repo.WithTx(tx).Balance(ctx, shopOwnerID, customerID)
		return err
	})
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	return balance, nil
}

func (s *service) GetHistory(ctx context.Context, shopOwnerID, customerID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		var err error
		entries, err = s.repo.WithTx(tx).History(ctx, shopOwnerID, customerID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger history")
	}
	return entries, nil
}

func (s *service) GetAllBalances(ctx context.Context, shopOwnerID uuid.UUID) ([]CustomerBalance, error) {
	var rows []CustomerBalance
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		var err error
		rows, err = s.repo.WithTx(tx).Balances(ctx, shopOwnerID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balances")
	}
	return rows, nil
}

func (s *service) entryFrom(shopOwnerID uuid.UUID, input RecordInput) *models.LedgerEntry {
	entryDate := input.EntryDate
	if entryDate.IsZero() {
		entryDate = s.now()
	}
	return &models.LedgerEntry{
		ShopOwnerID: shopOwnerID,
		CustomerID:  input.CustomerID,
		InvoiceID:   input.InvoiceID,
		Type:        input.Type,
		Amount:      input.Amount,
		EntryDate:   entryDate.UTC(),
		Description: strings.TrimSpace(input.Description),
	}
}
