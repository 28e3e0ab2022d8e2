package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/internal/customers"
	"github.com/khatabill/khatabill-backend/internal/inventory"
	"github.com/khatabill/khatabill-backend/internal/numbering"
	"github.com/khatabill/khatabill-backend/internal/subscriptions"
	"github.com/khatabill/khatabill-backend/pkg/db"
	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/enums"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
	"github.com/khatabill/khatabill-backend/pkg/logger"
	"github.com/khatabill/khatabill-backend/pkg/metrics"
	"github.com/khatabill/khatabill-backend/pkg/outbox"
	"github.com/khatabill/khatabill-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTenantTx(ctx context.Context, shopOwnerID uuid.UUID, fn func(tx *gorm.DB) error) error
}

type numberAuthority interface {
	Next(ctx context.Context, tx *gorm.DB, shopOwnerID uuid.UUID, issuedAt time.Time) (numbering.Assignment, error)
}

type quotaGate interface {
	CheckInvoiceQuota(ctx context.Context, shopOwnerID uuid.UUID) (subscriptions.Decision, error)
	EnforceTx(ctx context.Context, tx *gorm.DB, shopOwnerID uuid.UUID, slot int64) error
}

type ledgerRecorder interface {
	RecordTx(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error
}

// EngineParams groups the posting engine's collaborators.
type EngineParams struct {
	TxRunner  txRunner
	Invoices  Repository
	Customers customers.Repository
	Inventory inventory.Repository
	Numbering numberAuthority
	Gate      quotaGate
	Ledger    ledgerRecorder
	Outbox    outbox.Emitter
	Metrics   *metrics.InvoiceMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Engine posts invoices. One Post call is one all-or-nothing unit of work.
type Engine struct {
	tx        txRunner
	invoices  Repository
	customers customers.Repository
	inventory inventory.Repository
	numbering numberAuthority
	gate      quotaGate
	ledger    ledgerRecorder
	outbox    outbox.Emitter
	metrics   *metrics.InvoiceMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewEngine validates and wires the posting engine.
func NewEngine(p EngineParams) (*Engine, error) {
	switch {
	case p.TxRunner == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Invoices == nil:
		return nil, fmt.Errorf("invoice repository required")
	case p.Customers == nil:
		return nil, fmt.Errorf("customer repository required")
	case p.Inventory == nil:
		return nil, fmt.Errorf("inventory repository required")
	case p.Numbering == nil:
		return nil, fmt.Errorf("number authority required")
	case p.Gate == nil:
		return nil, fmt.Errorf("subscription gate required")
	case p.Ledger == nil:
		return nil, fmt.Errorf("ledger recorder required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		tx:        p.TxRunner,
		invoices:  p.Invoices,
		customers: p.Customers,
		inventory: p.Inventory,
		numbering: p.Numbering,
		gate:      p.Gate,
		ledger:    p.Ledger,
		outbox:    p.Outbox,
		metrics:   p.Metrics,
		logg:      p.Logger,
		now:       now,
	}, nil
}

// Post validates draft, checks the quota and commits the invoice together
// with its lines, stock debits, optional ledger debit and outbox event.
func (e *Engine) Post(ctx context.Context, shopOwnerID uuid.UUID, draft Draft) (*models.Invoice, error) {
	started := time.Now()
	ctx = e.logg.WithShopOwnerID(ctx, shopOwnerID.String())

	invoice, err := e.post(ctx, shopOwnerID, draft)
	if err != nil {
		err = classify(ctx, err)
		reason := rejectionReason(err)
		e.metrics.ObserveRejected(reason, time.Since(started))
		rejectCtx := e.logg.WithField(ctx, "reason", reason)
		if pkgerrors.MetadataFor(pkgerrors.As(err).Code()).HTTPStatus >= 500 {
			e.logg.Error(rejectCtx, "invoice.rejected", err)
		} else {
			e.logg.Warn(e.logg.WithField(rejectCtx, "error", err.Error()), "invoice.rejected")
		}
		return nil, err
	}

	e.metrics.ObservePosted(string(invoice.PaymentMethod), time.Since(started))
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"invoice_number": invoice.Number,
		"grand_total":    invoice.GrandTotal.StringFixed(2),
		"payment_method": invoice.PaymentMethod,
	}), "invoice.posted")
	return invoice, nil
}

func (e *Engine) post(ctx context.Context, shopOwnerID uuid.UUID, draft Draft) (*models.Invoice, error) {
	if shopOwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shop owner required")
	}
	computed, err := draft.compute()
	if err != nil {
		return nil, err
	}
	e.compareClaimed(ctx, draft.Claimed, computed)

	decision, err := e.gate.CheckInvoiceQuota(ctx, shopOwnerID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	issuedAt := e.now().UTC()
	var posted *models.Invoice
	err = e.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		invoices := e.invoices.WithTx(tx)
		stock := e.inventory.WithTx(tx)

		customer, err := e.customers.WithTx(tx).FindByID(ctx, shopOwnerID, draft.CustomerID)
		if err != nil {
			return customers.MapLookupErr(err, draft.CustomerID)
		}

		assignment, err := e.numbering.Next(ctx, tx, shopOwnerID, issuedAt)
		if err != nil {
			return err
		}
		// The counter row lock is held from here to commit, so two posts for
		// the same shop cannot both take the last free slot.
		if err := e.gate.EnforceTx(ctx, tx, shopOwnerID, assignment.Sequence); err != nil {
			return err
		}

		totals := computed.totals
		header := &models.Invoice{
			ShopOwnerID:   shopOwnerID,
			Number:        assignment.Number,
			Sequence:      assignment.Sequence,
			IssuedAt:      issuedAt,
			CustomerID:    customer.ID,
			PaymentMethod: draft.PaymentMethod,
			Subtotal:      totals.Subtotal,
			Discount:      totals.Discount,
			CGST:          totals.CGST,
			SGST:          totals.SGST,
			IGST:          totals.IGST,
			GrandTotal:    totals.GrandTotal,
		}
		if err := invoices.CreateHeader(ctx, header); err != nil {
			return err
		}

		for i, line := range draft.Lines {
			split := computed.lines[i]
			row := &models.InvoiceLineItem{
				InvoiceID:     header.ID,
				ShopOwnerID:   shopOwnerID,
				Position:      i + 1,
				CatalogItemID: line.CatalogItemID,
				Name:          strings.TrimSpace(line.Name),
				HSNCode:       strings.TrimSpace(line.HSNCode),
				UnitPrice:     line.UnitPrice,
				Quantity:      line.Quantity,
				Discount:      line.Discount,
				GSTRate:       line.GSTRate,
				CGST:          split.CGST,
				SGST:          split.SGST,
				IGST:          split.IGST,
				LineTotal:     split.LineTotal,
			}
			// Debit first: a missing or foreign item is reported before the
			// line insert can trip the composite foreign key.
			if line.CatalogItemID != nil {
				ok, err := stock.DebitStock(ctx, shopOwnerID, *line.CatalogItemID, line.Quantity)
				if err != nil {
					return err
				}
				if !ok {
					return inventory.ExplainDebitFailure(ctx, stock, shopOwnerID, *line.CatalogItemID, line.Quantity)
				}
			}
			if err := invoices.CreateLine(ctx, row); err != nil {
				return err
			}
		}

		if draft.PaymentMethod.Deferred() {
			invoiceID := header.ID
			if err := e.ledger.RecordTx(ctx, tx, &models.LedgerEntry{
				ShopOwnerID: shopOwnerID,
				CustomerID:  customer.ID,
				InvoiceID:   &invoiceID,
				Type:        enums.LedgerEntryDebit,
				Amount:      totals.GrandTotal,
				EntryDate:   issuedAt,
				Description: "Invoice " + header.Number,
			}); err != nil {
				return err
			}
		}

		if err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoicePosted,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   header.ID,
			ShopOwnerID:   shopOwnerID,
			OccurredAt:    issuedAt,
			Data: payloads.InvoicePostedEvent{
				InvoiceID:     header.ID,
				Number:        header.Number,
				IssuedAt:      issuedAt,
				GrandTotal:    totals.GrandTotal.StringFixed(2),
				PaymentMethod: header.PaymentMethod,
				CustomerID:    customer.ID,
				CustomerName:  customer.Name,
				CustomerPhone: customer.Phone,
			},
		}); err != nil {
			return err
		}

		posted, err = invoices.FindByID(ctx, shopOwnerID, header.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

func (e *Engine) compareClaimed(ctx context.Context, claimed *ClaimedTotals, computed computedDraft) {
	if claimed == nil {
		return
	}
	fields := map[string]any{}
	if claimed.Subtotal != nil && !claimed.Subtotal.Equal(computed.totals.Subtotal) {
		fields["claimed_subtotal"] = claimed.Subtotal.String()
		fields["computed_subtotal"] = computed.totals.Subtotal.String()
	}
	if claimed.GrandTotal != nil && !claimed.GrandTotal.Equal(computed.totals.GrandTotal) {
		fields["claimed_grand_total"] = claimed.GrandTotal.String()
		fields["computed_grand_total"] = computed.totals.GrandTotal.String()
	}
	if len(fields) > 0 {
		e.logg.Warn(e.logg.WithFields(ctx, fields), "invoice.claimed_totals_mismatch")
	}
}

// classify turns raw failures into typed errors. Typed errors pass through.
func classify(ctx context.Context, err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invoice posting cancelled; nothing was saved")
	}
	if db.IsForeignKeyViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "referenced customer or catalog item not found; nothing was saved")
	}
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice number collision; nothing was saved")
	}
	if db.IsRetryableTxError(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invoice posting conflicted with another transaction; nothing was saved").
			WithDetails(map[string]bool{"retryable": true})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invoice posting failed; nothing was saved")
}

func rejectionReason(err error) string {
	return strings.ToLower(string(pkgerrors.As(err).Code()))
}
