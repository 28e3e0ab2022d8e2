// Package dashboard aggregates the shop home screen figures. Each query scans
// into its own typed row.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/enums"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

type txRunner interface {
	WithTenantTx(ctx context.Context, shopOwnerID uuid.UUID, fn func(tx *gorm.DB) error) error
}

// Summary is the dashboard payload.
type Summary struct {
	InvoiceCount      int64           `json:"invoice_count"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	SalesToday        decimal.Decimal `json:"sales_today"`
	OutstandingCredit decimal.Decimal `json:"outstanding_credit"`
	LowStockItems     int64           `json:"low_stock_items"`
}

type salesRow struct {
	InvoiceCount int64
	TotalSales   decimal.Decimal
}

type todayRow struct {
	SalesToday decimal.Decimal
}

type outstandingRow struct {
	OutstandingCredit decimal.Decimal
}

// Service builds dashboard summaries.
type Service interface {
	Summary(ctx context.Context, shopOwnerID uuid.UUID) (*Summary, error)
}

type service struct {
	tx  txRunner
	now func() time.Time
}

// NewService wires the dashboard service.
func NewService(tx txRunner, now func() time.Time) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{tx: tx, now: now}, nil
}

func (s *service) Summary(ctx context.Context, shopOwnerID uuid.UUID) (*Summary, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var (
		sales       salesRow
		today       todayRow
		outstanding outstandingRow
		lowStock    int64
	)
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)
		if err := tx.Model(&models.Invoice{}).
			Select("COUNT(*) AS invoice_count, COALESCE(SUM(grand_total), 0) AS total_sales").
			Where("shop_owner_id = ?", shopOwnerID).
			Scan(&sales).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Invoice{}).
			Select("COALESCE(SUM(grand_total), 0) AS sales_today").
			Where("shop_owner_id = ? AND issued_at >= ?", shopOwnerID, dayStart).
			Scan(&today).Error; err != nil {
			return err
		}
		if err := tx.Raw(`
SELECT COALESCE(SUM(balance), 0) AS outstanding_credit
FROM (
    SELECT SUM(CASE WHEN type = ? THEN amount ELSE -amount END) AS balance
    FROM ledger_entries
    WHERE shop_owner_id = ?
    GROUP BY customer_id
) balances
WHERE balance > 0`, enums.LedgerEntryDebit, shopOwnerID).
			Scan(&outstanding).Error; err != nil {
			return err
		}
		return tx.Model(&models.CatalogItem{}).
			Where("shop_owner_id = ? AND stock_qty <= low_stock_threshold", shopOwnerID).
			Count(&lowStock).Error
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dashboard")
	}

	return &Summary{
		InvoiceCount:      sales.InvoiceCount,
		TotalSales:        sales.TotalSales,
		SalesToday:        today.SalesToday,
		OutstandingCredit: outstanding.OutstandingCredit,
		LowStockItems:     lowStock,
	}, nil
}
