package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/enums"
)

// signedAmount is positive for DEBIT (customer owes more) and negative for CREDIT.
const signedAmount = "CASE WHEN type = 'DEBIT' THEN amount ELSE -amount END"

// balanceScale drops float residue from SUM on drivers that store numeric as
// REAL (SQLite). Postgres sums are exact and unaffected.
const balanceScale = 6

// CustomerBalance is one row of the outstanding Udhaar view.
type CustomerBalance struct {
	CustomerID   uuid.UUID       `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Balance      decimal.Decimal `json:"balance"`
}

// Repository persists ledger entries and derives balances from them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	Balance(ctx context.Context, shopOwnerID, customerID uuid.UUID) (decimal.Decimal, error)
	History(ctx context.Context, shopOwnerID, customerID uuid.UUID) ([]models.LedgerEntry, error)
	Balances(ctx context.Context, shopOwnerID uuid.UUID) ([]CustomerBalance, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) Balance(ctx context.Context, shopOwnerID, customerID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Balance decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM("+signedAmount+"), 0) AS balance").
		Where("shop_owner_id = ? AND customer_id = ?", shopOwnerID, customerID).
		Scan(&row).Error
	return row.Balance.Round(balanceScale), err
}

func (r *repository) History(ctx context.Context, shopOwnerID, customerID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("shop_owner_id = ? AND customer_id = ?", shopOwnerID, customerID).
		Order("entry_date DESC").
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Balances(ctx context.Context, shopOwnerID uuid.UUID) ([]CustomerBalance, error) {
	var rows []CustomerBalance
	err := r.db.WithContext(ctx).Raw(`
SELECT le.customer_id AS customer_id,
       c.name AS customer_name,
       SUM(CASE WHEN le.type = ? THEN le.amount ELSE -le.amount END) AS balance
FROM ledger_entries le
JOIN customers c ON c.id = le.customer_id AND c.shop_owner_id = le.shop_owner_id
WHERE le.shop_owner_id = ?
GROUP BY le.customer_id, c.name
HAVING SUM(CASE WHEN le.type = ? THEN le.amount ELSE -le.amount END) <> 0
ORDER BY balance DESC, c.name ASC`,
		enums.LedgerEntryDebit, shopOwnerID, enums.LedgerEntryDebit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	outstanding := rows[:0]
	for _, row := range rows {
		row.Balance = row.Balance.Round(balanceScale)
		if !row.Balance.IsZero() {
			outstanding = append(outstanding, row)
		}
	}
	return outstanding, nil
}
