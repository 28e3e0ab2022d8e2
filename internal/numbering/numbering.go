// Package numbering assigns per-shop sequential bill numbers.
package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const dateLayout = "20060102"

// nextSequenceSQL increments the shop's counter row in one statement. The
// row lock it takes is held until the surrounding transaction ends, so
// numbering for one shop is serialized while other shops never wait.
const nextSequenceSQL = `
INSERT INTO invoice_sequences (shop_owner_id, last_value, updated_at)
VALUES (?, 1, ?)
ON CONFLICT (shop_owner_id) DO UPDATE
SET last_value = invoice_sequences.last_value + 1,
    updated_at = excluded.updated_at
RETURNING last_value`

// Assignment is a reserved bill number.
type Assignment struct {
	Sequence int64
	Number   string
}

// Authority hands out bill numbers inside the caller's transaction.
type Authority struct{}

// NewAuthority returns the counter-row backed authority.
func NewAuthority() *Authority {
	return &Authority{}
}

// Next reserves the next number for shopOwnerID. It must run inside the
// posting transaction; a rollback releases the number.
func (a *Authority) Next(ctx context.Context, tx *gorm.DB, shopOwnerID uuid.UUID, issuedAt time.Time) (Assignment, error) {
	if tx == nil {
		return Assignment{}, fmt.Errorf("transaction required")
	}
	if shopOwnerID == uuid.Nil {
		return Assignment{}, fmt.Errorf("shop owner id required")
	}

	var seq int64
	if err := tx.WithContext(ctx).Raw(nextSequenceSQL, shopOwnerID, issuedAt.UTC()).Scan(&seq).Error; err != nil {
		return Assignment{}, fmt.Errorf("incrementing invoice sequence: %w", err)
	}
	if seq <= 0 {
		return Assignment{}, fmt.Errorf("invoice sequence returned %d", seq)
	}

	return Assignment{Sequence: seq, Number: FormatNumber(issuedAt, seq)}, nil
}

// FormatNumber renders yyyyMMdd-NNNN using the UTC date of issuedAt.
// Sequences past 9999 widen rather than truncate.
func FormatNumber(issuedAt time.Time, seq int64) string {
	return fmt.Sprintf("%s-%04d", issuedAt.UTC().Format(dateLayout), seq)
}
