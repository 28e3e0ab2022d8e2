package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantSetting is the Postgres session variable read by row-level security
// policies.
const TenantSetting = "app.shop_owner_id"

// ScopeTenant binds the transaction to one shop owner. On Postgres this sets
// a transaction-local setting that RLS policies compare against shop_owner_id.
// Other dialects rely on repository filters alone.
func ScopeTenant(tx *gorm.DB, shopOwnerID uuid.UUID) error {
	if shopOwnerID == uuid.Nil {
		return fmt.Errorf("shop owner id required")
	}
	if tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	if err := tx.Exec("SELECT set_config(?, ?, true)", TenantSetting, shopOwnerID.String()).Error; err != nil {
		return fmt.Errorf("scoping tenant: %w", err)
	}
	return nil
}

// WithTenantTx runs fn in a transaction scoped to shopOwnerID. Every
// tenant-owned read or write goes through here so RLS sees the setting.
func (c *Client) WithTenantTx(ctx context.Context, shopOwnerID uuid.UUID, fn func(tx *gorm.DB) error) error {
	return c.WithTx(ctx, func(tx *gorm.DB) error {
		if err := ScopeTenant(tx, shopOwnerID); err != nil {
			return err
		}
		return fn(tx)
	})
}
