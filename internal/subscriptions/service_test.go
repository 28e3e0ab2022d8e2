package subscriptions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db"
	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/db/testdb"
	"github.com/khatabill/khatabill-backend/pkg/enums"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newGate(t *testing.T) (*db.Client, Service, *clock) {
	t.Helper()
	client := testdb.Open(t)
	clk := &clock{now: time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		TxRunner: client,
		Now:      clk.Now,
	})
	require.NoError(t, err)
	return client, svc, clk
}

func seedInvoices(t *testing.T, client *db.Client, shop uuid.UUID, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, client.DB().Create(&models.Invoice{
			ShopOwnerID:   shop,
			Number:        fmt.Sprintf("20261018-%04d", i),
			Sequence:      int64(i),
			IssuedAt:      time.Now().UTC(),
			CustomerID:    uuid.New(),
			PaymentMethod: enums.PaymentMethodCash,
		}).Error)
	}
}

func TestEffectiveTier(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Second)
	past := now.Add(-time.Second)

	assert.Equal(t, enums.SubscriptionTierFree, EffectiveTier(nil, now))
	assert.Equal(t, enums.SubscriptionTierFree, EffectiveTier(&models.Subscription{Tier: enums.SubscriptionTierFree}, now))
	assert.Equal(t, enums.SubscriptionTierPro, EffectiveTier(&models.Subscription{Tier: enums.SubscriptionTierPro, ExpiresAt: &future}, now))
	assert.Equal(t, enums.SubscriptionTierFree, EffectiveTier(&models.Subscription{Tier: enums.SubscriptionTierPro, ExpiresAt: &past}, now))
	assert.Equal(t, enums.SubscriptionTierFree, EffectiveTier(&models.Subscription{Tier: enums.SubscriptionTierPro, ExpiresAt: &now}, now))
	assert.Equal(t, enums.SubscriptionTierPro, EffectiveTier(&models.Subscription{Tier: enums.SubscriptionTierPro}, now))
}

func TestFreeTierDeniedOnEleventhInvoice(t *testing.T) {
	client, svc, _ := newGate(t)
	ctx := context.Background()
	shop := uuid.New()

	seedInvoices(t, client, shop, 9)
	decision, err := svc.CheckInvoiceQuota(ctx, shop)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "tenth invoice is allowed")

	seedInvoices(t, client, uuid.New(), 3)
	require.NoError(t, client.DB().Create(&models.Invoice{
		ShopOwnerID: shop, Number: "20261018-0010", Sequence: 10, IssuedAt: time.Now(), CustomerID: uuid.New(), PaymentMethod: enums.PaymentMethodUPI,
	}).Error)

	decision, err = svc.CheckInvoiceQuota(ctx, shop)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "10 invoices")
	assert.Contains(t, decision.Reason, "upgrade")

	err = decision.Err()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeQuotaExceeded, typed.Code())
	assert.Equal(t, QuotaDetails{Tier: enums.SubscriptionTierFree, Limit: 10, Used: 10}, typed.Details())
}

func TestProExpiryIsComputedAtCheckTime(t *testing.T) {
	client, svc, clk := newGate(t)
	ctx := context.Background()
	shop := uuid.New()
	seedInvoices(t, client, shop, 10)

	expires := clk.now.Add(time.Second)
	plan, err := svc.SetPlan(ctx, shop, SetPlanInput{Tier: enums.SubscriptionTierPro, ExpiresAt: &expires})
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionTierPro, plan.EffectiveTier)
	assert.Nil(t, plan.InvoiceLimit)

	decision, err := svc.CheckInvoiceQuota(ctx, shop)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	clk.now = clk.now.Add(2 * time.Second)
	decision, err = svc.CheckInvoiceQuota(ctx, shop)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "expired")
	assert.Equal(t, enums.SubscriptionTierPro, decision.Plan.Tier)
	assert.Equal(t, enums.SubscriptionTierFree, decision.Plan.EffectiveTier)
}

func TestEnforceTxUsesSlot(t *testing.T) {
	client, svc, _ := newGate(t)
	ctx := context.Background()
	shop := uuid.New()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.EnforceTx(ctx, tx, shop, 10)
	})
	assert.NoError(t, err)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.EnforceTx(ctx, tx, shop, 11)
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded), "got %v", err)
}

func TestSetPlanValidation(t *testing.T) {
	_, svc, _ := newGate(t)
	ctx := context.Background()

	_, err := svc.SetPlan(ctx, uuid.New(), SetPlanInput{Tier: "GOLD"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.SetPlan(ctx, uuid.New(), SetPlanInput{Tier: enums.SubscriptionTierPro})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSetPlanDowngradeClearsExpiry(t *testing.T) {
	_, svc, clk := newGate(t)
	ctx := context.Background()
	shop := uuid.New()
	expires := clk.now.Add(24 * time.Hour)

	_, err := svc.SetPlan(ctx, shop, SetPlanInput{Tier: enums.SubscriptionTierPro, ExpiresAt: &expires})
	require.NoError(t, err)

	plan, err := svc.SetPlan(ctx, shop, SetPlanInput{Tier: enums.SubscriptionTierFree, ExpiresAt: &expires})
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionTierFree, plan.Tier)
	assert.Nil(t, plan.ExpiresAt)
	require.NotNil(t, plan.InvoiceLimit)
	assert.Equal(t, int64(DefaultFreeInvoiceQuota), *plan.InvoiceLimit)
}

func TestGetPlanDefaultsToFree(t *testing.T) {
	_, svc, _ := newGate(t)
	plan, err := svc.GetPlan(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionTierFree, plan.Tier)
	assert.Equal(t, int64(0), plan.InvoiceCount)
}
