package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/enums"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

// DefaultFreeInvoiceQuota is the lifetime invoice allowance of the FREE tier.
const DefaultFreeInvoiceQuota = 10

type txRunner interface {
	WithTenantTx(ctx context.Context, shopOwnerID uuid.UUID, fn func(tx *gorm.DB) error) error
}

// Service is the subscription gate plus plan administration.
type Service interface {
	GetPlan(ctx context.Context, shopOwnerID uuid.UUID) (*Plan, error)
	SetPlan(ctx context.Context, shopOwnerID uuid.UUID, input SetPlanInput) (*Plan, error)
	CheckInvoiceQuota(ctx context.Context, shopOwnerID uuid.UUID) (Decision, error)
	EnforceTx(ctx context.Context, tx *gorm.DB, shopOwnerID uuid.UUID, slot int64) error
}

// Plan is the subscription as the gate sees it right now.
type Plan struct {
	Tier          enums.SubscriptionTier `json:"tier"`
	EffectiveTier enums.SubscriptionTier `json:"effective_tier"`
	ExpiresAt     *time.Time             `json:"expires_at,omitempty"`
	InvoiceCount  int64                  `json:"invoice_count"`
	InvoiceLimit  *int64                 `json:"invoice_limit,omitempty"`
}

// SetPlanInput changes a shop's tier. ExpiresAt is required for PRO.
type SetPlanInput struct {
	Tier      enums.SubscriptionTier
	ExpiresAt *time.Time
}

// Decision is the gate's answer for one more invoice.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Plan    Plan   `json:"plan"`
}

// QuotaDetails is attached to QUOTA_EXCEEDED errors.
type QuotaDetails struct {
	Tier  enums.SubscriptionTier `json:"tier"`
	Limit int64                  `json:"limit"`
	Used  int64                  `json:"used"`
}

// Err converts a denial into a QUOTA_EXCEEDED error; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	var limit int64
	if d.Plan.InvoiceLimit != nil {
		limit = *d.Plan.InvoiceLimit
	}
	return pkgerrors.New(pkgerrors.CodeQuotaExceeded, d.Reason).WithDetails(QuotaDetails{
		Tier:  d.Plan.EffectiveTier,
		Limit: limit,
		Used:  d.Plan.InvoiceCount,
	})
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo             Repository
	TxRunner         txRunner
	FreeInvoiceQuota int
	Now              func() time.Time
}

type service struct {
	repo  Repository
	tx    txRunner
	quota int64
	now   func() time.Time
}

// NewService builds the subscription gate.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	quota := params.FreeInvoiceQuota
	if quota <= 0 {
		quota = DefaultFreeInvoiceQuota
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, tx: params.TxRunner, quota: int64(quota), now: now}, nil
}

// EffectiveTier derives the tier in force at now. PRO whose expiry is not in
// the future behaves as FREE; a PRO row without expiry never lapses.
func EffectiveTier(sub *models.Subscription, now time.Time) enums.SubscriptionTier {
	if sub == nil || sub.Tier != enums.SubscriptionTierPro {
		return enums.SubscriptionTierFree
	}
	if sub.ExpiresAt != nil && !sub.ExpiresAt.After(now) {
		return enums.SubscriptionTierFree
	}
	return enums.SubscriptionTierPro
}

func (s *service) GetPlan(ctx context.Context, shopOwnerID uuid.UUID) (*Plan, error) {
	var plan Plan
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		var err error
		plan, err = s.loadPlan(ctx, s.repo.WithTx(tx), shopOwnerID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return &plan, nil
}

func (s *service) SetPlan(ctx context.Context, shopOwnerID uuid.UUID, input SetPlanInput) (*Plan, error) {
	if !input.Tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid subscription tier %q", input.Tier))
	}
	if input.Tier == enums.SubscriptionTierPro && input.ExpiresAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pro subscriptions require an expiry")
	}
	expiresAt := input.ExpiresAt
	if input.Tier == enums.SubscriptionTierFree {
		expiresAt = nil
	}
	if expiresAt != nil {
		utc := expiresAt.UTC()
		expiresAt = &utc
	}

	var plan Plan
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Upsert(ctx, &models.Subscription{
			ShopOwnerID: shopOwnerID,
			Tier:        input.Tier,
			ExpiresAt:   expiresAt,
			UpdatedAt:   s.now().UTC(),
		}); err != nil {
			return err
		}
		var err error
		plan, err = s.loadPlan(ctx, repo, shopOwnerID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return &plan, nil
}

// CheckInvoiceQuota runs before the posting transaction opens.
func (s *service) CheckInvoiceQuota(ctx context.Context, shopOwnerID uuid.UUID) (Decision, error) {
	var plan Plan
	err := s.tx.WithTenantTx(ctx, shopOwnerID, func(tx *gorm.DB) error {
		var err error
		plan, err = s.loadPlan(ctx, s.repo.WithTx(tx), shopOwnerID)
		return err
	})
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check invoice quota")
	}
	return s.decide(plan, plan.InvoiceCount+1), nil
}

// EnforceTx re-checks the quota inside the posting transaction for the
// invoice that will occupy slot (its 1-based sequence for the shop).
func (s *service) EnforceTx(ctx context.Context, tx *gorm.DB, shopOwnerID uuid.UUID, slot int64) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	sub, err := s.repo.WithTx(tx).Find(ctx, shopOwnerID)
	if err != nil {
		return err
	}
	plan := s.planFor(sub, slot-1)
	return s.decide(plan, slot).Err()
}

func (s *service) loadPlan(ctx context.Context, repo Repository, shopOwnerID uuid.UUID) (Plan, error) {
	sub, err := repo.Find(ctx, shopOwnerID)
	if err != nil {
		return Plan{}, err
	}
	count, err := repo.CountInvoices(ctx, shopOwnerID)
	if err != nil {
		return Plan{}, err
	}
	return s.planFor(sub, count), nil
}

func (s *service) planFor(sub *models.Subscription, count int64) Plan {
	plan := Plan{
		Tier:          enums.SubscriptionTierFree,
		EffectiveTier: EffectiveTier(sub, s.now()),
		InvoiceCount:  count,
	}
	if sub != nil {
		plan.Tier = sub.Tier
		plan.ExpiresAt = sub.ExpiresAt
	}
	if plan.EffectiveTier == enums.SubscriptionTierFree {
		limit := s.quota
		plan.InvoiceLimit = &limit
	}
	return plan
}

func (s *service) decide(plan Plan, slot int64) Decision {
	if plan.InvoiceLimit == nil || slot <= *plan.InvoiceLimit {
		return Decision{Allowed: true, Plan: plan}
	}
	reason := fmt.Sprintf(
		"the free plan allows %d invoices and %d have been created; upgrade to PRO to create more invoices",
		*plan.InvoiceLimit, plan.InvoiceCount,
	)
	if plan.Tier == enums.SubscriptionTierPro {
		reason = fmt.Sprintf(
			"your PRO plan has expired, so the free limit of %d invoices applies and %d have been created; renew PRO to create more invoices",
			*plan.InvoiceLimit, plan.InvoiceCount,
		)
	}
	return Decision{Allowed: false, Reason: reason, Plan: plan}
}
