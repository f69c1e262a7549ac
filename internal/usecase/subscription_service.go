package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
)

// SubscriptionService maintains the local entitlement mirror. Processor state
// is the source of truth; this service keeps the mirror consistent and applies
// the content side effect when entitlements lapse.
type SubscriptionService struct {
	subscriptionRepo domainRepo.SubscriptionRepository
	resumeRepo       domainRepo.ResumeRepository
	logger           *zap.Logger
	now              func() time.Time
}

// NewSubscriptionService creates a new subscription service instance
func NewSubscriptionService(
	subscriptionRepo domainRepo.SubscriptionRepository,
	resumeRepo domainRepo.ResumeRepository,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptionRepo: subscriptionRepo,
		resumeRepo:       resumeRepo,
		logger:           logger,
		now:              time.Now,
	}
}

// GetActive returns the user's currently entitling subscription record, or
// nil when none exists.
func (s *SubscriptionService) GetActive(ctx context.Context, userID uuid.UUID) (*model.Subscription, error) {
	sub, err := s.subscriptionRepo.GetActiveByUserID(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}
	return sub, nil
}

// IsSubscribed reports whether the user currently holds an entitlement.
func (s *SubscriptionService) IsSubscribed(ctx context.Context, userID uuid.UUID) (bool, error) {
	sub, err := s.GetActive(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub != nil, nil
}

// UpsertFromStripe mirrors a processor subscription into the local store,
// keyed by the processor subscription id. Safe to call repeatedly with the
// same object.
func (s *SubscriptionService) UpsertFromStripe(ctx context.Context, userID uuid.UUID, stripeSub *stripe.Subscription) (*model.Subscription, error) {
	if stripeSub == nil {
		return nil, fmt.Errorf("nil stripe subscription")
	}

	sub := &model.Subscription{
		UserID:               userID,
		StripeSubscriptionID: &stripeSub.ID,
		Plan:                 PlanFromStripeSubscription(stripeSub),
		Status:               StatusFromStripeSubscription(stripeSub),
		CurrentPeriodStart:   time.Unix(stripeSub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:     time.Unix(stripeSub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
		StripeData: model.JSONB{
			"id":     stripeSub.ID,
			"status": string(stripeSub.Status),
		},
	}
	if stripeSub.Customer != nil {
		sub.StripeCustomerID = stripeSub.Customer.ID
	}

	if err := s.subscriptionRepo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}

	s.logger.Info("Subscription mirrored",
		zap.String("user_id", userID.String()),
		zap.String("stripe_subscription_id", stripeSub.ID),
		zap.String("status", string(sub.Status)),
		zap.String("plan", string(sub.Plan)))

	return sub, nil
}

// HandleExpiry marks the subscription expired and takes the user's public
// resumes private. Called when the processor reports the subscription gone.
func (s *SubscriptionService) HandleExpiry(ctx context.Context, userID uuid.UUID, stripeSubID string) error {
	if err := s.subscriptionRepo.UpdateStatus(ctx, stripeSubID, model.SubscriptionStatusExpired); err != nil {
		return fmt.Errorf("failed to mark subscription expired: %w", err)
	}

	privatized, err := s.resumeRepo.PrivatizeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to privatize resumes: %w", err)
	}

	s.logger.Info("Subscription expired",
		zap.String("user_id", userID.String()),
		zap.String("stripe_subscription_id", stripeSubID),
		zap.Int64("resumes_privatized", privatized))

	return nil
}

// ReconcileExpired flips the user's stale active records whose period has
// already ended to expired and applies the privatization side effect. This
// self-heals the mirror when a deletion event was never delivered. Returns
// how many records were flipped.
func (s *SubscriptionService) ReconcileExpired(ctx context.Context, userID uuid.UUID) (int64, error) {
	flipped, err := s.subscriptionRepo.MarkExpired(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile expired subscriptions: %w", err)
	}
	if flipped == 0 {
		return 0, nil
	}

	privatized, err := s.resumeRepo.PrivatizeAllForUser(ctx, userID)
	if err != nil {
		return flipped, fmt.Errorf("failed to privatize resumes: %w", err)
	}

	s.logger.Info("Stale subscriptions reconciled",
		zap.String("user_id", userID.String()),
		zap.Int64("flipped", flipped),
		zap.Int64("resumes_privatized", privatized))

	return flipped, nil
}

// PlanFromStripeSubscription infers the local plan key from the billing
// interval of the subscription's first item.
func PlanFromStripeSubscription(sub *stripe.Subscription) model.SubscriptionPlan {
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil && item.Price.Recurring != nil &&
			item.Price.Recurring.Interval == stripe.PriceRecurringIntervalYear {
			return model.SubscriptionPlanYearly
		}
	}
	return model.SubscriptionPlanMonthly
}

// StatusFromStripeSubscription maps the processor status onto the local enum.
func StatusFromStripeSubscription(sub *stripe.Subscription) model.SubscriptionStatus {
	switch sub.Status {
	case stripe.SubscriptionStatusActive:
		return model.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return model.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return model.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return model.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusIncompleteExpired:
		return model.SubscriptionStatusIncomplete
	default:
		return model.SubscriptionStatusIncomplete
	}
}
