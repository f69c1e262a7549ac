package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
)

// SubscriptionRepository stores the local mirror of processor subscriptions.
// Historical records are retained; "active" is always a derived query.
type SubscriptionRepository interface {
	// GetActiveByUserID returns the most recent record with status in
	// (active, trialing) and period end after now, or nil when none.
	GetActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error)

	// GetByStripeSubscriptionID returns the record for a processor
	// subscription id, or nil.
	GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*model.Subscription, error)

	// GetLatestByUserID returns the user's most recent record regardless of
	// status, or nil. Used to resolve the processor customer reference.
	GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*model.Subscription, error)

	// Create inserts a new record (e.g. the incomplete row written on first
	// checkout attempt).
	Create(ctx context.Context, sub *model.Subscription) error

	// Upsert creates or updates the record keyed by (user, processor
	// subscription id).
	Upsert(ctx context.Context, sub *model.Subscription) error

	// UpdateStatus sets the status of the record with the given processor
	// subscription id.
	UpdateStatus(ctx context.Context, stripeSubID string, status model.SubscriptionStatus) error

	// SetCancelAtPeriodEnd mirrors the processor's scheduled-cancellation flag.
	SetCancelAtPeriodEnd(ctx context.Context, stripeSubID string, cancel bool) error

	// MarkExpired flips the user's stale records (status active/trialing but
	// period end before now) to expired, returning how many were flipped.
	MarkExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}
