package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
)

const activeSubscriptionTTL = time.Minute

// cachedSubscriptionRepository decorates a SubscriptionRepository with a
// read-through cache for the hot active-subscription lookup. Cache failures
// are logged and ignored; the database stays authoritative.
type cachedSubscriptionRepository struct {
	inner  domainRepo.SubscriptionRepository
	client *redis.Client
	logger *zap.Logger
}

// NewCachedSubscriptionRepository wraps repo with a redis read-through cache
func NewCachedSubscriptionRepository(inner domainRepo.SubscriptionRepository, client *redis.Client, logger *zap.Logger) domainRepo.SubscriptionRepository {
	return &cachedSubscriptionRepository{
		inner:  inner,
		client: client,
		logger: logger,
	}
}

func activeSubscriptionKey(userID uuid.UUID) string {
	return "billing:active_subscription:" + userID.String()
}

func (r *cachedSubscriptionRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error) {
	key := activeSubscriptionKey(userID)

	cached, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var sub model.Subscription
		if err := json.Unmarshal(cached, &sub); err == nil {
			// The cached row may have outlived its period since it was stored.
			if sub.IsActiveAt(now) {
				return &sub, nil
			}
		}
	} else if err != redis.Nil {
		r.logger.Warn("Failed to read active subscription from cache",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}

	sub, err := r.inner.GetActiveByUserID(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	if sub != nil {
		if data, err := json.Marshal(sub); err == nil {
			if err := r.client.Set(ctx, key, data, activeSubscriptionTTL).Err(); err != nil {
				r.logger.Warn("Failed to cache active subscription",
					zap.String("user_id", userID.String()),
					zap.Error(err))
			}
		}
	}

	return sub, nil
}

func (r *cachedSubscriptionRepository) invalidateUser(ctx context.Context, userID uuid.UUID) {
	if err := r.client.Del(ctx, activeSubscriptionKey(userID)).Err(); err != nil {
		r.logger.Warn("Failed to invalidate subscription cache",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

func (r *cachedSubscriptionRepository) invalidateByStripeID(ctx context.Context, stripeSubID string) {
	sub, err := r.inner.GetByStripeSubscriptionID(ctx, stripeSubID)
	if err != nil || sub == nil {
		return
	}
	r.invalidateUser(ctx, sub.UserID)
}

func (r *cachedSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*model.Subscription, error) {
	return r.inner.GetByStripeSubscriptionID(ctx, stripeSubID)
}

func (r *cachedSubscriptionRepository) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*model.Subscription, error) {
	return r.inner.GetLatestByUserID(ctx, userID)
}

func (r *cachedSubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	if err := r.inner.Create(ctx, sub); err != nil {
		return err
	}
	r.invalidateUser(ctx, sub.UserID)
	return nil
}

func (r *cachedSubscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	if err := r.inner.Upsert(ctx, sub); err != nil {
		return err
	}
	r.invalidateUser(ctx, sub.UserID)
	return nil
}

func (r *cachedSubscriptionRepository) UpdateStatus(ctx context.Context, stripeSubID string, status model.SubscriptionStatus) error {
	if err := r.inner.UpdateStatus(ctx, stripeSubID, status); err != nil {
		return err
	}
	r.invalidateByStripeID(ctx, stripeSubID)
	return nil
}

func (r *cachedSubscriptionRepository) SetCancelAtPeriodEnd(ctx context.Context, stripeSubID string, cancel bool) error {
	if err := r.inner.SetCancelAtPeriodEnd(ctx, stripeSubID, cancel); err != nil {
		return err
	}
	r.invalidateByStripeID(ctx, stripeSubID)
	return nil
}

func (r *cachedSubscriptionRepository) MarkExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	count, err := r.inner.MarkExpired(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		r.invalidateUser(ctx, userID)
	}
	return count, nil
}
