package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) domainRepo.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// GetActiveByUserID retrieves the user's active subscription, derived from
// status and period end rather than status alone.
func (r *subscriptionRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN (?, ?) AND current_period_end > ?",
			userID, model.SubscriptionStatusActive, model.SubscriptionStatusTrialing, now).
		Order("created_at DESC").
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get active subscription",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}

	return &sub, nil
}

// GetByStripeSubscriptionID retrieves a record by processor subscription ID
func (r *subscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubID).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by stripe ID",
			zap.String("stripe_subscription_id", stripeSubID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// GetLatestByUserID retrieves the user's most recent record regardless of status
func (r *subscriptionRepository) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get latest subscription",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get latest subscription: %w", err)
	}

	return &sub, nil
}

// Create inserts a new subscription record
func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		r.logger.Error("Failed to create subscription",
			zap.String("user_id", sub.UserID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// Upsert creates or updates a record keyed by the processor subscription id.
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID == "" {
		return fmt.Errorf("upsert requires a stripe subscription id")
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "plan", "current_period_start", "current_period_end",
				"cancel_at_period_end", "stripe_customer_id", "stripe_data", "updated_at",
			}),
		}).
		Create(sub).Error

	if err != nil {
		r.logger.Error("Failed to upsert subscription",
			zap.String("user_id", sub.UserID.String()),
			zap.Stringp("stripe_subscription_id", sub.StripeSubscriptionID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

// UpdateStatus sets the status of a record by processor subscription id
func (r *subscriptionRepository) UpdateStatus(ctx context.Context, stripeSubID string, status model.SubscriptionStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to update subscription status",
			zap.String("stripe_subscription_id", stripeSubID),
			zap.String("status", string(status)),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update subscription status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("subscription not found: %s", stripeSubID)
	}

	return nil
}

// SetCancelAtPeriodEnd mirrors the processor's scheduled-cancellation flag
func (r *subscriptionRepository) SetCancelAtPeriodEnd(ctx context.Context, stripeSubID string, cancel bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubID).
		Updates(map[string]interface{}{
			"cancel_at_period_end": cancel,
			"updated_at":           time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to set cancel_at_period_end",
			zap.String("stripe_subscription_id", stripeSubID),
			zap.Bool("cancel", cancel),
			zap.Error(result.Error))
		return fmt.Errorf("failed to set cancel_at_period_end: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("subscription not found: %s", stripeSubID)
	}

	return nil
}

// MarkExpired flips stale active records whose period already ended
func (r *subscriptionRepository) MarkExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("user_id = ? AND status IN (?, ?) AND current_period_end <= ?",
			userID, model.SubscriptionStatusActive, model.SubscriptionStatusTrialing, now).
		Updates(map[string]interface{}{
			"status":     model.SubscriptionStatusExpired,
			"updated_at": now,
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark subscriptions expired",
			zap.String("user_id", userID.String()),
			zap.Error(result.Error))
		return 0, fmt.Errorf("failed to mark subscriptions expired: %w", result.Error)
	}

	return result.RowsAffected, nil
}
