package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	"github.com/resumeforge/resumeforge-backend/internal/usecase"
)

func stripeSubscription(id string, status stripe.SubscriptionStatus, interval stripe.PriceRecurringInterval) *stripe.Subscription {
	now := time.Now()
	return &stripe.Subscription{
		ID:                 id,
		Status:             status,
		Customer:           &stripe.Customer{ID: "cus_123"},
		CurrentPeriodStart: now.Unix(),
		CurrentPeriodEnd:   now.Add(30 * 24 * time.Hour).Unix(),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					ID: "si_123",
					Price: &stripe.Price{
						ID:        "price_monthly",
						Recurring: &stripe.PriceRecurring{Interval: interval},
					},
				},
			},
		},
	}
}

func TestSubscriptionService_IsSubscribed(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	userID := uuid.New()

	t.Run("active subscription", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockResumes := new(MockResumeRepository)
		service := usecase.NewSubscriptionService(mockSubs, mockResumes, logger)

		subID := "sub_123"
		mockSubs.On("GetActiveByUserID", ctx, userID, mock.AnythingOfType("time.Time")).
			Return(&model.Subscription{
				UserID:               userID,
				StripeSubscriptionID: &subID,
				Status:               model.SubscriptionStatusActive,
				CurrentPeriodEnd:     time.Now().Add(24 * time.Hour),
			}, nil)

		subscribed, err := service.IsSubscribed(ctx, userID)

		assert.NoError(t, err)
		assert.True(t, subscribed)
	})

	t.Run("no subscription", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockResumes := new(MockResumeRepository)
		service := usecase.NewSubscriptionService(mockSubs, mockResumes, logger)

		mockSubs.On("GetActiveByUserID", ctx, userID, mock.AnythingOfType("time.Time")).Return(nil, nil)

		subscribed, err := service.IsSubscribed(ctx, userID)

		assert.NoError(t, err)
		assert.False(t, subscribed)
	})
}

func TestSubscriptionService_UpsertFromStripe(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	userID := uuid.New()

	t.Run("monthly active subscription", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockResumes := new(MockResumeRepository)
		service := usecase.NewSubscriptionService(mockSubs, mockResumes, logger)

		mockSubs.On("Upsert", ctx, mock.MatchedBy(func(sub *model.Subscription) bool {
			return sub.UserID == userID &&
				*sub.StripeSubscriptionID == "sub_123" &&
				sub.StripeCustomerID == "cus_123" &&
				sub.Plan == model.SubscriptionPlanMonthly &&
				sub.Status == model.SubscriptionStatusActive
		})).Return(nil)

		sub, err := service.UpsertFromStripe(ctx, userID,
			stripeSubscription("sub_123", stripe.SubscriptionStatusActive, stripe.PriceRecurringIntervalMonth))

		assert.NoError(t, err)
		assert.Equal(t, model.SubscriptionPlanMonthly, sub.Plan)
		mockSubs.AssertExpectations(t)
	})

	t.Run("yearly interval maps to yearly plan", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockResumes := new(MockResumeRepository)
		service := usecase.NewSubscriptionService(mockSubs, mockResumes, logger)

		mockSubs.On("Upsert", ctx, mock.MatchedBy(func(sub *model.Subscription) bool {
			return sub.Plan == model.SubscriptionPlanYearly
		})).Return(nil)

		sub, err := service.UpsertFromStripe(ctx, userID,
			stripeSubscription("sub_456", stripe.SubscriptionStatusActive, stripe.PriceRecurringIntervalYear))

		assert.NoError(t, err)
		assert.Equal(t, model.SubscriptionPlanYearly, sub.Plan)
	})

	t.Run("past due status mirrored", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockResumes := new(MockResumeRepository)
		service := usecase.NewSubscriptionService(mockSubs, mockResumes, logger)

		mockSubs.On("Upsert", ctx, mock.MatchedBy(func(sub *model.Subscription) bool {
			return sub.Status == model.SubscriptionStatusPastDue
		})).Return(nil)

		sub, err := service.UpsertFromStripe(ctx, userID,
			stripeSubscription("sub_789", stripe.SubscriptionStatusPastDue, stripe.PriceRecurringIntervalMonth))

		assert.NoError(t, err)
		assert.Equal(t, model.SubscriptionStatusPastDue, sub.Status)
	})
}

func TestSubscriptionService_HandleExpiry(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	userID := uuid.New()

	t.Run("marks expired and privatizes resumes", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockResumes := new(MockResumeRepository)
		service := usecase.NewSubscriptionService(mockSubs, mockResumes, logger)

		mockSubs.On("UpdateStatus", ctx, "sub_123", model.SubscriptionStatusExpired).Return(nil)
		mockResumes.On("PrivatizeAllForUser", ctx, userID).Return(int64(2), nil)

		err := service.HandleExpiry(ctx, userID, "sub_123")

		assert.NoError(t, err)
		mockSubs.AssertExpectations(t)
		mockResumes.AssertExpectations(t)
	})
}

func TestSubscriptionService_ReconcileExpired(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	userID := uuid.New()

	t.Run("stale records flipped and resumes privatized", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockResumes := new(MockResumeRepository)
		service := usecase.NewSubscriptionService(mockSubs, mockResumes, logger)

		mockSubs.On("MarkExpired", ctx, userID, mock.AnythingOfType("time.Time")).Return(int64(1), nil)
		mockResumes.On("PrivatizeAllForUser", ctx, userID).Return(int64(3), nil)

		flipped, err := service.ReconcileExpired(ctx, userID)

		assert.NoError(t, err)
		assert.Equal(t, int64(1), flipped)
		mockResumes.AssertExpectations(t)
	})

	t.Run("nothing stale leaves resumes alone", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockResumes := new(MockResumeRepository)
		service := usecase.NewSubscriptionService(mockSubs, mockResumes, logger)

		mockSubs.On("MarkExpired", ctx, userID, mock.AnythingOfType("time.Time")).Return(int64(0), nil)

		flipped, err := service.ReconcileExpired(ctx, userID)

		assert.NoError(t, err)
		assert.Equal(t, int64(0), flipped)
		mockResumes.AssertNotCalled(t, "PrivatizeAllForUser", mock.Anything, mock.Anything)
	})
}
