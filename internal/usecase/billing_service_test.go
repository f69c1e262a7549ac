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

	customErr "github.com/resumeforge/resumeforge-backend/internal/domain/errors"
	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	"github.com/resumeforge/resumeforge-backend/internal/domain/provider"
	"github.com/resumeforge/resumeforge-backend/internal/metrics"
	"github.com/resumeforge/resumeforge-backend/internal/usecase"
)

type billingFixture struct {
	webhooks     *MockWebhookRepository
	credits      *MockCreditRepository
	transactions *MockTransactionRepository
	subs         *MockSubscriptionRepository
	resumes      *MockResumeRepository
	gateway      *MockPaymentGateway
	service      *usecase.BillingService
}

func newBillingFixture() *billingFixture {
	logger := zap.NewNop()
	f := &billingFixture{
		webhooks:     new(MockWebhookRepository),
		credits:      new(MockCreditRepository),
		transactions: new(MockTransactionRepository),
		subs:         new(MockSubscriptionRepository),
		resumes:      new(MockResumeRepository),
		gateway:      new(MockPaymentGateway),
	}
	billing := testBillingConfig()
	m := metrics.NewNopMetrics()
	subscriptionSvc := usecase.NewSubscriptionService(f.subs, f.resumes, logger)
	webhookSvc := usecase.NewWebhookService(
		f.webhooks, f.credits, f.transactions, f.subs,
		subscriptionSvc, f.gateway, billing, m, logger)
	f.service = usecase.NewBillingService(
		f.gateway, f.subs, f.transactions, subscriptionSvc, webhookSvc,
		billing, "https://app.resumeforge.io", m, logger)
	return f
}

func (f *billingFixture) expectNoCustomer(ctx context.Context, user *model.User) {
	f.subs.On("GetLatestByUserID", ctx, user.ID).Return(nil, nil)
	f.gateway.On("FindCustomerByEmail", ctx, user.Email).Return(nil, nil)
}

func activeSubscriptionRecord(userID uuid.UUID, subID string, cancelPending bool) *model.Subscription {
	return &model.Subscription{
		UserID:               userID,
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: &subID,
		Plan:                 model.SubscriptionPlanMonthly,
		Status:               model.SubscriptionStatusActive,
		CurrentPeriodEnd:     time.Now().Add(20 * 24 * time.Hour),
		CancelAtPeriodEnd:    cancelPending,
	}
}

func TestBillingService_CreateCreditCheckout(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: uuid.New(), Email: "test@example.com"}

	t.Run("opens a payment-mode checkout for a configured pack", func(t *testing.T) {
		f := newBillingFixture()
		f.expectNoCustomer(ctx, user)

		f.gateway.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(req *provider.CheckoutSessionRequest) bool {
			return req.Mode == provider.CheckoutModePayment &&
				req.PriceID == "price_pack_small" &&
				req.ClientReferenceID == user.ID.String() &&
				req.Metadata["pack"] == "small" &&
				req.Metadata["credits"] == "10"
		})).Return(&stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}, nil)

		result, err := f.service.CreateCreditCheckout(ctx, user, "small")

		assert.NoError(t, err)
		assert.Equal(t, "cs_1", result.SessionID)
		assert.Equal(t, "https://checkout.stripe.com/cs_1", result.URL)
		f.gateway.AssertExpectations(t)
	})

	t.Run("unknown pack rejected", func(t *testing.T) {
		f := newBillingFixture()

		_, err := f.service.CreateCreditCheckout(ctx, user, "mega")

		assert.ErrorIs(t, err, customErr.ErrUnknownPack)
		f.gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("gateway failure leaves no local writes", func(t *testing.T) {
		f := newBillingFixture()
		f.expectNoCustomer(ctx, user)

		f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).Return(nil, assert.AnError)

		_, err := f.service.CreateCreditCheckout(ctx, user, "small")

		assert.Error(t, err)
		f.subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestBillingService_CreateSubscriptionCheckout(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: uuid.New(), Email: "test@example.com"}

	t.Run("opens a subscription-mode checkout and writes an incomplete record", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).Return(nil, nil)
		f.subs.On("GetLatestByUserID", ctx, user.ID).Return(nil, nil)
		f.gateway.On("FindCustomerByEmail", ctx, user.Email).Return(nil, nil)

		f.gateway.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(req *provider.CheckoutSessionRequest) bool {
			return req.Mode == provider.CheckoutModeSubscription && req.PriceID == "price_monthly"
		})).Return(&stripe.CheckoutSession{ID: "cs_sub", URL: "https://checkout.stripe.com/cs_sub"}, nil)
		f.subs.On("Create", ctx, mock.MatchedBy(func(sub *model.Subscription) bool {
			return sub.UserID == user.ID &&
				sub.Status == model.SubscriptionStatusIncomplete &&
				sub.StripeSubscriptionID == nil
		})).Return(nil)

		result, err := f.service.CreateSubscriptionCheckout(ctx, user, "monthly")

		assert.NoError(t, err)
		assert.Equal(t, "cs_sub", result.SessionID)
		f.subs.AssertExpectations(t)
	})

	t.Run("local active subscription blocks checkout", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).
			Return(activeSubscriptionRecord(user.ID, "sub_123", false), nil)

		_, err := f.service.CreateSubscriptionCheckout(ctx, user, "monthly")

		assert.ErrorIs(t, err, customErr.ErrAlreadySubscribed)
		f.gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("remote active subscription blocks checkout", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).Return(nil, nil)
		f.subs.On("GetLatestByUserID", ctx, user.ID).Return(nil, nil)
		f.gateway.On("FindCustomerByEmail", ctx, user.Email).Return(&stripe.Customer{ID: "cus_123"}, nil)
		f.gateway.On("ListActiveSubscriptions", ctx, "cus_123").
			Return([]*stripe.Subscription{stripeSubscription("sub_remote", stripe.SubscriptionStatusActive, stripe.PriceRecurringIntervalMonth)}, nil)

		_, err := f.service.CreateSubscriptionCheckout(ctx, user, "monthly")

		assert.ErrorIs(t, err, customErr.ErrAlreadySubscribed)
		f.gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("unknown plan rejected", func(t *testing.T) {
		f := newBillingFixture()

		_, err := f.service.CreateSubscriptionCheckout(ctx, user, "weekly")

		assert.ErrorIs(t, err, customErr.ErrUnknownPlan)
	})
}

func TestBillingService_CancelSubscription(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: uuid.New(), Email: "test@example.com"}

	t.Run("schedules cancellation at period end", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).
			Return(activeSubscriptionRecord(user.ID, "sub_123", false), nil)
		f.gateway.On("UpdateSubscription", ctx, "sub_123", mock.MatchedBy(func(req *provider.SubscriptionUpdateRequest) bool {
			return req.CancelAtPeriodEnd != nil && *req.CancelAtPeriodEnd
		})).Return(stripeSubscription("sub_123", stripe.SubscriptionStatusActive, stripe.PriceRecurringIntervalMonth), nil)
		f.subs.On("SetCancelAtPeriodEnd", ctx, "sub_123", true).Return(nil)

		sub, err := f.service.CancelSubscription(ctx, user)

		assert.NoError(t, err)
		assert.True(t, sub.CancelAtPeriodEnd)
		f.gateway.AssertExpectations(t)
	})

	t.Run("no active subscription", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).Return(nil, nil)

		_, err := f.service.CancelSubscription(ctx, user)

		assert.ErrorIs(t, err, customErr.ErrNoActiveSubscription)
	})

	t.Run("cancellation already pending", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).
			Return(activeSubscriptionRecord(user.ID, "sub_123", true), nil)

		_, err := f.service.CancelSubscription(ctx, user)

		assert.ErrorIs(t, err, customErr.ErrCancellationPending)
		f.gateway.AssertNotCalled(t, "UpdateSubscription", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("gateway failure keeps local state untouched", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).
			Return(activeSubscriptionRecord(user.ID, "sub_123", false), nil)
		f.gateway.On("UpdateSubscription", ctx, "sub_123", mock.Anything).Return(nil, assert.AnError)

		_, err := f.service.CancelSubscription(ctx, user)

		assert.Error(t, err)
		f.subs.AssertNotCalled(t, "SetCancelAtPeriodEnd", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBillingService_ReactivateSubscription(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: uuid.New(), Email: "test@example.com"}

	t.Run("clears a pending cancellation", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).
			Return(activeSubscriptionRecord(user.ID, "sub_123", true), nil)
		f.gateway.On("UpdateSubscription", ctx, "sub_123", mock.MatchedBy(func(req *provider.SubscriptionUpdateRequest) bool {
			return req.CancelAtPeriodEnd != nil && !*req.CancelAtPeriodEnd
		})).Return(stripeSubscription("sub_123", stripe.SubscriptionStatusActive, stripe.PriceRecurringIntervalMonth), nil)
		f.subs.On("SetCancelAtPeriodEnd", ctx, "sub_123", false).Return(nil)

		sub, err := f.service.ReactivateSubscription(ctx, user)

		assert.NoError(t, err)
		assert.False(t, sub.CancelAtPeriodEnd)
	})

	t.Run("nothing pending to reactivate", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).
			Return(activeSubscriptionRecord(user.ID, "sub_123", false), nil)

		_, err := f.service.ReactivateSubscription(ctx, user)

		assert.ErrorIs(t, err, customErr.ErrNotPendingCancellation)
	})
}

func TestBillingService_SwitchPlan(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: uuid.New(), Email: "test@example.com"}

	t.Run("switch resets billing cycle anchor", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).
			Return(activeSubscriptionRecord(user.ID, "sub_123", false), nil)
		f.gateway.On("GetSubscription", ctx, "sub_123").
			Return(stripeSubscription("sub_123", stripe.SubscriptionStatusActive, stripe.PriceRecurringIntervalMonth), nil)
		f.gateway.On("UpdateSubscription", ctx, "sub_123", mock.MatchedBy(func(req *provider.SubscriptionUpdateRequest) bool {
			// The re-price request carries the item and target price; the
			// gateway translates it into an immediate proration with the
			// billing cycle anchor moved to now.
			return req.SwitchItemID == "si_123" &&
				req.SwitchPriceID == "price_yearly" &&
				req.CancelAtPeriodEnd == nil
		})).Return(stripeSubscription("sub_123", stripe.SubscriptionStatusActive, stripe.PriceRecurringIntervalYear), nil)
		f.subs.On("Upsert", ctx, mock.MatchedBy(func(sub *model.Subscription) bool {
			return sub.Plan == model.SubscriptionPlanYearly
		})).Return(nil)

		sub, err := f.service.SwitchPlan(ctx, user, "yearly")

		assert.NoError(t, err)
		assert.Equal(t, model.SubscriptionPlanYearly, sub.Plan)
		f.credits.AssertNotCalled(t, "CreditCredits", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.gateway.AssertExpectations(t)
	})

	t.Run("same plan rejected", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).
			Return(activeSubscriptionRecord(user.ID, "sub_123", false), nil)

		_, err := f.service.SwitchPlan(ctx, user, "monthly")

		assert.ErrorIs(t, err, customErr.ErrSamePlan)
	})

	t.Run("rejected while cancellation pending", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetActiveByUserID", ctx, user.ID, mock.AnythingOfType("time.Time")).
			Return(activeSubscriptionRecord(user.ID, "sub_123", true), nil)

		_, err := f.service.SwitchPlan(ctx, user, "yearly")

		assert.ErrorIs(t, err, customErr.ErrCancellationPending)
	})
}

func TestBillingService_VerifySession(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: uuid.New(), Email: "test@example.com"}

	t.Run("already processed session short-circuits", func(t *testing.T) {
		f := newBillingFixture()
		sessionID := "cs_1"
		f.transactions.On("GetBySessionID", ctx, user.ID, "cs_1").
			Return(&model.Transaction{UserID: user.ID, StripeSessionID: &sessionID, Status: model.TransactionStatusCompleted}, nil)

		result, err := f.service.VerifySession(ctx, user, "cs_1")

		assert.NoError(t, err)
		assert.True(t, result.AlreadyProcessed)
		assert.Equal(t, "already_processed", result.Status)
		f.gateway.AssertNotCalled(t, "GetCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("session owned by another user rejected", func(t *testing.T) {
		f := newBillingFixture()
		f.transactions.On("GetBySessionID", ctx, user.ID, "cs_1").Return(nil, nil)
		f.gateway.On("GetCheckoutSession", ctx, "cs_1").
			Return(&stripe.CheckoutSession{ID: "cs_1", ClientReferenceID: uuid.NewString(), PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid}, nil)

		_, err := f.service.VerifySession(ctx, user, "cs_1")

		assert.ErrorIs(t, err, customErr.ErrSessionNotOwned)
	})

	t.Run("unpaid session rejected", func(t *testing.T) {
		f := newBillingFixture()
		f.transactions.On("GetBySessionID", ctx, user.ID, "cs_1").Return(nil, nil)
		f.gateway.On("GetCheckoutSession", ctx, "cs_1").
			Return(&stripe.CheckoutSession{ID: "cs_1", ClientReferenceID: user.ID.String(), PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid}, nil)

		_, err := f.service.VerifySession(ctx, user, "cs_1")

		assert.ErrorIs(t, err, customErr.ErrSessionNotPaid)
	})

	t.Run("paid session runs the shared completion path", func(t *testing.T) {
		f := newBillingFixture()
		f.transactions.On("GetBySessionID", ctx, user.ID, "cs_1").Return(nil, nil).Twice()
		f.gateway.On("GetCheckoutSession", ctx, "cs_1").
			Return(&stripe.CheckoutSession{
				ID:                "cs_1",
				ClientReferenceID: user.ID.String(),
				PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
				Mode:              stripe.CheckoutSessionModePayment,
				AmountTotal:       500,
				Currency:          stripe.CurrencyUSD,
				Metadata:          map[string]string{"pack": "small", "credits": "10"},
			}, nil)
		f.credits.On("CreditCredits", ctx, user.ID, model.CreditEntryKindPurchase, int64(10),
			mock.AnythingOfType("string"), mock.Anything, "cs_1").
			Return(&model.CreditEntry{UserID: user.ID, Kind: model.CreditEntryKindPurchase, Amount: 10, BalanceAfter: 10}, true, nil)
		f.transactions.On("Create", ctx, mock.MatchedBy(func(tx *model.Transaction) bool {
			return tx.Type == model.TransactionTypeCreditPurchase && *tx.StripeSessionID == "cs_1"
		})).Return(nil)

		result, err := f.service.VerifySession(ctx, user, "cs_1")

		assert.NoError(t, err)
		assert.Equal(t, "processed", result.Status)
		assert.False(t, result.AlreadyProcessed)
		f.credits.AssertExpectations(t)
	})
}

func TestBillingService_SyncSubscription(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: uuid.New(), Email: "test@example.com"}

	t.Run("no processor customer means nothing to sync", func(t *testing.T) {
		f := newBillingFixture()
		f.expectNoCustomer(ctx, user)

		result, err := f.service.SyncSubscription(ctx, user)

		assert.NoError(t, err)
		assert.False(t, result.Synced)
	})

	t.Run("no remote subscription means nothing to sync", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetLatestByUserID", ctx, user.ID).
			Return(activeSubscriptionRecord(user.ID, "sub_old", false), nil)
		f.gateway.On("ListActiveSubscriptions", ctx, "cus_123").Return([]*stripe.Subscription{}, nil)

		result, err := f.service.SyncSubscription(ctx, user)

		assert.NoError(t, err)
		assert.False(t, result.Synced)
		f.subs.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("remote subscription is mirrored", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetLatestByUserID", ctx, user.ID).
			Return(activeSubscriptionRecord(user.ID, "sub_old", false), nil)
		f.gateway.On("ListActiveSubscriptions", ctx, "cus_123").
			Return([]*stripe.Subscription{stripeSubscription("sub_new", stripe.SubscriptionStatusActive, stripe.PriceRecurringIntervalMonth)}, nil)
		f.subs.On("Upsert", ctx, mock.MatchedBy(func(sub *model.Subscription) bool {
			return *sub.StripeSubscriptionID == "sub_new"
		})).Return(nil)

		result, err := f.service.SyncSubscription(ctx, user)

		assert.NoError(t, err)
		assert.True(t, result.Synced)
		f.subs.AssertExpectations(t)
	})
}

func TestBillingService_SyncTransactions(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: uuid.New(), Email: "test@example.com"}

	t.Run("imports missing payments without granting credits", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetLatestByUserID", ctx, user.ID).
			Return(activeSubscriptionRecord(user.ID, "sub_123", false), nil)

		existing := &stripe.PaymentIntent{ID: "pi_known", Status: stripe.PaymentIntentStatusSucceeded, Amount: 500, Currency: stripe.CurrencyUSD}
		fresh := &stripe.PaymentIntent{ID: "pi_new", Status: stripe.PaymentIntentStatusSucceeded, Amount: 2000, Currency: stripe.CurrencyUSD}
		pending := &stripe.PaymentIntent{ID: "pi_pending", Status: stripe.PaymentIntentStatusProcessing}
		f.gateway.On("ListPaymentIntents", ctx, "cus_123", 100).
			Return([]*stripe.PaymentIntent{existing, fresh, pending}, nil)

		knownID := "pi_known"
		f.transactions.On("GetByPaymentIntentID", ctx, "pi_known").
			Return(&model.Transaction{UserID: user.ID, StripePaymentIntentID: &knownID}, nil)
		f.transactions.On("GetByPaymentIntentID", ctx, "pi_new").Return(nil, nil)
		f.transactions.On("Create", ctx, mock.MatchedBy(func(tx *model.Transaction) bool {
			return *tx.StripePaymentIntentID == "pi_new" &&
				tx.Type == model.TransactionTypeCreditPurchase &&
				tx.Status == model.TransactionStatusCompleted
		})).Return(nil)

		result, err := f.service.SyncTransactions(ctx, user)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		f.credits.AssertNotCalled(t, "CreditCredits", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.transactions.AssertExpectations(t)
	})

	t.Run("invoice-backed payment classified by billing reason", func(t *testing.T) {
		f := newBillingFixture()
		f.subs.On("GetLatestByUserID", ctx, user.ID).
			Return(activeSubscriptionRecord(user.ID, "sub_123", false), nil)

		pi := &stripe.PaymentIntent{
			ID:       "pi_renewal",
			Status:   stripe.PaymentIntentStatusSucceeded,
			Amount:   900,
			Currency: stripe.CurrencyUSD,
			Invoice:  &stripe.Invoice{ID: "in_7"},
		}
		f.gateway.On("ListPaymentIntents", ctx, "cus_123", 100).Return([]*stripe.PaymentIntent{pi}, nil)
		f.transactions.On("GetByPaymentIntentID", ctx, "pi_renewal").Return(nil, nil)
		f.gateway.On("GetInvoice", ctx, "in_7").Return(&stripe.Invoice{
			ID:            "in_7",
			BillingReason: stripe.InvoiceBillingReasonSubscriptionCycle,
			Subscription:  &stripe.Subscription{ID: "sub_123"},
		}, nil)
		f.transactions.On("Create", ctx, mock.MatchedBy(func(tx *model.Transaction) bool {
			return tx.Type == model.TransactionTypeSubscriptionRenewal &&
				*tx.StripeInvoiceID == "in_7" &&
				*tx.StripeSubscriptionID == "sub_123"
		})).Return(nil)

		result, err := f.service.SyncTransactions(ctx, user)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
	})
}
