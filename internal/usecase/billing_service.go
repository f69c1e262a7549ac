package usecase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/config"
	customErr "github.com/resumeforge/resumeforge-backend/internal/domain/errors"
	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	"github.com/resumeforge/resumeforge-backend/internal/domain/provider"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
	"github.com/resumeforge/resumeforge-backend/internal/metrics"
)

// CheckoutResult is the hosted-checkout handoff returned to the client.
type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// VerifyResult reports the outcome of a synchronous session verification.
type VerifyResult struct {
	Status           string `json:"status"`
	AlreadyProcessed bool   `json:"already_processed"`
}

// SyncResult reports the outcome of a manual reconciliation request.
type SyncResult struct {
	Synced  bool   `json:"synced"`
	Message string `json:"message"`
}

// TransactionSyncResult reports how many journal rows a sync imported.
type TransactionSyncResult struct {
	Imported int `json:"imported"`
}

// BillingService drives the synchronous conversations with the payment
// processor: opening checkouts, mutating subscriptions, and reconciling
// local state against the processor on demand. Gateway failures leave no
// local writes behind.
type BillingService struct {
	gateway          provider.PaymentGateway
	subscriptionRepo domainRepo.SubscriptionRepository
	transactionRepo  domainRepo.TransactionRepository
	subscriptionSvc  *SubscriptionService
	webhookSvc       *WebhookService
	billing          *config.BillingConfig
	clientURL        string
	metrics          metrics.BillingMetrics
	logger           *zap.Logger
}

// NewBillingService creates a new billing service instance
func NewBillingService(
	gateway provider.PaymentGateway,
	subscriptionRepo domainRepo.SubscriptionRepository,
	transactionRepo domainRepo.TransactionRepository,
	subscriptionSvc *SubscriptionService,
	webhookSvc *WebhookService,
	billing *config.BillingConfig,
	clientURL string,
	m metrics.BillingMetrics,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		gateway:          gateway,
		subscriptionRepo: subscriptionRepo,
		transactionRepo:  transactionRepo,
		subscriptionSvc:  subscriptionSvc,
		webhookSvc:       webhookSvc,
		billing:          billing,
		clientURL:        clientURL,
		metrics:          m,
		logger:           logger,
	}
}

// CreateCreditCheckout opens a hosted checkout for a one-time credit pack.
func (s *BillingService) CreateCreditCheckout(ctx context.Context, user *model.User, packKey string) (*CheckoutResult, error) {
	pack, ok := s.billing.Pack(packKey)
	if !ok {
		return nil, customErr.ErrUnknownPack
	}

	customerID, err := s.resolveCustomerID(ctx, user)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, &provider.CheckoutSessionRequest{
		Mode:              provider.CheckoutModePayment,
		PriceID:           pack.PriceID,
		ClientReferenceID: user.ID.String(),
		CustomerID:        customerID,
		CustomerEmail:     user.Email,
		SuccessURL:        s.clientURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.clientURL + "/billing/cancel",
		Metadata: map[string]string{
			"pack":    packKey,
			"credits": strconv.FormatInt(pack.Credits, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.metrics.IncCheckoutSession(string(provider.CheckoutModePayment))

	s.logger.Info("Credit checkout created",
		zap.String("user_id", user.ID.String()),
		zap.String("pack", packKey),
		zap.String("session_id", session.ID))

	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// CreateSubscriptionCheckout opens a hosted checkout for a subscription
// plan. Rejected when an active subscription already exists either locally
// or at the processor.
func (s *BillingService) CreateSubscriptionCheckout(ctx context.Context, user *model.User, planKey string) (*CheckoutResult, error) {
	plan, ok := s.billing.Plan(planKey)
	if !ok {
		return nil, customErr.ErrUnknownPlan
	}

	active, err := s.subscriptionSvc.GetActive(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, customErr.ErrAlreadySubscribed
	}

	customerID, err := s.resolveCustomerID(ctx, user)
	if err != nil {
		return nil, err
	}
	if customerID != "" {
		remote, err := s.gateway.ListActiveSubscriptions(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("failed to check processor subscriptions: %w", err)
		}
		if len(remote) > 0 {
			return nil, customErr.ErrAlreadySubscribed
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, &provider.CheckoutSessionRequest{
		Mode:              provider.CheckoutModeSubscription,
		PriceID:           plan.PriceID,
		ClientReferenceID: user.ID.String(),
		CustomerID:        customerID,
		CustomerEmail:     user.Email,
		SuccessURL:        s.clientURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.clientURL + "/billing/cancel",
		Metadata:          map[string]string{"plan": planKey},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	if err := s.ensureIncompleteRecord(ctx, user, customerID, planKey); err != nil {
		s.logger.Warn("Failed to write incomplete subscription record",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}

	s.metrics.IncCheckoutSession(string(provider.CheckoutModeSubscription))

	s.logger.Info("Subscription checkout created",
		zap.String("user_id", user.ID.String()),
		zap.String("plan", planKey),
		zap.String("session_id", session.ID))

	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// ensureIncompleteRecord writes the placeholder row for a first checkout
// attempt. Repeat attempts reuse the existing placeholder.
func (s *BillingService) ensureIncompleteRecord(ctx context.Context, user *model.User, customerID, planKey string) error {
	latest, err := s.subscriptionRepo.GetLatestByUserID(ctx, user.ID)
	if err != nil {
		return err
	}
	if latest != nil && latest.StripeSubscriptionID == nil {
		return nil
	}

	plan := model.SubscriptionPlanMonthly
	if planKey == string(model.SubscriptionPlanYearly) {
		plan = model.SubscriptionPlanYearly
	}

	return s.subscriptionRepo.Create(ctx, &model.Subscription{
		UserID:           user.ID,
		StripeCustomerID: customerID,
		Plan:             plan,
		Status:           model.SubscriptionStatusIncomplete,
	})
}

// CancelSubscription schedules cancellation at the end of the current
// billing period. Entitlements stay intact until then.
func (s *BillingService) CancelSubscription(ctx context.Context, user *model.User) (*model.Subscription, error) {
	sub, err := s.subscriptionSvc.GetActive(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.StripeSubscriptionID == nil {
		return nil, customErr.ErrNoActiveSubscription
	}
	if sub.CancelAtPeriodEnd {
		return nil, customErr.ErrCancellationPending
	}

	cancel := true
	if _, err := s.gateway.UpdateSubscription(ctx, *sub.StripeSubscriptionID, &provider.SubscriptionUpdateRequest{
		CancelAtPeriodEnd: &cancel,
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule cancellation: %w", err)
	}

	if err := s.subscriptionRepo.SetCancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID, true); err != nil {
		return nil, err
	}
	sub.CancelAtPeriodEnd = true

	s.metrics.IncReconciliation("cancel", "success")

	s.logger.Info("Subscription cancellation scheduled",
		zap.String("user_id", user.ID.String()),
		zap.String("stripe_subscription_id", *sub.StripeSubscriptionID))

	return sub, nil
}

// ReactivateSubscription clears a scheduled cancellation before the period
// ends.
func (s *BillingService) ReactivateSubscription(ctx context.Context, user *model.User) (*model.Subscription, error) {
	sub, err := s.subscriptionSvc.GetActive(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.StripeSubscriptionID == nil {
		return nil, customErr.ErrNoActiveSubscription
	}
	if !sub.CancelAtPeriodEnd {
		return nil, customErr.ErrNotPendingCancellation
	}

	cancel := false
	if _, err := s.gateway.UpdateSubscription(ctx, *sub.StripeSubscriptionID, &provider.SubscriptionUpdateRequest{
		CancelAtPeriodEnd: &cancel,
	}); err != nil {
		return nil, fmt.Errorf("failed to reactivate subscription: %w", err)
	}

	if err := s.subscriptionRepo.SetCancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID, false); err != nil {
		return nil, err
	}
	sub.CancelAtPeriodEnd = false

	s.metrics.IncReconciliation("reactivate", "success")

	s.logger.Info("Subscription reactivated",
		zap.String("user_id", user.ID.String()),
		zap.String("stripe_subscription_id", *sub.StripeSubscriptionID))

	return sub, nil
}

// SwitchPlan re-prices the active subscription to the requested plan with
// immediate proration and a billing cycle anchor reset to now. Credits for
// the new plan arrive through the resulting invoice event, never here.
func (s *BillingService) SwitchPlan(ctx context.Context, user *model.User, planKey string) (*model.Subscription, error) {
	plan, ok := s.billing.Plan(planKey)
	if !ok {
		return nil, customErr.ErrUnknownPlan
	}

	sub, err := s.subscriptionSvc.GetActive(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.StripeSubscriptionID == nil {
		return nil, customErr.ErrNoActiveSubscription
	}
	if sub.CancelAtPeriodEnd {
		return nil, customErr.ErrCancellationPending
	}
	if string(sub.Plan) == planKey {
		return nil, customErr.ErrSamePlan
	}

	stripeSub, err := s.gateway.GetSubscription(ctx, *sub.StripeSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	if stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", *sub.StripeSubscriptionID)
	}

	updated, err := s.gateway.UpdateSubscription(ctx, *sub.StripeSubscriptionID, &provider.SubscriptionUpdateRequest{
		SwitchItemID:  stripeSub.Items.Data[0].ID,
		SwitchPriceID: plan.PriceID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to switch plan: %w", err)
	}

	mirrored, err := s.subscriptionSvc.UpsertFromStripe(ctx, user.ID, updated)
	if err != nil {
		return nil, err
	}

	s.metrics.IncReconciliation("switch_plan", "success")

	s.logger.Info("Subscription plan switched",
		zap.String("user_id", user.ID.String()),
		zap.String("stripe_subscription_id", *sub.StripeSubscriptionID),
		zap.String("from", string(sub.Plan)),
		zap.String("to", planKey))

	return mirrored, nil
}

// CreatePortalSession opens a processor billing portal session for the user.
func (s *BillingService) CreatePortalSession(ctx context.Context, user *model.User) (string, error) {
	customerID, err := s.resolveCustomerID(ctx, user)
	if err != nil {
		return "", err
	}
	if customerID == "" {
		return "", customErr.ErrNoCustomer
	}

	portal, err := s.gateway.CreatePortalSession(ctx, customerID, s.clientURL+"/account/billing")
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}

	return portal.URL, nil
}

// VerifySession is the synchronous fallback for a completed checkout: the
// client returns from the hosted page before the webhook lands and asks for
// the session to be applied now. Idempotent with the webhook path.
func (s *BillingService) VerifySession(ctx context.Context, user *model.User, sessionID string) (*VerifyResult, error) {
	existing, err := s.transactionRepo.GetBySessionID(ctx, user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session transaction: %w", err)
	}
	if existing != nil && existing.Status == model.TransactionStatusCompleted {
		return &VerifyResult{Status: "already_processed", AlreadyProcessed: true}, nil
	}

	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkout session: %w", err)
	}
	if session.ClientReferenceID != user.ID.String() {
		return nil, customErr.ErrSessionNotOwned
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, customErr.ErrSessionNotPaid
	}

	if err := s.webhookSvc.ProcessCheckoutSession(ctx, session); err != nil {
		s.metrics.IncReconciliation("verify_session", "failure")
		return nil, err
	}

	s.metrics.IncReconciliation("verify_session", "success")
	return &VerifyResult{Status: "processed"}, nil
}

// SyncSubscription pulls the user's subscription state from the processor
// and mirrors it locally. Returns an informational result when there is
// nothing to sync.
func (s *BillingService) SyncSubscription(ctx context.Context, user *model.User) (*SyncResult, error) {
	customerID, err := s.resolveCustomerID(ctx, user)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return &SyncResult{Synced: false, Message: "no payment processor customer found, nothing to sync"}, nil
	}

	remote, err := s.gateway.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		s.metrics.IncReconciliation("subscription_sync", "failure")
		return nil, fmt.Errorf("failed to list processor subscriptions: %w", err)
	}
	if len(remote) == 0 {
		s.metrics.IncReconciliation("subscription_sync", "noop")
		return &SyncResult{Synced: false, Message: "no active subscription at the payment processor"}, nil
	}

	if _, err := s.subscriptionSvc.UpsertFromStripe(ctx, user.ID, remote[0]); err != nil {
		s.metrics.IncReconciliation("subscription_sync", "failure")
		return nil, err
	}

	s.metrics.IncReconciliation("subscription_sync", "success")
	return &SyncResult{Synced: true, Message: "subscription synchronized"}, nil
}

// SyncTransactions imports journal rows for processor payments that never
// made it into the local journal. Import only: no credits are granted here.
func (s *BillingService) SyncTransactions(ctx context.Context, user *model.User) (*TransactionSyncResult, error) {
	customerID, err := s.resolveCustomerID(ctx, user)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return &TransactionSyncResult{Imported: 0}, nil
	}

	intents, err := s.gateway.ListPaymentIntents(ctx, customerID, 100)
	if err != nil {
		s.metrics.IncReconciliation("transaction_sync", "failure")
		return nil, fmt.Errorf("failed to list payment intents: %w", err)
	}

	imported := 0
	for _, pi := range intents {
		if pi.Status != stripe.PaymentIntentStatusSucceeded {
			continue
		}

		existing, err := s.transactionRepo.GetByPaymentIntentID(ctx, pi.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check payment intent: %w", err)
		}
		if existing != nil {
			continue
		}

		tx, err := s.transactionFromPaymentIntent(ctx, user, pi)
		if err != nil {
			return nil, err
		}
		if err := s.transactionRepo.Create(ctx, tx); err != nil {
			return nil, fmt.Errorf("failed to import transaction: %w", err)
		}
		imported++
	}

	s.metrics.IncReconciliation("transaction_sync", "success")

	if imported > 0 {
		s.logger.Info("Transactions imported from processor",
			zap.String("user_id", user.ID.String()),
			zap.Int("imported", imported))
	}

	return &TransactionSyncResult{Imported: imported}, nil
}

// transactionFromPaymentIntent classifies an imported payment by its
// invoice's billing reason; intents without an invoice are one-time credit
// purchases.
func (s *BillingService) transactionFromPaymentIntent(ctx context.Context, user *model.User, pi *stripe.PaymentIntent) (*model.Transaction, error) {
	tx := &model.Transaction{
		UserID:                user.ID,
		StripePaymentIntentID: &pi.ID,
		Type:                  model.TransactionTypeCreditPurchase,
		Status:                model.TransactionStatusCompleted,
		Amount:                amountFromCents(pi.Amount),
		Currency:              string(pi.Currency),
		Description:           "Imported from payment processor",
		Metadata:              model.JSONB{"imported": true},
	}

	if pi.Invoice == nil {
		return tx, nil
	}

	invoice, err := s.gateway.GetInvoice(ctx, pi.Invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice %s: %w", pi.Invoice.ID, err)
	}

	tx.StripeInvoiceID = &invoice.ID
	if invoice.Subscription != nil {
		tx.StripeSubscriptionID = &invoice.Subscription.ID
	}
	tx.Metadata["billing_reason"] = string(invoice.BillingReason)

	switch invoice.BillingReason {
	case stripe.InvoiceBillingReasonSubscriptionCycle:
		tx.Type = model.TransactionTypeSubscriptionRenewal
	case stripe.InvoiceBillingReasonSubscriptionUpdate:
		tx.Type = model.TransactionTypeSubscriptionSwitch
	default:
		tx.Type = model.TransactionTypeSubscriptionPayment
	}

	return tx, nil
}

// resolveCustomerID finds the processor customer for a user: the latest
// local subscription record first, then an email lookup at the processor.
// Empty when the user has never touched the processor.
func (s *BillingService) resolveCustomerID(ctx context.Context, user *model.User) (string, error) {
	latest, err := s.subscriptionRepo.GetLatestByUserID(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve customer: %w", err)
	}
	if latest != nil && latest.StripeCustomerID != "" {
		return latest.StripeCustomerID, nil
	}

	customer, err := s.gateway.FindCustomerByEmail(ctx, user.Email)
	if err != nil {
		return "", fmt.Errorf("failed to look up processor customer: %w", err)
	}
	if customer == nil {
		return "", nil
	}
	return customer.ID, nil
}
