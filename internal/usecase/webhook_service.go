package usecase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/adapter/repository"
	"github.com/resumeforge/resumeforge-backend/internal/config"
	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	"github.com/resumeforge/resumeforge-backend/internal/domain/provider"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
	"github.com/resumeforge/resumeforge-backend/internal/metrics"
)

// WebhookService applies verified processor events to local state. Every
// handler is idempotent: a re-delivered event, or one whose business effect
// already exists (same session or invoice already journaled), succeeds
// without mutating anything. Transient storage errors propagate so the
// processor retries the delivery.
type WebhookService struct {
	webhookRepo      repository.WebhookRepository
	creditRepo       domainRepo.CreditRepository
	transactionRepo  domainRepo.TransactionRepository
	subscriptionRepo domainRepo.SubscriptionRepository
	subscriptionSvc  *SubscriptionService
	gateway          provider.PaymentGateway
	billing          *config.BillingConfig
	metrics          metrics.BillingMetrics
	logger           *zap.Logger
}

// NewWebhookService creates a new webhook service instance
func NewWebhookService(
	webhookRepo repository.WebhookRepository,
	creditRepo domainRepo.CreditRepository,
	transactionRepo domainRepo.TransactionRepository,
	subscriptionRepo domainRepo.SubscriptionRepository,
	subscriptionSvc *SubscriptionService,
	gateway provider.PaymentGateway,
	billing *config.BillingConfig,
	m metrics.BillingMetrics,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		webhookRepo:      webhookRepo,
		creditRepo:       creditRepo,
		transactionRepo:  transactionRepo,
		subscriptionRepo: subscriptionRepo,
		subscriptionSvc:  subscriptionSvc,
		gateway:          gateway,
		billing:          billing,
		metrics:          m,
		logger:           logger,
	}
}

// HandleEvent processes a signature-verified processor event. Returning an
// error signals the processor to retry the delivery.
func (s *WebhookService) HandleEvent(ctx context.Context, event stripe.Event) error {
	eventType := string(event.Type)

	if err := s.webhookRepo.SaveEvent(ctx, event.ID, eventType, event.Data.Raw); err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}

	existing, err := s.webhookRepo.GetEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to load webhook event: %w", err)
	}
	if existing != nil && existing.Status == model.WebhookStatusCompleted {
		s.logger.Info("Webhook event already processed",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType))
		s.metrics.IncWebhookEvent(eventType, "duplicate")
		return nil
	}

	decoded, err := decodeBillingEvent(event)
	if err != nil {
		s.markFailed(ctx, event.ID, err)
		s.metrics.IncWebhookEvent(eventType, "failed")
		return err
	}

	switch e := decoded.(type) {
	case checkoutCompletedEvent:
		err = s.handleCheckoutCompleted(ctx, &e.Session)
	case subscriptionUpdatedEvent:
		err = s.handleSubscriptionUpdated(ctx, &e.Subscription)
	case subscriptionDeletedEvent:
		err = s.handleSubscriptionDeleted(ctx, &e.Subscription)
	case invoicePaidEvent:
		err = s.handleInvoicePaid(ctx, &e.Invoice)
	case invoiceFailedEvent:
		err = s.handleInvoiceFailed(ctx, &e.Invoice)
	case unhandledEvent:
		s.logger.Debug("Ignoring webhook event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType))
	}

	if err != nil {
		s.markFailed(ctx, event.ID, err)
		s.metrics.IncWebhookEvent(eventType, "failed")
		return err
	}

	if markErr := s.webhookRepo.MarkProcessed(ctx, event.ID); markErr != nil {
		s.logger.Error("Failed to mark webhook event processed",
			zap.String("event_id", event.ID),
			zap.Error(markErr))
	}
	s.metrics.IncWebhookEvent(eventType, "processed")
	return nil
}

func (s *WebhookService) markFailed(ctx context.Context, eventID string, cause error) {
	if err := s.webhookRepo.MarkFailed(ctx, eventID, cause); err != nil {
		s.logger.Error("Failed to mark webhook event failed",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		s.logger.Info("Skipping unpaid checkout session", zap.String("session_id", session.ID))
		return nil
	}
	return s.ProcessCheckoutSession(ctx, session)
}

// ProcessCheckoutSession applies a completed checkout session: grants the
// purchased credits or mirrors the new subscription, and journals the
// payment. It is the shared path behind both the webhook delivery and the
// synchronous session verification endpoint, and is idempotent on the
// session id.
func (s *WebhookService) ProcessCheckoutSession(ctx context.Context, session *stripe.CheckoutSession) error {
	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		return fmt.Errorf("checkout session %s has no usable client reference: %w", session.ID, err)
	}

	existing, err := s.transactionRepo.GetBySessionID(ctx, userID, session.ID)
	if err != nil {
		return fmt.Errorf("failed to check session transaction: %w", err)
	}
	if existing != nil && existing.Status == model.TransactionStatusCompleted {
		s.logger.Info("Checkout session already processed",
			zap.String("session_id", session.ID),
			zap.String("user_id", userID.String()))
		return nil
	}

	switch session.Mode {
	case stripe.CheckoutSessionModePayment:
		return s.processCreditPurchase(ctx, userID, session)
	case stripe.CheckoutSessionModeSubscription:
		return s.processSubscriptionCheckout(ctx, userID, session)
	default:
		s.logger.Warn("Checkout session with unexpected mode",
			zap.String("session_id", session.ID),
			zap.String("mode", string(session.Mode)))
		return nil
	}
}

func (s *WebhookService) processCreditPurchase(ctx context.Context, userID uuid.UUID, session *stripe.CheckoutSession) error {
	packKey, credits, err := s.packFromSession(session)
	if err != nil {
		return err
	}

	description := fmt.Sprintf("Purchased %d credits (%s pack)", credits, packKey)
	_, created, err := s.creditRepo.CreditCredits(ctx, userID,
		model.CreditEntryKindPurchase, credits, description,
		model.JSONB{"pack": packKey, "session_id": session.ID},
		session.ID)
	if err != nil {
		return fmt.Errorf("failed to credit purchase: %w", err)
	}
	if created {
		s.metrics.IncCreditsGranted(string(model.CreditEntryKindPurchase), credits)
	}

	tx := &model.Transaction{
		UserID:          userID,
		StripeSessionID: &session.ID,
		Type:            model.TransactionTypeCreditPurchase,
		Status:          model.TransactionStatusCompleted,
		Amount:          amountFromCents(session.AmountTotal),
		Currency:        string(session.Currency),
		CreditsAdded:    credits,
		Description:     description,
		Metadata:        model.JSONB{"pack": packKey},
	}
	if session.PaymentIntent != nil {
		tx.StripePaymentIntentID = &session.PaymentIntent.ID
	}
	if err := s.transactionRepo.Create(ctx, tx); err != nil {
		return fmt.Errorf("failed to journal credit purchase: %w", err)
	}

	s.logger.Info("Credit purchase processed",
		zap.String("user_id", userID.String()),
		zap.String("session_id", session.ID),
		zap.String("pack", packKey),
		zap.Int64("credits", credits))

	return nil
}

func (s *WebhookService) processSubscriptionCheckout(ctx context.Context, userID uuid.UUID, session *stripe.CheckoutSession) error {
	if session.Subscription == nil {
		return fmt.Errorf("subscription checkout session %s carries no subscription", session.ID)
	}

	stripeSub, err := s.gateway.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch subscription %s: %w", session.Subscription.ID, err)
	}

	// The allotment lands before the entitlement mirror: an active
	// subscription must never be observable without its paired credit
	// grant. The grant is keyed by session id, so the retry after a
	// failed upsert re-enters here as a no-op.
	planKey, plan, ok := s.planForSubscription(stripeSub)
	if !ok {
		s.logger.Warn("Subscription price not in plan catalog, no credits granted",
			zap.String("session_id", session.ID),
			zap.String("stripe_subscription_id", stripeSub.ID))
	} else if plan.Credits > 0 {
		description := fmt.Sprintf("Subscription started (%s plan): %d credits", planKey, plan.Credits)
		_, created, err := s.creditRepo.CreditCredits(ctx, userID,
			model.CreditEntryKindAddition, plan.Credits, description,
			model.JSONB{"plan": planKey, "session_id": session.ID},
			session.ID)
		if err != nil {
			return fmt.Errorf("failed to credit subscription allotment: %w", err)
		}
		if created {
			s.metrics.IncCreditsGranted(string(model.CreditEntryKindAddition), plan.Credits)
		}
	}

	sub, err := s.subscriptionSvc.UpsertFromStripe(ctx, userID, stripeSub)
	if err != nil {
		return err
	}

	tx := &model.Transaction{
		UserID:               userID,
		StripeSessionID:      &session.ID,
		StripeSubscriptionID: &stripeSub.ID,
		Type:                 model.TransactionTypeSubscriptionPayment,
		Status:               model.TransactionStatusCompleted,
		Amount:               amountFromCents(session.AmountTotal),
		Currency:             string(session.Currency),
		Description:          fmt.Sprintf("Subscription payment (%s plan)", sub.Plan),
		Metadata:             model.JSONB{"plan": string(sub.Plan)},
	}
	if ok {
		tx.CreditsAdded = plan.Credits
		p := planKey
		tx.Plan = &p
	}
	if err := s.transactionRepo.Create(ctx, tx); err != nil {
		return fmt.Errorf("failed to journal subscription payment: %w", err)
	}

	s.logger.Info("Subscription checkout processed",
		zap.String("user_id", userID.String()),
		zap.String("session_id", session.ID),
		zap.String("stripe_subscription_id", stripeSub.ID))

	return nil
}

func (s *WebhookService) handleSubscriptionUpdated(ctx context.Context, stripeSub *stripe.Subscription) error {
	record, err := s.subscriptionRepo.GetByStripeSubscriptionID(ctx, stripeSub.ID)
	if err != nil {
		return fmt.Errorf("failed to look up subscription: %w", err)
	}
	if record == nil {
		// Mirror not written yet; the checkout-completed path owns creation.
		s.logger.Warn("Update event for unknown subscription",
			zap.String("stripe_subscription_id", stripeSub.ID))
		return nil
	}

	_, err = s.subscriptionSvc.UpsertFromStripe(ctx, record.UserID, stripeSub)
	return err
}

func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, stripeSub *stripe.Subscription) error {
	record, err := s.subscriptionRepo.GetByStripeSubscriptionID(ctx, stripeSub.ID)
	if err != nil {
		return fmt.Errorf("failed to look up subscription: %w", err)
	}
	if record == nil {
		s.logger.Warn("Deletion event for unknown subscription",
			zap.String("stripe_subscription_id", stripeSub.ID))
		return nil
	}

	return s.subscriptionSvc.HandleExpiry(ctx, record.UserID, stripeSub.ID)
}

func (s *WebhookService) handleInvoicePaid(ctx context.Context, invoice *stripe.Invoice) error {
	if invoice.BillingReason == stripe.InvoiceBillingReasonSubscriptionCreate {
		// Initial payment is handled by the checkout-completed path.
		return nil
	}
	if invoice.AmountPaid == 0 {
		s.logger.Debug("Skipping zero-amount invoice", zap.String("invoice_id", invoice.ID))
		return nil
	}
	if invoice.Subscription == nil {
		s.logger.Debug("Skipping invoice without subscription", zap.String("invoice_id", invoice.ID))
		return nil
	}

	existing, err := s.transactionRepo.GetByInvoiceID(ctx, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to check invoice transaction: %w", err)
	}
	if existing != nil {
		s.logger.Info("Invoice already processed", zap.String("invoice_id", invoice.ID))
		return nil
	}

	record, err := s.subscriptionRepo.GetByStripeSubscriptionID(ctx, invoice.Subscription.ID)
	if err != nil {
		return fmt.Errorf("failed to look up subscription: %w", err)
	}
	if record == nil {
		// The checkout event may still be in flight; let the processor retry.
		return fmt.Errorf("invoice %s references unknown subscription %s",
			invoice.ID, invoice.Subscription.ID)
	}
	userID := record.UserID

	stripeSub, err := s.gateway.GetSubscription(ctx, invoice.Subscription.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch subscription %s: %w", invoice.Subscription.ID, err)
	}
	if _, err := s.subscriptionSvc.UpsertFromStripe(ctx, userID, stripeSub); err != nil {
		return err
	}

	txType := model.TransactionTypeSubscriptionPayment
	switch invoice.BillingReason {
	case stripe.InvoiceBillingReasonSubscriptionCycle:
		txType = model.TransactionTypeSubscriptionRenewal
	case stripe.InvoiceBillingReasonSubscriptionUpdate:
		txType = model.TransactionTypeSubscriptionSwitch
	}

	planKey, plan, ok := s.planForSubscription(stripeSub)
	var credits int64
	if ok && plan.Credits > 0 {
		credits = plan.Credits
		description := fmt.Sprintf("Subscription %s (%s plan): %d credits", txType, planKey, credits)
		_, created, err := s.creditRepo.CreditCredits(ctx, userID,
			model.CreditEntryKindAddition, credits, description,
			model.JSONB{"plan": planKey, "invoice_id": invoice.ID},
			invoice.ID)
		if err != nil {
			return fmt.Errorf("failed to credit renewal allotment: %w", err)
		}
		if created {
			s.metrics.IncCreditsGranted(string(model.CreditEntryKindAddition), credits)
		}
	}

	tx := &model.Transaction{
		UserID:               userID,
		StripeInvoiceID:      &invoice.ID,
		StripeSubscriptionID: &invoice.Subscription.ID,
		Type:                 txType,
		Status:               model.TransactionStatusCompleted,
		Amount:               amountFromCents(invoice.AmountPaid),
		Currency:             string(invoice.Currency),
		CreditsAdded:         credits,
		Description:          fmt.Sprintf("Invoice %s paid", invoice.ID),
		Metadata:             model.JSONB{"billing_reason": string(invoice.BillingReason)},
	}
	if ok {
		p := planKey
		tx.Plan = &p
	}
	if invoice.PaymentIntent != nil {
		tx.StripePaymentIntentID = &invoice.PaymentIntent.ID
	}
	if err := s.transactionRepo.Create(ctx, tx); err != nil {
		return fmt.Errorf("failed to journal invoice payment: %w", err)
	}

	s.logger.Info("Invoice payment processed",
		zap.String("user_id", userID.String()),
		zap.String("invoice_id", invoice.ID),
		zap.String("type", string(txType)),
		zap.Int64("credits", credits))

	return nil
}

func (s *WebhookService) handleInvoiceFailed(ctx context.Context, invoice *stripe.Invoice) error {
	if invoice.Subscription == nil {
		return nil
	}

	record, err := s.subscriptionRepo.GetByStripeSubscriptionID(ctx, invoice.Subscription.ID)
	if err != nil {
		return fmt.Errorf("failed to look up subscription: %w", err)
	}
	if record == nil {
		s.logger.Warn("Failed invoice for unknown subscription",
			zap.String("invoice_id", invoice.ID),
			zap.String("stripe_subscription_id", invoice.Subscription.ID))
		return nil
	}

	if err := s.subscriptionRepo.UpdateStatus(ctx, invoice.Subscription.ID, model.SubscriptionStatusPastDue); err != nil {
		return fmt.Errorf("failed to mark subscription past due: %w", err)
	}

	existing, err := s.transactionRepo.GetByInvoiceID(ctx, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to check invoice transaction: %w", err)
	}
	if existing == nil {
		tx := &model.Transaction{
			UserID:               record.UserID,
			StripeInvoiceID:      &invoice.ID,
			StripeSubscriptionID: &invoice.Subscription.ID,
			Type:                 model.TransactionTypeSubscriptionRenewal,
			Status:               model.TransactionStatusFailed,
			Amount:               amountFromCents(invoice.AmountDue),
			Currency:             string(invoice.Currency),
			Description:          fmt.Sprintf("Invoice %s payment failed", invoice.ID),
			Metadata:             model.JSONB{"billing_reason": string(invoice.BillingReason)},
		}
		if err := s.transactionRepo.Create(ctx, tx); err != nil {
			return fmt.Errorf("failed to journal failed invoice: %w", err)
		}
	}

	s.logger.Warn("Invoice payment failed",
		zap.String("user_id", record.UserID.String()),
		zap.String("invoice_id", invoice.ID))

	return nil
}

// packFromSession resolves the purchased pack and credit amount from the
// session metadata written at checkout creation.
func (s *WebhookService) packFromSession(session *stripe.CheckoutSession) (string, int64, error) {
	packKey := session.Metadata["pack"]
	if raw, ok := session.Metadata["credits"]; ok {
		if credits, err := strconv.ParseInt(raw, 10, 64); err == nil && credits > 0 {
			return packKey, credits, nil
		}
	}
	if pack, ok := s.billing.Pack(packKey); ok {
		return packKey, pack.Credits, nil
	}
	return "", 0, fmt.Errorf("checkout session %s resolves to no credit pack", session.ID)
}

func (s *WebhookService) planForSubscription(stripeSub *stripe.Subscription) (string, config.PlanConfig, bool) {
	if stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return "", config.PlanConfig{}, false
	}
	item := stripeSub.Items.Data[0]
	if item.Price == nil {
		return "", config.PlanConfig{}, false
	}
	return s.billing.PlanByPriceID(item.Price.ID)
}

func amountFromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
