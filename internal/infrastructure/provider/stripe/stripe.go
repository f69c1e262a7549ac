package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/invoice"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/subscription"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/domain/provider"
)

// Gateway implements provider.PaymentGateway against the Stripe API. Every
// outbound call runs inside a circuit breaker so a degraded processor fails
// fast instead of tying up request handlers.
type Gateway struct {
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker[any]
}

// NewGateway creates a Stripe gateway. The API key is expected to be set
// globally once at bootstrap (stripe.Key).
func NewGateway(logger *zap.Logger) *Gateway {
	settings := gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Gateway{
		logger:  logger,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func execute[T any](g *Gateway, op string, fn func() (T, error)) (T, error) {
	var zero T

	res, err := g.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			g.logger.Warn("Stripe circuit breaker rejected call", zap.String("operation", op))
		}
		return zero, fmt.Errorf("stripe %s: %w", op, err)
	}

	out, ok := res.(T)
	if !ok {
		return zero, nil
	}
	return out, nil
}

// CreateCheckoutSession opens a hosted checkout for a credit pack or a
// subscription plan.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req *provider.CheckoutSessionRequest) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(req.Mode)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.ClientReferenceID),
	}
	params.Context = ctx

	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	return execute(g, "checkout_session_create", func() (*stripe.CheckoutSession, error) {
		return checkoutsession.New(params)
	})
}

// GetCheckoutSession fetches a checkout session with its subscription and
// payment intent expanded.
func (g *Gateway) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")
	params.AddExpand("payment_intent")

	return execute(g, "checkout_session_get", func() (*stripe.CheckoutSession, error) {
		return checkoutsession.Get(sessionID, params)
	})
}

// GetSubscription fetches a subscription with its price expanded
func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price")

	return execute(g, "subscription_get", func() (*stripe.Subscription, error) {
		return subscription.Get(subscriptionID, params)
	})
}

// ListActiveSubscriptions returns the customer's active and trialing
// subscriptions.
func (g *Gateway) ListActiveSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.AddExpand("data.items.data.price")

	return execute(g, "subscription_list", func() ([]*stripe.Subscription, error) {
		var active []*stripe.Subscription
		iter := subscription.List(params)
		for iter.Next() {
			sub := iter.Subscription()
			if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
				active = append(active, sub)
			}
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return active, nil
	})
}

// UpdateSubscription mutates the processor-side subscription. A plan switch
// re-prices the item with immediate proration and resets the billing cycle
// anchor to now.
func (g *Gateway) UpdateSubscription(ctx context.Context, subscriptionID string, req *provider.SubscriptionUpdateRequest) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price")

	if req.CancelAtPeriodEnd != nil {
		params.CancelAtPeriodEnd = stripe.Bool(*req.CancelAtPeriodEnd)
	}

	if req.SwitchPriceID != "" {
		params.Items = []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(req.SwitchItemID),
				Price: stripe.String(req.SwitchPriceID),
			},
		}
		params.ProrationBehavior = stripe.String("always_invoice")
		params.BillingCycleAnchorNow = stripe.Bool(true)
	}

	return execute(g, "subscription_update", func() (*stripe.Subscription, error) {
		return subscription.Update(subscriptionID, params)
	})
}

// CreatePortalSession opens a billing portal session for the customer
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	return execute(g, "portal_session_create", func() (*stripe.BillingPortalSession, error) {
		return portalsession.New(params)
	})
}

// FindCustomerByEmail returns the first customer with the given email, or nil
func (g *Gateway) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	return execute(g, "customer_list", func() (*stripe.Customer, error) {
		iter := customer.List(params)
		for iter.Next() {
			return iter.Customer(), nil
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// GetInvoice fetches an invoice by ID
func (g *Gateway) GetInvoice(ctx context.Context, invoiceID string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx

	return execute(g, "invoice_get", func() (*stripe.Invoice, error) {
		return invoice.Get(invoiceID, params)
	})
}

// ListPaymentIntents returns the customer's recent payment intents
func (g *Gateway) ListPaymentIntents(ctx context.Context, customerID string, limit int) ([]*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentListParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	if limit > 0 {
		params.Limit = stripe.Int64(int64(limit))
	}

	return execute(g, "payment_intent_list", func() ([]*stripe.PaymentIntent, error) {
		var intents []*stripe.PaymentIntent
		iter := paymentintent.List(params)
		for iter.Next() {
			intents = append(intents, iter.PaymentIntent())
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return intents, nil
	})
}
