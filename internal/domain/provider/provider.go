package provider

import (
	"context"

	"github.com/stripe/stripe-go/v79"
)

// CheckoutMode distinguishes one-time credit purchases from subscriptions.
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// CheckoutSessionRequest carries everything needed to open a hosted checkout.
// ClientReferenceID holds the local user id so the asynchronous completion
// event can be attributed without guessing.
type CheckoutSessionRequest struct {
	Mode              CheckoutMode
	PriceID           string
	ClientReferenceID string
	CustomerID        string // optional, reuse an existing processor customer
	CustomerEmail     string // used when CustomerID is empty
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

// SubscriptionUpdateRequest mutates a processor-side subscription. When
// SwitchItemID/SwitchPriceID are set the subscription item is re-priced with
// immediate proration and the billing cycle anchor reset to now.
type SubscriptionUpdateRequest struct {
	CancelAtPeriodEnd *bool
	SwitchItemID      string
	SwitchPriceID     string
}

// PaymentGateway is the synchronous surface of the external payment
// processor. All local state mutation stays with the callers: a gateway
// error must never leave partial local writes behind.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)

	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, req *SubscriptionUpdateRequest) (*stripe.Subscription, error)

	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error)
	FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error)

	GetInvoice(ctx context.Context, invoiceID string) (*stripe.Invoice, error)
	ListPaymentIntents(ctx context.Context, customerID string, limit int) ([]*stripe.PaymentIntent, error)
}
