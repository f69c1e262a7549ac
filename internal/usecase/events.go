package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
)

// billingEvent is the closed set of processor events this service acts on.
// Decoding happens once, up front; handlers switch on the concrete type and
// never touch raw payloads.
type billingEvent interface {
	isBillingEvent()
}

type checkoutCompletedEvent struct {
	Session stripe.CheckoutSession
}

type subscriptionUpdatedEvent struct {
	Subscription stripe.Subscription
}

type subscriptionDeletedEvent struct {
	Subscription stripe.Subscription
}

type invoicePaidEvent struct {
	Invoice stripe.Invoice
}

type invoiceFailedEvent struct {
	Invoice stripe.Invoice
}

type unhandledEvent struct {
	Type stripe.EventType
}

func (checkoutCompletedEvent) isBillingEvent()   {}
func (subscriptionUpdatedEvent) isBillingEvent() {}
func (subscriptionDeletedEvent) isBillingEvent() {}
func (invoicePaidEvent) isBillingEvent()         {}
func (invoiceFailedEvent) isBillingEvent()       {}
func (unhandledEvent) isBillingEvent()           {}

// decodeBillingEvent maps a verified processor event onto the closed union.
// Unknown event types decode to unhandledEvent rather than an error so the
// processor is told the delivery succeeded.
func decodeBillingEvent(event stripe.Event) (billingEvent, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		return checkoutCompletedEvent{Session: session}, nil

	case stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		return subscriptionUpdatedEvent{Subscription: sub}, nil

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		return subscriptionDeletedEvent{Subscription: sub}, nil

	case stripe.EventTypeInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("failed to decode invoice: %w", err)
		}
		return invoicePaidEvent{Invoice: invoice}, nil

	case stripe.EventTypeInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("failed to decode invoice: %w", err)
		}
		return invoiceFailedEvent{Invoice: invoice}, nil

	default:
		return unhandledEvent{Type: event.Type}, nil
	}
}
