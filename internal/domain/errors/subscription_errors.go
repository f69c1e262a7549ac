package errors

import "errors"

var (
	// ErrNoActiveSubscription indicates that the user has no active subscription
	ErrNoActiveSubscription = errors.New("no active subscription found")

	// ErrAlreadySubscribed indicates a conflicting active subscription exists
	// locally or at the payment processor
	ErrAlreadySubscribed = errors.New("an active subscription already exists")

	// ErrSubscriptionNotFound indicates that the specified subscription was not found
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrCancellationPending indicates the operation is not allowed while a
	// cancellation is scheduled at period end
	ErrCancellationPending = errors.New("subscription cancellation is pending")

	// ErrNotPendingCancellation indicates reactivation was requested without a
	// scheduled cancellation
	ErrNotPendingCancellation = errors.New("subscription has no pending cancellation")

	// ErrSubscriptionRequired indicates a subscription-gated feature was used
	// without an entitlement
	ErrSubscriptionRequired = errors.New("subscription required")
)
