package errors

import "errors"

var (
	// ErrUnknownPlan indicates the request named a plan that is not configured
	ErrUnknownPlan = errors.New("unknown subscription plan")

	// ErrUnknownPack indicates the request named a credit pack that is not configured
	ErrUnknownPack = errors.New("unknown credit pack")

	// ErrSamePlan indicates a plan switch to the currently active plan
	ErrSamePlan = errors.New("already subscribed to the requested plan")

	// ErrSessionNotOwned indicates a checkout session does not belong to the
	// requesting user
	ErrSessionNotOwned = errors.New("checkout session does not belong to this user")

	// ErrSessionNotPaid indicates a checkout session has not been paid
	ErrSessionNotPaid = errors.New("checkout session is not paid")

	// ErrNoCustomer indicates no processor customer could be resolved for the user
	ErrNoCustomer = errors.New("no payment processor customer found for user")

	// ErrUserNotFound indicates the authenticated identity has no user record
	ErrUserNotFound = errors.New("user not found")
)
