package errors

import (
	"errors"
	"fmt"
)

// ErrInsufficientBalance is the storage-level signal that a conditional
// debit found fewer credits than required; no mutation happened.
var ErrInsufficientBalance = errors.New("insufficient credit balance")

// InsufficientBalanceError is returned when a user doesn't have enough
// credits for an action. It is an expected outcome, not a failure: callers
// surface Required/Available so the client can offer a purchase flow.
type InsufficientBalanceError struct {
	Action    string
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient credit balance for %s: required %d, available %d", e.Action, e.Required, e.Available)
}

// NewInsufficientBalanceError creates a new InsufficientBalanceError
func NewInsufficientBalanceError(action string, required, available int64) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		Action:    action,
		Required:  required,
		Available: available,
	}
}
