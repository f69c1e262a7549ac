package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
)

// CreditRepository is the single writer of the user credit balance. Every
// mutation is one atomic conditional update paired with a ledger append in
// the same database transaction; callers never read-modify-write the balance.
type CreditRepository interface {
	// GetBalance returns the current balance for a user (0 when the user has
	// no ledger activity yet).
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)

	// DebitCredits atomically decrements the balance by amount, guarded by
	// balance >= amount, and appends a usage ledger entry snapshotting the
	// post-decrement balance. Returns errors.ErrInsufficientBalance with no
	// mutation when the guard fails.
	DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, action, description string, metadata model.JSONB) (*model.CreditEntry, error)

	// CreditCredits atomically increments the balance and appends a ledger
	// entry of the given kind. When referenceID is non-empty and an entry
	// with that reference already exists, the existing entry is returned with
	// created=false and nothing is mutated.
	CreditCredits(ctx context.Context, userID uuid.UUID, kind model.CreditEntryKind, amount int64, description string, metadata model.JSONB, referenceID string) (entry *model.CreditEntry, created bool, err error)

	// GetEntryByReference returns the ledger entry for a processor reference
	// id, or nil when none exists.
	GetEntryByReference(ctx context.Context, referenceID string) (*model.CreditEntry, error)

	// GetHistory returns the user's ledger entries, newest first, with the
	// total count for pagination.
	GetHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditEntry, int64, error)
}
