package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/resumeforge/resumeforge-backend/internal/domain/dto"
	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
)

// TransactionRepository stores the append-only financial journal. Lookups by
// processor identifier back the idempotency checks of the webhook and
// reconciliation paths.
type TransactionRepository interface {
	Create(ctx context.Context, tx *model.Transaction) error

	// GetBySessionID returns the user's journal entry for a checkout session
	// id, or nil.
	GetBySessionID(ctx context.Context, userID uuid.UUID, sessionID string) (*model.Transaction, error)

	// GetByInvoiceID returns the journal entry for a processor invoice id, or nil.
	GetByInvoiceID(ctx context.Context, invoiceID string) (*model.Transaction, error)

	// GetByPaymentIntentID returns the journal entry for a processor payment
	// intent id, or nil.
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*model.Transaction, error)

	List(ctx context.Context, filters dto.TransactionFilters) ([]model.Transaction, error)
	Count(ctx context.Context, filters dto.TransactionFilters) (int64, error)
}
