package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
)

// TransactionFilters carries pagination and filter options for journal queries.
type TransactionFilters struct {
	UserID       uuid.UUID
	Type         model.TransactionType
	Status       model.TransactionStatus
	From         *time.Time
	To           *time.Time
	ExcludeUsage bool
	Limit        int
	Offset       int
}

// SetDefaults applies default pagination bounds.
func (f *TransactionFilters) SetDefaults() {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// TransactionDTO is the client-facing journal row.
type TransactionDTO struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	CreditsAdded int64     `json:"credits_added"`
	Plan         string    `json:"plan,omitempty"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// TransactionListResponse is a paginated journal listing.
type TransactionListResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
	Pagination   PaginationInfo   `json:"pagination"`
}

// CreditEntryDTO is the client-facing ledger row.
type CreditEntryDTO struct {
	Kind         string    `json:"kind"`
	Action       string    `json:"action,omitempty"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreditHistoryResponse is a paginated ledger listing.
type CreditHistoryResponse struct {
	Entries    []CreditEntryDTO `json:"entries"`
	Pagination PaginationInfo   `json:"pagination"`
}

// PaginationInfo describes the window of a paginated response.
type PaginationInfo struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}
