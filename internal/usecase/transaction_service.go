package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/domain/dto"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
)

// TransactionService answers read-only queries against the financial journal
// and the credit ledger.
type TransactionService struct {
	transactionRepo domainRepo.TransactionRepository
	creditRepo      domainRepo.CreditRepository
	logger          *zap.Logger
}

// NewTransactionService creates a new transaction service instance
func NewTransactionService(
	transactionRepo domainRepo.TransactionRepository,
	creditRepo domainRepo.CreditRepository,
	logger *zap.Logger,
) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		creditRepo:      creditRepo,
		logger:          logger,
	}
}

// ListForUser returns the user's own journal, newest first. Internal usage
// rows are excluded; the client-facing journal shows money movements only.
func (s *TransactionService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) (*dto.TransactionListResponse, error) {
	filters := dto.TransactionFilters{
		UserID:       userID,
		ExcludeUsage: true,
		Limit:        limit,
		Offset:       offset,
	}
	filters.SetDefaults()

	return s.list(ctx, filters)
}

// AdminList returns journal rows across users, narrowed by the given
// filters. The handler restricts this to administrators.
func (s *TransactionService) AdminList(ctx context.Context, filters dto.TransactionFilters) (*dto.TransactionListResponse, error) {
	filters.SetDefaults()
	return s.list(ctx, filters)
}

func (s *TransactionService) list(ctx context.Context, filters dto.TransactionFilters) (*dto.TransactionListResponse, error) {
	transactions, err := s.transactionRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	total, err := s.transactionRepo.Count(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows := make([]dto.TransactionDTO, 0, len(transactions))
	for _, tx := range transactions {
		row := dto.TransactionDTO{
			ID:           tx.ID,
			Type:         string(tx.Type),
			Status:       string(tx.Status),
			Amount:       tx.Amount.StringFixed(2),
			Currency:     tx.Currency,
			CreditsAdded: tx.CreditsAdded,
			Description:  tx.Description,
			CreatedAt:    tx.CreatedAt,
		}
		if tx.Plan != nil {
			row.Plan = *tx.Plan
		}
		rows = append(rows, row)
	}

	return &dto.TransactionListResponse{
		Transactions: rows,
		Pagination: dto.PaginationInfo{
			Total:   total,
			Limit:   filters.Limit,
			Offset:  filters.Offset,
			HasMore: int64(filters.Offset+len(rows)) < total,
		},
	}, nil
}

// GetLedgerHistory returns the user's credit ledger, newest first. Amounts
// are signed: usage entries show as negative.
func (s *TransactionService) GetLedgerHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*dto.CreditHistoryResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.creditRepo.GetHistory(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get credit history: %w", err)
	}

	rows := make([]dto.CreditEntryDTO, 0, len(entries))
	for _, entry := range entries {
		row := dto.CreditEntryDTO{
			Kind:         string(entry.Kind),
			Amount:       entry.Kind.Signed(entry.Amount),
			BalanceAfter: entry.BalanceAfter,
			Description:  entry.Description,
			CreatedAt:    entry.CreatedAt,
		}
		if entry.Action != nil {
			row.Action = *entry.Action
		}
		rows = append(rows, row)
	}

	return &dto.CreditHistoryResponse{
		Entries: rows,
		Pagination: dto.PaginationInfo{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+len(rows)) < total,
		},
	}, nil
}
