package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/resumeforge/resumeforge-backend/internal/domain/dto"
	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
)

type transactionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB, logger *zap.Logger) domainRepo.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a journal entry. The session/invoice/payment-intent ids
// carry partial unique indexes; losing the insert to a concurrent delivery
// of the same processor event is an idempotent no-op, not an error.
func (r *transactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(tx)
	if res.Error != nil {
		r.logger.Error("Failed to create transaction",
			zap.String("user_id", tx.UserID.String()),
			zap.String("type", string(tx.Type)),
			zap.Error(res.Error))
		return fmt.Errorf("failed to create transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.logger.Info("Transaction already journaled (concurrent delivery)",
			zap.String("user_id", tx.UserID.String()),
			zap.String("type", string(tx.Type)))
	}
	return nil
}

func (r *transactionRepository) getByColumn(ctx context.Context, column, value string) (*model.Transaction, error) {
	var tx model.Transaction

	err := r.db.WithContext(ctx).
		Where(column+" = ?", value).
		First(&tx).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction",
			zap.String("column", column),
			zap.String("value", value),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &tx, nil
}

// GetBySessionID retrieves the user's journal entry for a checkout session id
func (r *transactionRepository) GetBySessionID(ctx context.Context, userID uuid.UUID, sessionID string) (*model.Transaction, error) {
	var tx model.Transaction

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND stripe_session_id = ?", userID, sessionID).
		First(&tx).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction by session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &tx, nil
}

// GetByInvoiceID retrieves the journal entry for a processor invoice id
func (r *transactionRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*model.Transaction, error) {
	return r.getByColumn(ctx, "stripe_invoice_id", invoiceID)
}

// GetByPaymentIntentID retrieves the journal entry for a payment intent id
func (r *transactionRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*model.Transaction, error) {
	return r.getByColumn(ctx, "stripe_payment_intent_id", paymentIntentID)
}

func (r *transactionRepository) applyFilters(query *gorm.DB, filters dto.TransactionFilters) *gorm.DB {
	if filters.UserID != uuid.Nil {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.Type != "" {
		query = query.Where("type = ?", filters.Type)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.ExcludeUsage {
		query = query.Where("type <> ?", model.TransactionTypeCreditUsage)
	}
	if filters.From != nil {
		query = query.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("created_at < ?", *filters.To)
	}
	return query
}

// List retrieves journal entries matching the filters, newest first
func (r *transactionRepository) List(ctx context.Context, filters dto.TransactionFilters) ([]model.Transaction, error) {
	var transactions []model.Transaction

	query := r.applyFilters(r.db.WithContext(ctx).Model(&model.Transaction{}), filters).
		Order("created_at DESC")

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&transactions).Error; err != nil {
		r.logger.Error("Failed to list transactions", zap.Error(err))
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return transactions, nil
}

// Count returns the number of journal entries matching the filters
func (r *transactionRepository) Count(ctx context.Context, filters dto.TransactionFilters) (int64, error) {
	var count int64

	query := r.applyFilters(r.db.WithContext(ctx).Model(&model.Transaction{}), filters)

	if err := query.Count(&count).Error; err != nil {
		r.logger.Error("Failed to count transactions", zap.Error(err))
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}
