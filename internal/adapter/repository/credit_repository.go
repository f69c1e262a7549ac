package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	customErr "github.com/resumeforge/resumeforge-backend/internal/domain/errors"
	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
)

// creditRepository implements the CreditRepository interface
type creditRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCreditRepository creates a new credit repository instance
func NewCreditRepository(db *gorm.DB, logger *zap.Logger) domainRepo.CreditRepository {
	return &creditRepository{
		db:     db,
		logger: logger,
	}
}

// GetBalance retrieves the current credit balance for a user
func (r *creditRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var user model.User

	err := r.db.WithContext(ctx).
		Select("credit_balance").
		Where("id = ?", userID).
		First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		r.logger.Error("Failed to get credit balance",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return 0, fmt.Errorf("failed to get credit balance: %w", err)
	}

	return user.CreditBalance, nil
}

// DebitCredits decrements the balance and appends the usage ledger entry in
// one database transaction. The decrement is a single conditional update
// guarded by credit_balance >= amount; there is no read-then-write window.
func (r *creditRepository) DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, action, description string, metadata model.JSONB) (*model.CreditEntry, error) {
	if amount < 0 {
		return nil, fmt.Errorf("debit amount must not be negative: %d", amount)
	}

	var entry *model.CreditEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).
			Where("id = ? AND credit_balance >= ?", userID, amount).
			UpdateColumn("credit_balance", gorm.Expr("credit_balance - ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to decrement balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return customErr.ErrInsufficientBalance
		}

		var user model.User
		if err := tx.Select("credit_balance").Where("id = ?", userID).First(&user).Error; err != nil {
			return fmt.Errorf("failed to read balance after debit: %w", err)
		}

		actionName := action
		entry = &model.CreditEntry{
			UserID:       userID,
			Kind:         model.CreditEntryKindUsage,
			Action:       &actionName,
			Amount:       amount,
			BalanceAfter: user.CreditBalance,
			Description:  description,
			Metadata:     metadata,
		}

		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create ledger entry: %w", err)
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, customErr.ErrInsufficientBalance) {
			return nil, err
		}
		r.logger.Error("Failed to debit credits",
			zap.String("user_id", userID.String()),
			zap.Int64("amount", amount),
			zap.String("action", action),
			zap.Error(err))
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}

	r.logger.Info("Credits debited",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount),
		zap.String("action", action),
		zap.Int64("balance_after", entry.BalanceAfter))

	return entry, nil
}

// errReferenceRaceLost signals that a concurrent transaction inserted the
// ledger entry for the same reference first; it rolls the increment back.
var errReferenceRaceLost = errors.New("ledger entry for reference already recorded")

// CreditCredits increments the balance and appends a ledger entry atomically.
// A non-empty referenceID makes the operation idempotent: a second call with
// the same reference returns the original entry without mutating anything.
// The existence pre-check only short-circuits the common replay; the partial
// unique index on reference_id is what holds the invariant when two
// deliveries for the same reference commit concurrently.
func (r *creditRepository) CreditCredits(ctx context.Context, userID uuid.UUID, kind model.CreditEntryKind, amount int64, description string, metadata model.JSONB, referenceID string) (*model.CreditEntry, bool, error) {
	if amount < 0 {
		return nil, false, fmt.Errorf("credit amount must not be negative: %d", amount)
	}

	var entry *model.CreditEntry
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if referenceID != "" {
			var existing model.CreditEntry
			err := tx.Where("reference_id = ?", referenceID).First(&existing).Error
			if err == nil {
				entry = &existing
				r.logger.Info("Credit already applied for reference (idempotency)",
					zap.String("reference_id", referenceID),
					zap.String("user_id", userID.String()))
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check existing entry: %w", err)
			}
		}

		res := tx.Model(&model.User{}).
			Where("id = ?", userID).
			UpdateColumn("credit_balance", gorm.Expr("credit_balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to increment balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return customErr.ErrUserNotFound
		}

		var user model.User
		if err := tx.Select("credit_balance").Where("id = ?", userID).First(&user).Error; err != nil {
			return fmt.Errorf("failed to read balance after credit: %w", err)
		}

		entry = &model.CreditEntry{
			UserID:       userID,
			Kind:         kind,
			Amount:       amount,
			BalanceAfter: user.CreditBalance,
			Description:  description,
			Metadata:     metadata,
		}
		if referenceID != "" {
			ref := referenceID
			entry.ReferenceID = &ref
		}

		insert := tx
		if referenceID != "" {
			insert = insert.Clauses(clause.OnConflict{DoNothing: true})
		}
		res = insert.Create(entry)
		if res.Error != nil {
			return fmt.Errorf("failed to create ledger entry: %w", res.Error)
		}
		if referenceID != "" && res.RowsAffected == 0 {
			return errReferenceRaceLost
		}

		created = true
		return nil
	})

	if errors.Is(err, errReferenceRaceLost) {
		r.logger.Info("Credit already applied for reference (concurrent delivery)",
			zap.String("reference_id", referenceID),
			zap.String("user_id", userID.String()))
		existing, lookupErr := r.GetEntryByReference(ctx, referenceID)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}

	if err != nil {
		r.logger.Error("Failed to credit credits",
			zap.String("user_id", userID.String()),
			zap.Int64("amount", amount),
			zap.String("kind", string(kind)),
			zap.String("reference_id", referenceID),
			zap.Error(err))
		return nil, false, fmt.Errorf("failed to credit credits: %w", err)
	}

	if created {
		r.logger.Info("Credits granted",
			zap.String("user_id", userID.String()),
			zap.Int64("amount", amount),
			zap.String("kind", string(kind)),
			zap.Int64("balance_after", entry.BalanceAfter),
			zap.String("reference_id", referenceID))
	}

	return entry, created, nil
}

// GetEntryByReference retrieves a ledger entry by its processor reference ID
func (r *creditRepository) GetEntryByReference(ctx context.Context, referenceID string) (*model.CreditEntry, error) {
	var entry model.CreditEntry

	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		First(&entry).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get ledger entry by reference",
			zap.String("reference_id", referenceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &entry, nil
}

// GetHistory retrieves the ledger entries for a user, newest first
func (r *creditRepository) GetHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditEntry, int64, error) {
	var entries []*model.CreditEntry
	var total int64

	base := r.db.WithContext(ctx).Model(&model.CreditEntry{}).Where("user_id = ?", userID)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	query := base.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&entries).Error; err != nil {
		r.logger.Error("Failed to get ledger history",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, 0, fmt.Errorf("failed to get ledger history: %w", err)
	}

	return entries, total, nil
}
