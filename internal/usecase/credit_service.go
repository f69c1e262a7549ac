package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/config"
	customErr "github.com/resumeforge/resumeforge-backend/internal/domain/errors"
	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
	"github.com/resumeforge/resumeforge-backend/internal/metrics"
)

// CreditCheck reports whether an action is affordable
type CreditCheck struct {
	Allowed   bool  `json:"allowed"`
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

// DebitResult reports a successful debit
type DebitResult struct {
	Deducted  int64 `json:"deducted"`
	Remaining int64 `json:"remaining"`
}

// CreditService handles credit-related business logic. It is the only entry
// point for balance mutations: sibling subsystems call Debit before
// performing any paid action.
type CreditService struct {
	creditRepo      domainRepo.CreditRepository
	userRepo        domainRepo.UserRepository
	transactionRepo domainRepo.TransactionRepository
	billing         *config.BillingConfig
	metrics         metrics.BillingMetrics
	logger          *zap.Logger
}

// NewCreditService creates a new credit service instance
func NewCreditService(
	creditRepo domainRepo.CreditRepository,
	userRepo domainRepo.UserRepository,
	transactionRepo domainRepo.TransactionRepository,
	billing *config.BillingConfig,
	m metrics.BillingMetrics,
	logger *zap.Logger,
) *CreditService {
	return &CreditService{
		creditRepo:      creditRepo,
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		billing:         billing,
		metrics:         m,
		logger:          logger,
	}
}

// CheckCredits reports whether the user can afford the action. Admins are
// always allowed with a required cost of zero.
func (s *CreditService) CheckCredits(ctx context.Context, userID uuid.UUID, action string) (*CreditCheck, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check credits: %w", err)
	}
	if user == nil {
		return nil, customErr.ErrUserNotFound
	}

	if user.IsAdmin() {
		return &CreditCheck{Allowed: true, Required: 0, Available: user.CreditBalance}, nil
	}

	required := s.billing.ActionCost(action)
	return &CreditCheck{
		Allowed:   user.CreditBalance >= required,
		Required:  required,
		Available: user.CreditBalance,
	}, nil
}

// Debit deducts the action's cost from the user's balance. The decrement and
// the ledger append happen in one atomic storage operation; on insufficient
// balance nothing is mutated and an InsufficientBalanceError carrying the
// required and available amounts is returned.
func (s *CreditService) Debit(ctx context.Context, userID uuid.UUID, action string) (*DebitResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}
	if user == nil {
		return nil, customErr.ErrUserNotFound
	}

	if user.IsAdmin() {
		return &DebitResult{Deducted: 0, Remaining: user.CreditBalance}, nil
	}

	required := s.billing.ActionCost(action)
	if required == 0 {
		return &DebitResult{Deducted: 0, Remaining: user.CreditBalance}, nil
	}

	description := fmt.Sprintf("Used %d credit(s) for %s", required, action)
	entry, err := s.creditRepo.DebitCredits(ctx, userID, required, action, description, nil)
	if err != nil {
		if errors.Is(err, customErr.ErrInsufficientBalance) {
			return nil, customErr.NewInsufficientBalanceError(action, required, user.CreditBalance)
		}
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}

	s.metrics.IncCreditsDebited(action, required)

	// Usage rows in the journal are for the admin view; the ledger entry
	// above is authoritative, so a journal failure does not undo the debit.
	usageTx := &model.Transaction{
		UserID:      userID,
		Type:        model.TransactionTypeCreditUsage,
		Status:      model.TransactionStatusCompleted,
		Amount:      decimal.Zero,
		Description: description,
		Metadata:    model.JSONB{"action": action, "credits": required},
	}
	if err := s.transactionRepo.Create(ctx, usageTx); err != nil {
		s.logger.Warn("Failed to journal credit usage",
			zap.String("user_id", userID.String()),
			zap.String("action", action),
			zap.Error(err))
	}

	s.logger.Info("Credits used",
		zap.String("user_id", userID.String()),
		zap.String("action", action),
		zap.Int64("deducted", required),
		zap.Int64("remaining", entry.BalanceAfter))

	return &DebitResult{Deducted: required, Remaining: entry.BalanceAfter}, nil
}

// Credit grants credits to the user. A non-empty referenceID makes the grant
// idempotent; the returned flag reports whether a new ledger entry was
// written.
func (s *CreditService) Credit(ctx context.Context, userID uuid.UUID, kind model.CreditEntryKind, amount int64, description string, metadata model.JSONB, referenceID string) (*model.CreditEntry, bool, error) {
	entry, created, err := s.creditRepo.CreditCredits(ctx, userID, kind, amount, description, metadata, referenceID)
	if err != nil {
		return nil, false, err
	}

	if created {
		s.metrics.IncCreditsGranted(string(kind), amount)
	}

	return entry, created, nil
}

// GrantSignupCredits applies the one-time signup grant, idempotent per user.
func (s *CreditService) GrantSignupCredits(ctx context.Context, userID uuid.UUID) error {
	if s.billing.SignupCredits <= 0 {
		return nil
	}

	_, created, err := s.creditRepo.CreditCredits(ctx, userID,
		model.CreditEntryKindInitial,
		s.billing.SignupCredits,
		"Welcome credits",
		nil,
		"signup:"+userID.String())
	if err != nil {
		return fmt.Errorf("failed to grant signup credits: %w", err)
	}

	if created {
		s.metrics.IncCreditsGranted(string(model.CreditEntryKindInitial), s.billing.SignupCredits)
		s.logger.Info("Signup credits granted",
			zap.String("user_id", userID.String()),
			zap.Int64("credits", s.billing.SignupCredits))
	}

	return nil
}

// AdminAdjust grants credits as an administrative adjustment. Adjustments are
// positive by construction (the entry kind encodes direction) and always
// leave a ledger trail naming the acting admin.
func (s *CreditService) AdminAdjust(ctx context.Context, adminID, userID uuid.UUID, amount int64, description string) (*model.CreditEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("adjustment amount must be positive")
	}

	metadata := model.JSONB{"adjusted_by": adminID.String()}
	entry, created, err := s.creditRepo.CreditCredits(ctx, userID,
		model.CreditEntryKindAdminAdjustment, amount, description, metadata, "")
	if err != nil {
		return nil, fmt.Errorf("failed to apply admin adjustment: %w", err)
	}

	if created {
		s.metrics.IncCreditsGranted(string(model.CreditEntryKindAdminAdjustment), amount)
	}

	s.logger.Info("Admin credit adjustment applied",
		zap.String("admin_id", adminID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount))

	return entry, nil
}

// GetBalance retrieves the current credit balance for a user
func (s *CreditService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, err := s.creditRepo.GetBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}
