package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
)

type resumeRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewResumeRepository creates a new resume repository
func NewResumeRepository(db *gorm.DB, logger *zap.Logger) domainRepo.ResumeRepository {
	return &resumeRepository{
		db:     db,
		logger: logger,
	}
}

// PrivatizeAllForUser flips every public resume owned by the user to private.
// Invoked when an entitlement expiry is detected.
func (r *resumeRepository) PrivatizeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Resume{}).
		Where("user_id = ? AND visibility = ?", userID, model.ResumeVisibilityPublic).
		Updates(map[string]interface{}{
			"visibility": model.ResumeVisibilityPrivate,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to privatize resumes",
			zap.String("user_id", userID.String()),
			zap.Error(result.Error))
		return 0, fmt.Errorf("failed to privatize resumes: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Info("Privatized public resumes after entitlement expiry",
			zap.String("user_id", userID.String()),
			zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}
