package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
)

// UserRepository resolves the authenticated identity to its user record.
type UserRepository interface {
	// GetByID returns the user, or nil when no record exists.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// GetByEmail returns the user, or nil when no record exists.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
