package repository

import (
	"context"

	"github.com/google/uuid"
)

// ResumeRepository exposes the one content operation the billing core needs:
// the entitlement-expiry side effect that takes public resumes private.
type ResumeRepository interface {
	// PrivatizeAllForUser flips every public resume owned by the user to
	// private, returning how many were changed.
	PrivatizeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
