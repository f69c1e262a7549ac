package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	"github.com/resumeforge/resumeforge-backend/internal/middleware/auth"
)

// currentUser resolves the authenticated identity into the domain user the
// services operate on. The claims carry everything the billing surface
// needs, so no extra lookup happens here.
func currentUser(c echo.Context) (*model.User, error) {
	authUser, err := auth.GetUserFromContext(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return &model.User{
		ID:    authUser.ID,
		Email: authUser.Email,
		Role:  authUser.Role,
	}, nil
}

// requireAdmin resolves the authenticated identity and rejects non-admins.
func requireAdmin(c echo.Context) (*model.User, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	return user, nil
}
