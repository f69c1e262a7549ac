package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	customErr "github.com/resumeforge/resumeforge-backend/internal/domain/errors"
	"github.com/resumeforge/resumeforge-backend/internal/usecase"
)

// BillingHandler handles checkout and session verification requests
type BillingHandler struct {
	logger         *zap.Logger
	billingService *usecase.BillingService
}

// NewBillingHandler creates a new billing handler instance
func NewBillingHandler(logger *zap.Logger, billingService *usecase.BillingService) *BillingHandler {
	return &BillingHandler{
		logger:         logger,
		billingService: billingService,
	}
}

type creditCheckoutRequest struct {
	Pack string `json:"pack" validate:"required,max=50"`
}

type subscriptionCheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly yearly"`
}

type verifySessionRequest struct {
	SessionID string `json:"session_id" validate:"required,max=200"`
}

// CreateCreditCheckout handles POST /api/v1/checkout/credits
func (h *BillingHandler) CreateCreditCheckout(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req creditCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pack is required"})
	}

	result, err := h.billingService.CreateCreditCheckout(c.Request().Context(), user, req.Pack)
	if err != nil {
		if errors.Is(err, customErr.ErrUnknownPack) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown credit pack"})
		}
		h.logger.Error("Failed to create credit checkout",
			zap.String("user_id", user.ID.String()),
			zap.String("pack", req.Pack),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create checkout session"})
	}

	return c.JSON(http.StatusOK, result)
}

// CreateSubscriptionCheckout handles POST /api/v1/checkout/subscription
func (h *BillingHandler) CreateSubscriptionCheckout(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req subscriptionCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plan must be monthly or yearly"})
	}

	result, err := h.billingService.CreateSubscriptionCheckout(c.Request().Context(), user, req.Plan)
	if err != nil {
		switch {
		case errors.Is(err, customErr.ErrUnknownPlan):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown subscription plan"})
		case errors.Is(err, customErr.ErrAlreadySubscribed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "an active subscription already exists"})
		}
		h.logger.Error("Failed to create subscription checkout",
			zap.String("user_id", user.ID.String()),
			zap.String("plan", req.Plan),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create checkout session"})
	}

	return c.JSON(http.StatusOK, result)
}

// VerifySession handles POST /api/v1/checkout/verify
func (h *BillingHandler) VerifySession(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req verifySessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id is required"})
	}

	result, err := h.billingService.VerifySession(c.Request().Context(), user, req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, customErr.ErrSessionNotOwned):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "checkout session does not belong to this user"})
		case errors.Is(err, customErr.ErrSessionNotPaid):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "checkout session is not paid"})
		}
		h.logger.Error("Failed to verify checkout session",
			zap.String("user_id", user.ID.String()),
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to verify session"})
	}

	return c.JSON(http.StatusOK, result)
}
