package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	customErr "github.com/resumeforge/resumeforge-backend/internal/domain/errors"
	"github.com/resumeforge/resumeforge-backend/internal/usecase"
)

// SubscriptionHandler handles subscription lifecycle HTTP requests
type SubscriptionHandler struct {
	logger              *zap.Logger
	billingService      *usecase.BillingService
	subscriptionService *usecase.SubscriptionService
}

// NewSubscriptionHandler creates a new subscription handler instance
func NewSubscriptionHandler(
	logger *zap.Logger,
	billingService *usecase.BillingService,
	subscriptionService *usecase.SubscriptionService,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		logger:              logger,
		billingService:      billingService,
		subscriptionService: subscriptionService,
	}
}

// GetSubscription handles GET /api/v1/subscription. Stale records are
// reconciled on read, so a missed deletion event cannot keep an entitlement
// alive past its period end.
func (h *SubscriptionHandler) GetSubscription(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := h.subscriptionService.ReconcileExpired(ctx, user.ID); err != nil {
		h.logger.Warn("Expiry reconciliation failed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}

	sub, err := h.subscriptionService.GetActive(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to get subscription",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve subscription"})
	}

	if sub == nil {
		return c.JSON(http.StatusOK, echo.Map{"subscribed": false})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"subscribed":           true,
		"plan":                 sub.Plan,
		"status":               sub.Status,
		"current_period_end":   sub.CurrentPeriodEnd,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
	})
}

// CancelSubscription handles DELETE /api/v1/subscription
func (h *SubscriptionHandler) CancelSubscription(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	sub, err := h.billingService.CancelSubscription(c.Request().Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, customErr.ErrNoActiveSubscription):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active subscription found"})
		case errors.Is(err, customErr.ErrCancellationPending):
			return c.JSON(http.StatusConflict, echo.Map{"error": "cancellation already scheduled"})
		}
		h.logger.Error("Failed to cancel subscription",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel subscription"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":               "cancellation_scheduled",
		"current_period_end":   sub.CurrentPeriodEnd,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
	})
}

// ReactivateSubscription handles POST /api/v1/subscription/reactivate
func (h *SubscriptionHandler) ReactivateSubscription(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	sub, err := h.billingService.ReactivateSubscription(c.Request().Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, customErr.ErrNoActiveSubscription):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active subscription found"})
		case errors.Is(err, customErr.ErrNotPendingCancellation):
			return c.JSON(http.StatusConflict, echo.Map{"error": "no pending cancellation to reactivate"})
		}
		h.logger.Error("Failed to reactivate subscription",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reactivate subscription"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status": "reactivated",
		"plan":   sub.Plan,
	})
}

// SwitchPlan handles POST /api/v1/subscription/switch
func (h *SubscriptionHandler) SwitchPlan(c echo.Context) error {
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

	sub, err := h.billingService.SwitchPlan(c.Request().Context(), user, req.Plan)
	if err != nil {
		switch {
		case errors.Is(err, customErr.ErrUnknownPlan):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown subscription plan"})
		case errors.Is(err, customErr.ErrNoActiveSubscription):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active subscription found"})
		case errors.Is(err, customErr.ErrCancellationPending):
			return c.JSON(http.StatusConflict, echo.Map{"error": "cannot switch plans while cancellation is pending"})
		case errors.Is(err, customErr.ErrSamePlan):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already subscribed to the requested plan"})
		}
		h.logger.Error("Failed to switch plan",
			zap.String("user_id", user.ID.String()),
			zap.String("plan", req.Plan),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to switch plan"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":             "switched",
		"plan":               sub.Plan,
		"current_period_end": sub.CurrentPeriodEnd,
	})
}

// CreatePortalSession handles POST /api/v1/subscription/portal
func (h *SubscriptionHandler) CreatePortalSession(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	url, err := h.billingService.CreatePortalSession(c.Request().Context(), user)
	if err != nil {
		if errors.Is(err, customErr.ErrNoCustomer) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no billing account found"})
		}
		h.logger.Error("Failed to create portal session",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create portal session"})
	}

	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// SyncSubscription handles POST /api/v1/subscription/sync
func (h *SubscriptionHandler) SyncSubscription(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	result, err := h.billingService.SyncSubscription(c.Request().Context(), user)
	if err != nil {
		h.logger.Error("Failed to sync subscription",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to sync subscription"})
	}

	return c.JSON(http.StatusOK, result)
}
