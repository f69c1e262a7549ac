package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	customErr "github.com/resumeforge/resumeforge-backend/internal/domain/errors"
	"github.com/resumeforge/resumeforge-backend/internal/usecase"
)

// CreditHandler handles credit-related HTTP requests
type CreditHandler struct {
	logger             *zap.Logger
	creditService      *usecase.CreditService
	transactionService *usecase.TransactionService
}

// NewCreditHandler creates a new credit handler instance
func NewCreditHandler(
	logger *zap.Logger,
	creditService *usecase.CreditService,
	transactionService *usecase.TransactionService,
) *CreditHandler {
	return &CreditHandler{
		logger:             logger,
		creditService:      creditService,
		transactionService: transactionService,
	}
}

type actionRequest struct {
	Action string `json:"action" validate:"required,max=100"`
}

// GetBalance handles GET /api/v1/credits/balance
func (h *CreditHandler) GetBalance(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	// Account provisioning happens outside this service, so the one-time
	// signup grant is applied lazily here. The grant is idempotent; a
	// failure only delays it until the next read.
	if err := h.creditService.GrantSignupCredits(c.Request().Context(), user.ID); err != nil {
		h.logger.Warn("Failed to apply signup grant",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}

	balance, err := h.creditService.GetBalance(c.Request().Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to get credit balance",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve credit balance"})
	}

	return c.JSON(http.StatusOK, echo.Map{"balance": balance})
}

// CheckCredits handles POST /api/v1/credits/check
func (h *CreditHandler) CheckCredits(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action is required"})
	}

	check, err := h.creditService.CheckCredits(c.Request().Context(), user.ID, req.Action)
	if err != nil {
		if errors.Is(err, customErr.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		h.logger.Error("Failed to check credits",
			zap.String("user_id", user.ID.String()),
			zap.String("action", req.Action),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check credits"})
	}

	return c.JSON(http.StatusOK, check)
}

// UseCredits handles POST /api/v1/credits/use
func (h *CreditHandler) UseCredits(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action is required"})
	}

	result, err := h.creditService.Debit(c.Request().Context(), user.ID, req.Action)
	if err != nil {
		var insufficient *customErr.InsufficientBalanceError
		if errors.As(err, &insufficient) {
			return c.JSON(http.StatusPaymentRequired, echo.Map{
				"error":     "insufficient credits",
				"required":  insufficient.Required,
				"available": insufficient.Available,
			})
		}
		if errors.Is(err, customErr.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		h.logger.Error("Failed to use credits",
			zap.String("user_id", user.ID.String()),
			zap.String("action", req.Action),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to use credits"})
	}

	return c.JSON(http.StatusOK, result)
}

// GetHistory handles GET /api/v1/credits/history
func (h *CreditHandler) GetHistory(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	history, err := h.transactionService.GetLedgerHistory(c.Request().Context(), user.ID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get credit history",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve credit history"})
	}

	return c.JSON(http.StatusOK, history)
}

type adminAdjustRequest struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,max=500"`
}

// AdminAdjustCredits handles POST /api/v1/admin/credits/adjust
func (h *CreditHandler) AdminAdjustCredits(c echo.Context) error {
	admin, err := requireAdmin(c)
	if err != nil {
		return err
	}

	var req adminAdjustRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id, positive amount and description are required"})
	}

	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	entry, err := h.creditService.AdminAdjust(c.Request().Context(), admin.ID, targetID, req.Amount, req.Description)
	if err != nil {
		h.logger.Error("Failed to apply admin adjustment",
			zap.String("admin_id", admin.ID.String()),
			zap.String("user_id", targetID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to adjust credits"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"amount":        entry.Amount,
		"balance_after": entry.BalanceAfter,
	})
}
