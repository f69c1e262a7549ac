package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/domain/dto"
	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
	"github.com/resumeforge/resumeforge-backend/internal/usecase"
)

// TransactionHandler handles journal queries and the manual import sync
type TransactionHandler struct {
	logger             *zap.Logger
	transactionService *usecase.TransactionService
	billingService     *usecase.BillingService
}

// NewTransactionHandler creates a new transaction handler instance
func NewTransactionHandler(
	logger *zap.Logger,
	transactionService *usecase.TransactionService,
	billingService *usecase.BillingService,
) *TransactionHandler {
	return &TransactionHandler{
		logger:             logger,
		transactionService: transactionService,
		billingService:     billingService,
	}
}

// ListTransactions handles GET /api/v1/transactions
func (h *TransactionHandler) ListTransactions(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	result, err := h.transactionService.ListForUser(c.Request().Context(), user.ID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list transactions",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve transactions"})
	}

	return c.JSON(http.StatusOK, result)
}

// AdminListTransactions handles GET /api/v1/admin/transactions
func (h *TransactionHandler) AdminListTransactions(c echo.Context) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	filters := dto.TransactionFilters{}
	filters.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filters.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_id filter"})
		}
		filters.UserID = userID
	}
	if raw := c.QueryParam("type"); raw != "" {
		filters.Type = model.TransactionType(raw)
	}
	if raw := c.QueryParam("status"); raw != "" {
		filters.Status = model.TransactionStatus(raw)
	}
	if raw := c.QueryParam("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be RFC3339"})
		}
		filters.From = &from
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be RFC3339"})
		}
		filters.To = &to
	}

	result, err := h.transactionService.AdminList(c.Request().Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list transactions for admin", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve transactions"})
	}

	return c.JSON(http.StatusOK, result)
}

// SyncTransactions handles POST /api/v1/transactions/sync
func (h *TransactionHandler) SyncTransactions(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	result, err := h.billingService.SyncTransactions(c.Request().Context(), user)
	if err != nil {
		h.logger.Error("Failed to sync transactions",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to sync transactions"})
	}

	return c.JSON(http.StatusOK, result)
}
