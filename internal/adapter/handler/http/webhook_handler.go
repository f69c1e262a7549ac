package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/resumeforge/resumeforge-backend/internal/usecase"
)

// WebhookHandler terminates the processor's event deliveries. Signature
// verification happens here against the raw body; everything after the
// verified event is the webhook service's business.
type WebhookHandler struct {
	logger         *zap.Logger
	webhookSecret  string
	webhookService *usecase.WebhookService
}

// NewWebhookHandler creates a new webhook handler instance
func NewWebhookHandler(logger *zap.Logger, webhookSecret string, webhookService *usecase.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		logger:         logger,
		webhookSecret:  webhookSecret,
		webhookService: webhookService,
	}
}

// HandleWebhook handles POST /webhook
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading webhook body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "error reading request body"})
	}

	sig := c.Request().Header.Get("Stripe-Signature")

	event, err := webhook.ConstructEventWithOptions(
		body,
		sig,
		h.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		h.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "webhook signature verification failed"})
	}

	h.logger.Info("Webhook event received",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	if err := h.webhookService.HandleEvent(c.Request().Context(), event); err != nil {
		h.logger.Error("Webhook event processing failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		// Non-2xx tells the processor to retry the delivery.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event processing failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
