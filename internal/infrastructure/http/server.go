package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	handlers "github.com/resumeforge/resumeforge-backend/internal/adapter/handler/http"
	"github.com/resumeforge/resumeforge-backend/internal/config"
	"github.com/resumeforge/resumeforge-backend/internal/domain/provider"
	"github.com/resumeforge/resumeforge-backend/internal/infrastructure/database"
	"github.com/resumeforge/resumeforge-backend/internal/metrics"
	"github.com/resumeforge/resumeforge-backend/internal/middleware/auth"
	"github.com/resumeforge/resumeforge-backend/internal/middleware/ratelimit"
	"github.com/resumeforge/resumeforge-backend/internal/usecase"
)

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	repos    *database.Repositories
	gateway  provider.PaymentGateway
	registry *prometheus.Registry
	metrics  metrics.BillingMetrics
}

// CustomValidator adapts validator/v10 to echo's Validator interface
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	repos *database.Repositories,
	gateway provider.PaymentGateway,
	registry *prometheus.Registry,
	m metrics.BillingMetrics,
) *Server {
	e := echo.New()
	e.HideBanner = true

	// Initialize Stripe
	stripe.Key = cfg.Service.StripeSecretKey

	e.Validator = &CustomValidator{validator: validator.New()}

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config:   cfg,
		logger:   logger,
		echo:     e,
		repos:    repos,
		gateway:  gateway,
		registry: registry,
		metrics:  m,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	// Wire services
	billingCfg := &s.config.Billing
	creditService := usecase.NewCreditService(s.repos.Credit, s.repos.User, s.repos.Transaction, billingCfg, s.metrics, s.logger)
	subscriptionService := usecase.NewSubscriptionService(s.repos.Subscription, s.repos.Resume, s.logger)
	webhookService := usecase.NewWebhookService(
		s.repos.Webhook,
		s.repos.Credit,
		s.repos.Transaction,
		s.repos.Subscription,
		subscriptionService,
		s.gateway,
		billingCfg,
		s.metrics,
		s.logger,
	)
	billingService := usecase.NewBillingService(
		s.gateway,
		s.repos.Subscription,
		s.repos.Transaction,
		subscriptionService,
		webhookService,
		billingCfg,
		s.config.Service.ClientURL,
		s.metrics,
		s.logger,
	)
	transactionService := usecase.NewTransactionService(s.repos.Transaction, s.repos.Credit, s.logger)

	// Initialize handlers
	creditHandler := handlers.NewCreditHandler(s.logger, creditService, transactionService)
	billingHandler := handlers.NewBillingHandler(s.logger, billingService)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.logger, billingService, subscriptionService)
	transactionHandler := handlers.NewTransactionHandler(s.logger, transactionService, billingService)
	webhookHandler := handlers.NewWebhookHandler(s.logger, s.config.Service.StripeWebhookSecret, webhookService)

	// Webhook route stays outside API versioning; signature is its auth
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.JWTSecret,
		Logger: s.logger,
	}

	// Sync endpoints hit Stripe synchronously, so they get a tight per-user budget
	syncLimit := ratelimit.PerUser(ratelimit.Config{
		Rate:   rate.Every(10 * time.Second),
		Burst:  3,
		Logger: s.logger,
	})

	v1 := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))

	credits := v1.Group("/credits")
	credits.GET("/balance", creditHandler.GetBalance)
	credits.POST("/check", creditHandler.CheckCredits)
	credits.POST("/use", creditHandler.UseCredits)
	credits.GET("/history", creditHandler.GetHistory)

	checkout := v1.Group("/checkout")
	checkout.POST("/credits", billingHandler.CreateCreditCheckout)
	checkout.POST("/subscription", billingHandler.CreateSubscriptionCheckout)
	checkout.POST("/verify", billingHandler.VerifySession, syncLimit)

	subscription := v1.Group("/subscription")
	subscription.GET("", subscriptionHandler.GetSubscription)
	subscription.DELETE("", subscriptionHandler.CancelSubscription)
	subscription.POST("/reactivate", subscriptionHandler.ReactivateSubscription)
	subscription.POST("/switch", subscriptionHandler.SwitchPlan)
	subscription.POST("/portal", subscriptionHandler.CreatePortalSession)
	subscription.POST("/sync", subscriptionHandler.SyncSubscription, syncLimit)

	v1.GET("/transactions", transactionHandler.ListTransactions)
	v1.POST("/transactions/sync", transactionHandler.SyncTransactions, syncLimit)

	admin := v1.Group("/admin")
	admin.GET("/transactions", transactionHandler.AdminListTransactions)
	admin.POST("/credits/adjust", creditHandler.AdminAdjustCredits)
}
