package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/elimu-platform/payment-service/internal/adapter/handler/http"
	"github.com/elimu-platform/payment-service/internal/config"
	"github.com/elimu-platform/payment-service/internal/infrastructure/database"
	infraprovider "github.com/elimu-platform/payment-service/internal/infrastructure/provider"
	"github.com/elimu-platform/payment-service/internal/middleware/auth"
	"github.com/elimu-platform/payment-service/internal/usecase"
	"github.com/elimu-platform/payment-service/pkg/logger"
)

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	repos    *database.Repositories
	registry *infraprovider.Registry
}

func NewServer(cfg *config.Config, log *zap.Logger, repos *database.Repositories, registry *infraprovider.Registry) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		repos:    repos,
		registry: registry,
	}
}

func (s *Server) Start() error {
	// Setup routes
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

	// Initialize usecases and handlers
	paymentService := usecase.NewPaymentService(s.repos.Payment, s.repos.Plan, s.registry, s.logger)
	completionService := usecase.NewCompletionService(s.repos.Tx, s.repos.Plan, s.logger)

	plansHandler := handlers.NewPlansHandler(s.logger, s.repos.Plan)
	paymentHandler := handlers.NewPaymentHandler(paymentService, s.logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.logger, s.repos.Subscription)
	webhookHandler := handlers.NewWebhookHandler(s.logger, s.repos.Webhook, s.repos.Payment, completionService, s.registry)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhooks",
			"/api/v1/plans",
			"/api/v1/internal/webhook-events",
		},
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public routes (no authentication required)
	v1.GET("/plans", plansHandler.List)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	protected.POST("/payments", paymentHandler.Initiate)
	protected.GET("/payments", paymentHandler.List)
	protected.GET("/payments/:id", paymentHandler.Get)

	protected.GET("/subscriptions/current", subscriptionHandler.Current)

	// Internal/Debug routes
	internal := v1.Group("/internal")
	internal.GET("/webhook-events", webhookHandler.ListUnprocessed)

	// Provider callback routes (outside API versioning)
	s.echo.POST("/webhooks/:provider", webhookHandler.Handle)
}
