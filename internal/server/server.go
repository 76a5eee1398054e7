// Package server contains the HTTP and WebSocket handlers of the workflow API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/rockymount114/City-Workflow/docs" // swagger docs
	"github.com/rockymount114/City-Workflow/internal/cache"
	"github.com/rockymount114/City-Workflow/internal/config"
	"github.com/rockymount114/City-Workflow/internal/database"
	"github.com/rockymount114/City-Workflow/internal/featureflags"
	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/notifications"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	repos          repository.Repos
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	applications   *service.ApplicationService
	users          *service.UserService
	requests       *service.RequestService
	approvals      *service.ApprovalService
	analytics      *service.AnalyticsService
	audit          *service.AuditService
}

// NewServer connects to the database and Redis and builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, rate limiting and realtime events are
// then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	repos := repository.NewRepos(db)
	tx := repository.NewTransactor(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("city-workflow-api"),
		repos:          repos,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	// A typed nil notifier must not end up inside the publisher interface.
	var pub service.EventPublisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		pub = server.notifier
	}

	server.applications = service.NewApplicationService(repos.Applications, tx, pub, server.featureFlags)
	server.users = service.NewUserService(repos.Users, tx, cfg.EmailDomain)
	server.requests = service.NewRequestService(repos, tx, pub, server.featureFlags)
	server.approvals = service.NewApprovalService(repos, tx, pub, server.featureFlags)
	server.analytics = service.NewAnalyticsService(repos.Stats, server.featureFlags)
	server.audit = service.NewAuditService(repos.Audit)

	return server, nil
}

// globalRequestsPerMinute caps every client IP across all routes.
const globalRequestsPerMinute = 100

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagates request and trace IDs into the user context for logging.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs ahead of the limiter so a 429 still carries CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		ExposeHeaders:    "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        globalRequestsPerMinute,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  middleware.CodeRateLimited,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "City Workflow Metrics",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	protected := api.Group("", s.AuthRequired())

	protected.Get("/ws/events", s.EventsWebsocket())

	protected.Get("/applications", s.ListActiveApplications)

	requests := protected.Group("/requests")
	requests.Post("/", middleware.RateLimit(
		s.redis, 10, time.Minute, "submit_request"), s.SubmitRequest)
	requests.Get("/", s.ListMyRequests)
	// Specific /:id/:action routes before generic /:id
	requests.Post("/:id/resubmit", s.ResubmitRequest)
	requests.Get("/:id", s.GetRequest)

	approvals := protected.Group("/approvals",
		middleware.RequireRoles(models.RoleAdmin, models.RoleApproverL1, models.RoleApproverL2))
	approvals.Get("/queue", s.GetApprovalQueue)
	approvals.Post("/:id/actions", middleware.RateLimit(
		s.redis, 60, time.Minute, "approval_action"), s.ActOnRequest)

	admin := protected.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.Get("/analytics", s.GetAnalytics)
	admin.Get("/dashboard/stats", s.GetDashboardStats)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/audit-logs", s.ListAuditLogs)

	apps := admin.Group("/applications")
	apps.Get("/", s.ListApplications)
	apps.Post("/", s.CreateApplication)
	apps.Get("/:id", s.GetApplication)
	apps.Put("/:id", s.UpdateApplication)
	apps.Delete("/:id", s.DeleteApplication)

	users := admin.Group("/users")
	users.Get("/", s.ListUsers)
	users.Post("/", s.CreateUser)
	users.Post("/:id/unlock", s.UnlockUser)
	users.Get("/:id", s.GetUser)
	users.Put("/:id", s.UpdateUser)
	users.Delete("/:id", s.DeleteUser)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional, so
// only a failing database makes the service unready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus != "healthy":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired authenticates the bearer token, loads the user and stores
// the principal. The websocket route also accepts a token query parameter.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		raw, err := middleware.BearerToken(c, isWSPath)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, middleware.ErrMissingToken) {
				msg = "Authorization required"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}

		claims, err := middleware.ParseToken(s.config, raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if claims.ID != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), "blacklist:"+claims.ID).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		userID, _ := claims.UserID()
		user, err := s.repos.Users.GetCached(c.UserContext(), userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("User no longer exists"))
			}
			return respondAppError(c, err)
		}
		if !user.IsActive {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Account is inactive"))
		}
		if user.IsLocked(time.Now()) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Account is locked"))
		}

		// The role comes from the stored user, not the token, so role
		// changes apply without reissuing tokens.
		middleware.SetPrincipal(c, models.Principal{UserID: user.ID, Role: user.Role})
		return c.Next()
	}
}

// errorHandler answers errors that escaped the handlers, such as unknown
// routes or failed websocket upgrades.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	return respondAppError(c, err)
}

// App builds the fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "City Workflow API",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start event hub wiring", slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the subscriber goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down event hub", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
