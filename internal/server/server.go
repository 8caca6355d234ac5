// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	_ "inkwell/docs" // swagger docs
	"inkwell/internal/auth"
	"inkwell/internal/authz"
	"inkwell/internal/bootstrap"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/featureflags"
	"inkwell/internal/mailer"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
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
	limiter        *middleware.RateLimiter
	featureFlags   *featureflags.Manager
	guard          *authz.Guard
	authService    *service.AuthService
	verification   *service.VerificationService
	postService    *service.PostService
	commentService *service.CommentService
	taxonomy       *service.TaxonomyService
	userService    *service.UserService
}

// NewServer connects the database, Redis and the mail transport named by the
// environment, then wires the server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}

	mailCfg, err := mailer.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("mailer config: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, mailer.New(mailCfg, middleware.Logger))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with sqlite, miniredis and a recording mail sender.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, sender mailer.Sender) (*Server, error) {
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:   cfg.SigningSecret(),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	if redisClient != nil && cache.GetClient() != redisClient {
		cache.SetClient(redisClient)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	guard := authz.NewGuard(tokens, userRepo, cache.IsRevoked)

	verification := service.NewVerificationService(userRepo, sender, service.VerificationConfig{
		Enabled:   cfg.EmailVerificationEnabled,
		TTL:       service.DefaultVerificationTTL,
		ClientURL: cfg.ClientURL,
	})
	taxonomy := service.NewTaxonomyService(
		repository.NewCategoryRepository(db),
		repository.NewTagRepository(db),
		guard,
	)
	images := service.NewImageService(cfg.UploadDir, cfg.MaxAvatarBytes, flags)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("inkwell-api"),
		limiter:        middleware.NewRateLimiter(redisClient, cfg.Env),
		featureFlags:   flags,
		guard:          guard,
		authService:    service.NewAuthService(userRepo, tokens, verification),
		verification:   verification,
		postService:    service.NewPostService(postRepo, taxonomy, guard, cfg.MaxPageSize),
		commentService: service.NewCommentService(commentRepo, postRepo, guard),
		taxonomy:       taxonomy,
		userService:    service.NewUserService(userRepo, postRepo, images, guard),
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Avatars are embedded by the client from another origin.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))

	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Static("/uploads", s.config.UploadDir)

	authRequired := s.AuthRequired()

	authGroup := app.Group("/auth")
	authGroup.Post("/register", s.limiter.Limit("register", 5, 10*time.Minute), s.Register)
	authGroup.Post("/login", s.limiter.Limit("login", 10, 5*time.Minute), s.Login)
	authGroup.Post("/logout", authRequired, s.Logout)
	authGroup.Post("/verify-email", s.VerifyEmail)
	authGroup.Post("/resend-verification", s.limiter.Limit("resend_verification", 3, 10*time.Minute), s.ResendVerification)

	posts := app.Group("/posts")
	posts.Get("/", s.ListPosts)
	posts.Post("/", authRequired, s.limiter.Limit("create_post", 10, time.Minute), s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Get("/:id/similar", s.SimilarPosts)
	posts.Post("/:id/like", authRequired, s.ToggleLike)
	posts.Get("/:id/comments", s.ListComments)
	posts.Post("/:id/comments", authRequired, s.limiter.Limit("create_comment", 20, time.Minute), s.CreateComment)
	posts.Post("/:id/comments/:commentId/replies", authRequired, s.limiter.Limit("create_comment", 20, time.Minute), s.CreateReply)
	posts.Put("/:id/comments/:commentId", authRequired, s.UpdateComment)
	posts.Patch("/:id/comments/:commentId", authRequired, s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", authRequired, s.DeleteComment)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", authRequired, s.UpdatePost)
	posts.Patch("/:id", authRequired, s.UpdatePost)
	posts.Delete("/:id", authRequired, s.DeletePost)

	s.termRoutes(app.Group("/categories"), models.KindCategory, authRequired)
	s.termRoutes(app.Group("/tags"), models.KindTag, authRequired)

	users := app.Group("/users", authRequired)
	users.Get("/", s.ListUsers)
	users.Get("/me", s.GetMe)
	users.Patch("/me", s.UpdateMe)
	users.Put("/me", s.UpdateMe)
	users.Patch("/me/avatar", s.UploadAvatar)
	users.Get("/me/dashboard", s.GetDashboard)
	users.Get("/:id", s.GetUser)
	users.Delete("/:id", s.DeleteUser)

	admin := app.Group("/admin", authRequired, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

func (s *Server) termRoutes(group fiber.Router, kind models.TermKind, authRequired fiber.Handler) {
	group.Get("/", s.ListTerms(kind))
	group.Get("/:id", s.GetTerm(kind))
	group.Post("/", authRequired, s.CreateTerm(kind))
	group.Put("/:id", authRequired, s.UpdateTerm(kind))
	group.Patch("/:id", authRequired, s.UpdateTerm(kind))
	group.Delete("/:id", authRequired, s.DeleteTerm(kind))
}

// NewApp builds the fiber application with middleware and routes attached.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Inkwell API",
		BodyLimit:    int(s.config.MaxAvatarBytes) + 1<<20,
		ErrorHandler: ErrorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional: the
// service is ready without it, only degraded.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	case redisStatus != "healthy":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
