// Package server contains the HTTP handlers and route table of the blog API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "inkwell/docs" // swagger docs
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/featureflags"
	"inkwell/internal/mail"
	"inkwell/internal/markdown"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/oauth"
	"inkwell/internal/repository"
	"inkwell/internal/search"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options carries the optional collaborators built by cmd/server.
type Options struct {
	// Search backs /posts/search and related posts; nil disables both.
	Search *search.Client
	// Mailer delivers verification and comment mail; nil disables mail.
	Mailer *mail.Mailer
	// Google enables Google sign-in; nil disables it.
	Google *oauth.Google
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	auth           *middleware.Authenticator
	featureFlags   *featureflags.Manager
	notifier       *notifications.Notifier
	mailer         *mail.Mailer
	postService    *service.PostService
	commentService *service.CommentService
	authService    *service.AuthService
}

// NewServer wires repositories and services on top of an open database.
// redisClient may be nil: rate limits fail open, sign-out cannot revoke and
// events are not published.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts Options) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server: config and database are required")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	renderer := markdown.NewRenderer()
	flags := featureflags.NewManager(cfg.FeatureFlags)
	tokens := middleware.NewTokenManager(cfg)

	s := &Server{
		config:       cfg,
		db:           db,
		redis:        redisClient,
		featureFlags: flags,
		mailer:       opts.Mailer,
	}

	var (
		events  service.EventPublisher
		store   service.AuthTokenStore
		revoked middleware.RevocationChecker
	)
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		events = s.notifier
		tokenStore := cache.NewTokenStore(redisClient)
		store = tokenStore
		revoked = tokenStore
	}

	var indexer service.PostIndexer
	if opts.Search != nil {
		indexer = opts.Search
	}

	s.auth = middleware.NewAuthenticator(tokens, userRepo, revoked)
	s.postService = service.NewPostService(postRepo, renderer, indexer, events, flags)
	s.commentService = service.NewCommentService(commentRepo, userRepo, renderer, events, flags)

	var verifier service.VerificationMailer
	if opts.Mailer != nil {
		verifier = opts.Mailer
		s.commentService.WithMailer(opts.Mailer, cfg.AppURL)
	}
	s.authService = service.NewAuthService(userRepo, tokens, store, verifier, service.AuthConfig{
		AppURL:                   cfg.AppURL,
		RequireEmailVerification: cfg.RequireEmailVerification,
		VerificationTTL:          time.Duration(cfg.VerificationTokenTTLHours) * time.Hour,
	})
	if opts.Google != nil {
		s.authService.WithGoogle(opts.Google)
	}

	return s, nil
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Inkwell API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler renders errors that escape handlers, including fiber's own 404/405.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusNotFound:
			return models.RespondWithError(c, fe.Code, models.NewNotFoundError("Route", c.Path()))
		case fiber.StatusMethodNotAllowed, fiber.StatusRequestEntityTooLarge:
			return models.RespondWithError(c, fe.Code, models.NewValidationError(fe.Message))
		}
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	middleware.InitMetrics(app, "inkwell-api")
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: !strings.Contains(origins, "*"),
		MaxAge:           86400,
	}))
	app.Use(compress.New())

	globalMax := s.config.RateLimitGlobalPerMinute
	if globalMax <= 0 {
		globalMax = 300
	}
	app.Use(limiter.New(limiter.Config{
		Max:        globalMax,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Success: false,
				Code:    "RATE_LIMITED",
				Message: "Too many requests, please try again later.",
			})
		},
	}))
}

func perMinute(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	app.Get("/swagger/*", swagger.HandlerDefault)

	authLimit := middleware.RateLimit(s.redis, perMinute(s.config.RateLimitAuthPerMinute, 10), time.Minute, "auth")
	writeLimit := middleware.RateLimit(s.redis, perMinute(s.config.RateLimitWritePerMinute, 30), time.Minute, "write")
	guard := s.auth.Guard

	auth := app.Group("/api/auth")
	auth.Post("/sign-up/email", authLimit, s.SignUp)
	auth.Post("/sign-in/email", authLimit, s.SignIn)
	auth.Post("/resend-verification", authLimit, s.ResendVerification)
	auth.Get("/verify-email", s.VerifyEmail)
	auth.Post("/sign-out", guard(middleware.OpSessionEnd), s.SignOut)
	auth.Get("/get-session", guard(middleware.OpSessionGet), s.GetSession)
	auth.Get("/google", s.GoogleSignIn)
	auth.Get("/google/callback", s.GoogleCallback)

	app.Get("/api/feature-flags", s.auth.OptionalAuth(), s.GetFeatureFlags)

	posts := app.Group("/posts")
	posts.Get("/", guard(middleware.OpPostList), s.GetPosts)
	posts.Get("/stats", guard(middleware.OpPostStats), s.GetPostStats)
	posts.Get("/search", guard(middleware.OpPostSearch), s.SearchPosts)
	posts.Get("/myPost", guard(middleware.OpPostMine), s.GetMyPosts)
	posts.Post("/", guard(middleware.OpPostCreate), writeLimit, s.CreatePost)
	posts.Patch("/updatePost/:postId", guard(middleware.OpPostUpdate), writeLimit, s.UpdatePost)
	posts.Delete("/delete/:id", guard(middleware.OpPostDelete), writeLimit, s.DeletePost)
	posts.Get("/:id/related", guard(middleware.OpPostRelated), s.GetRelatedPosts)
	posts.Get("/:id", guard(middleware.OpPostGet), s.GetPost)

	comments := app.Group("/comments")
	comments.Post("/", guard(middleware.OpCommentCreate), writeLimit, s.CreateComment)
	comments.Get("/author/:authorId", guard(middleware.OpCommentAuthor), s.GetCommentsByAuthor)
	comments.Patch("/:id/moderate", guard(middleware.OpCommentModerate), writeLimit, s.ModerateComment)
	comments.Get("/:id", guard(middleware.OpCommentGet), s.GetComment)
	comments.Patch("/:id", guard(middleware.OpCommentUpdate), writeLimit, s.UpdateComment)
	comments.Delete("/:id", guard(middleware.OpCommentDelete), writeLimit, s.DeleteComment)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional, so an
// unconfigured Redis degrades readiness without failing it.
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
	overall := "healthy"
	switch {
	case dbStatus != "healthy" || redisStatus == "unhealthy":
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	case redisStatus == "unavailable":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"search":   s.postService.SearchEnabled(),
		},
		"time": time.Now(),
	})
}

// Shutdown stops accepting requests, drains outgoing mail and closes the
// database and Redis connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.mailer != nil {
		if err := s.mailer.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := database.Close(s.db); err != nil {
		errs = append(errs, err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	middleware.Logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}
