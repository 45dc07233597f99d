// Package server is a local simulator of the authentication API consumed by
// distctl. It implements the same HTTP contract as the production service
// (login, MFA verification, password reset, passcode resend, logout) on top
// of a SQLite database, for development and contract tests.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voltway/distctl/internal/auth"
	"github.com/voltway/distctl/internal/models"
)

// CodeHook observes every issued passcode. It stands in for the out-of-band
// delivery channel (email/SMS).
type CodeHook func(email, purpose, code string)

// Options configures the simulator
type Options struct {
	DatabaseURL  string
	JWTSecret    string // generated when empty
	FixedCode    string // every issued passcode equals this value when set
	TokenTTL     time.Duration
	CodeTTL      time.Duration
	MaxAttempts  int
	AllowOrigins []string
	OnCode       CodeHook
	// SweepSchedule is a 5-field cron expression for housekeeping
	SweepSchedule string
}

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	db     *gorm.DB
	logger zerolog.Logger
	tokens *auth.Tokens
	opts   Options
	now    func() time.Time
}

// New creates a new server instance
func New(opts Options, zlog zerolog.Logger) (*Server, error) {
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 12 * time.Hour
	}
	if opts.CodeTTL == 0 {
		opts.CodeTTL = 10 * time.Minute
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 5
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"http://localhost:5173"}
	}
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = DefaultSweepSchedule
	}
	if _, err := scheduleParser.Parse(opts.SweepSchedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", opts.SweepSchedule, err)
	}
	if opts.FixedCode != "" && !auth.IsCode(opts.FixedCode) {
		return nil, fmt.Errorf("fixed code must be %d digits", auth.CodeLength)
	}

	db, err := initDatabase(opts.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	secret := opts.JWTSecret
	if secret == "" {
		// 64 hex characters = 32 bytes of randomness
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		secret = hex.EncodeToString(secretBytes)
		zlog.Info().Msg("No JWT secret configured - generated an ephemeral one")
	}
	tokens, err := auth.NewTokens(secret, opts.TokenTTL)
	if err != nil {
		return nil, err
	}

	if err := registerValidators(); err != nil {
		return nil, err
	}

	server := &Server{
		db:     db,
		logger: zlog,
		tokens: tokens,
		opts:   opts,
		now:    time.Now,
	}

	server.setupRouter()

	return server, nil
}

// registerValidators adds the custom binding rules used by request types
func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine")
	}
	return v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return auth.IsCode(fl.Field().String())
	})
}

// initDatabase opens the SQLite database
func initDatabase(url string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(url), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=1"} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	return db, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// The browser console calls the API cross-origin during development
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.opts.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)

	// Public auth endpoints
	s.router.POST("/api/setup", s.setupFirstAdmin)
	s.router.POST("/api/auth/login", s.login)
	s.router.POST("/api/auth/mfa/verify", s.verifyMFA)
	s.router.POST("/api/auth/password/reset", s.resetPassword)
	s.router.POST("/api/auth/otp/resend", s.resendOTP)

	// Authenticated API routes (JWT required)
	api := s.router.Group("/api")
	api.Use(JWTAuthMiddleware(s.db, s.tokens, s.logger))
	{
		api.POST("/auth/logout", s.logout)
		api.GET("/auth/me", s.getCurrentUser)

		userRoutes := api.Group("/users")
		userRoutes.Use(AdminOnlyMiddleware(s.logger))
		{
			userRoutes.GET("", s.listUsers)
			userRoutes.POST("", s.createUser)
			userRoutes.DELETE("/:id", s.deleteUser)
		}
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "authsim",
	})
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection
func (s *Server) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Start serves on addr until SIGINT/SIGTERM
func (s *Server) Start(addr string) error {
	stopSweeper, err := s.StartSweeper()
	if err != nil {
		return err
	}
	defer stopSweeper()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting auth simulator")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
	}
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	if err := s.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
