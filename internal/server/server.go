// Package server wires the digital twin's subsystems into an HTTP server.
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hydroward/damtwin/internal/assessment"
	"github.com/hydroward/damtwin/internal/auth"
	"github.com/hydroward/damtwin/internal/ciphertext"
	"github.com/hydroward/damtwin/internal/config"
	"github.com/hydroward/damtwin/internal/coproc"
	"github.com/hydroward/damtwin/internal/events"
	"github.com/hydroward/damtwin/internal/health"
	"github.com/hydroward/damtwin/internal/logging"
	"github.com/hydroward/damtwin/internal/maintenance"
	"github.com/hydroward/damtwin/internal/metrics"
	"github.com/hydroward/damtwin/internal/proof"
	"github.com/hydroward/damtwin/internal/ratelimit"
	"github.com/hydroward/damtwin/internal/realtime"
	"github.com/hydroward/damtwin/internal/security"
	"github.com/hydroward/damtwin/internal/thresholds"
	"github.com/hydroward/damtwin/internal/traces"
	"github.com/hydroward/damtwin/internal/validation"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg           *config.Config
	assessmentSvc *assessment.Service
	thresholdSvc  *thresholds.Service
	maintenance   *maintenance.Service
	realtimeHub   *realtime.Hub
	healthReg     *health.Registry
	rateLimiter   *ratelimit.Limiter
	db            *sql.DB // nil if using in-memory
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	shutdownTrace func(context.Context) error
	cancelRunCtx  context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, cfg.LogFormat),
		healthReg: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	verifier, err := proof.NewECDSAVerifier(cfg.CoprocessorSigner)
	if err != nil {
		return nil, fmt.Errorf("configure proof verifier: %w", err)
	}
	authorizer := auth.NewOperatorSet(cfg.OperatorAddresses)

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var assessmentStore assessment.Store
	var thresholdStore thresholds.Store
	var maintenanceStore maintenance.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		assessmentStore = assessment.NewPostgresStore(db)
		thresholdStore = thresholds.NewPostgresStore(db)
		maintenanceStore = maintenance.NewPostgresStore(db)
		s.healthReg.Register("database", health.DBChecker(db))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		assessmentStore = assessment.NewMemoryStore()
		thresholdStore = thresholds.NewMemoryStore()
		maintenanceStore = maintenance.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Realtime hub and event emitter
	s.realtimeHub = realtime.NewHub(s.logger)
	emitter := events.NewEmitter(s.realtimeHub, s.logger)

	// Thresholds: install boot defaults exactly once; a restart finds them
	// already present and keeps the live version.
	s.thresholdSvc = thresholds.NewService(thresholdStore, authorizer, s.logger)
	seepage, _ := ciphertext.Parse(cfg.DefaultSeepageThreshold)
	deformation, _ := ciphertext.Parse(cfg.DefaultDeformationThreshold)
	if err := s.thresholdSvc.Initialize(ctx, seepage, deformation); err != nil {
		if !errors.Is(err, thresholds.ErrAlreadyInitialized) {
			return nil, fmt.Errorf("initialize thresholds: %w", err)
		}
		s.logger.Info("thresholds already initialized, keeping live values")
	} else {
		s.logger.Info("default thresholds installed")
	}

	// Coprocessor channel
	var channel assessment.Channel
	if cfg.CoprocessorURL != "" {
		channel = coproc.NewHTTPChannel(cfg.CoprocessorURL, cfg.CoprocessorSecret, s.logger)
		s.logger.Info("coprocessor channel configured", "url", cfg.CoprocessorURL)
	} else {
		channel = coproc.NoopChannel{}
		s.logger.Warn("no coprocessor URL configured, payloads will not be forwarded")
	}

	s.assessmentSvc = assessment.NewService(assessmentStore, s.thresholdSvc, verifier, authorizer, s.logger).
		WithChannel(channel).
		WithEmitter(emitter)

	s.maintenance = maintenance.NewService(maintenanceStore, authorizer, s.logger).
		WithEmitter(emitter)

	// Tracing (no-op when no endpoint is configured)
	shutdownTrace, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("tracing disabled", "error", err)
	} else {
		s.shutdownTrace = shutdownTrace
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware([]string{"*"}))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	s.router.Use(s.rateLimiter.Middleware())

	s.router.Use(metrics.GinMiddleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())
		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		switch {
		case status >= 500:
			logger.Error("request completed", args...)
		case status >= 400:
			logger.Warn("request completed", args...)
		default:
			logger.Info("request completed", args...)
		}
	}
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/livez", s.livenessHandler)
	s.router.GET("/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")
	assessment.NewHandler(s.assessmentSvc).RegisterRoutes(v1)
	thresholds.NewHandler(s.thresholdSvc).RegisterRoutes(v1)
	maintenance.NewHandler(s.maintenance).RegisterRoutes(v1)

	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})
	s.router.GET("/ws/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.realtimeHub.Stats())
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())
	if !s.healthy.Load() {
		healthy = false
	}

	code := http.StatusOK
	status := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	c.JSON(code, gin.H{
		"status":     status,
		"subsystems": statuses,
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)

	if s.db != nil {
		metrics.StartDBCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.shutdownTrace != nil {
		if err := s.shutdownTrace(ctx); err != nil {
			s.logger.Warn("trace exporter shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Hub returns the realtime hub for testing
func (s *Server) Hub() *realtime.Hub {
	return s.realtimeHub
}
