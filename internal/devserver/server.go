// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is where serve-dev listens. The client's default base URL
	// points here.
	DefaultAddr = "127.0.0.1:8000"

	// DefaultAccessTTL matches the production server's access lifetime.
	DefaultAccessTTL = 60 * time.Minute

	// RefreshTTL is the lifetime of refresh tokens.
	RefreshTTL = 24 * time.Hour

	// MaxRequestBodySize caps request bodies (1MB).
	MaxRequestBodySize = 1 << 20

	// DefaultRequestsPerMinute is the per-IP limit.
	DefaultRequestsPerMinute = 600

	// Version is reported by the health endpoint.
	Version = "0.1.0"
)

// ============================================================================
// STATS
// ============================================================================

// Stats counts server activity.
type Stats struct {
	requests atomic.Int64
	logins   atomic.Int64
	streams  atomic.Int64
	frames   atomic.Int64
	start    time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Requests int64         `json:"requests"`
	Logins   int64         `json:"logins"`
	Streams  int64         `json:"streams"`
	Frames   int64         `json:"frames"`
	Uptime   time.Duration `json:"uptime_ns"`
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests: s.requests.Load(),
		Logins:   s.logins.Load(),
		Streams:  s.streams.Load(),
		Frames:   s.frames.Load(),
		Uptime:   time.Since(s.start),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Config holds server settings.
type Config struct {
	// Secret signs tokens. Empty means a random per-process secret.
	Secret string

	AccessTTL time.Duration

	// ChunkDelay pauses between text frames to make streaming visible.
	ChunkDelay time.Duration

	// RequestsPerMinute per client IP; zero or less disables the limit.
	RequestsPerMinute int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the clock used for tokens and series.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithScript sets the initial reply script.
func WithScript(sc *Script) Option {
	return func(s *Server) {
		if sc != nil {
			s.script.Store(sc)
		}
	}
}

// Server is the development API server.
type Server struct {
	db     *storage.DB
	cfg    Config
	tokens signer
	script atomic.Pointer[Script]
	stats  *Stats
	engine *gin.Engine
	logger *zap.Logger
	now    func() time.Time
}

// New builds a server over db.
func New(db *storage.DB, cfg Config, opts ...Option) *Server {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
	}
	s := &Server{
		db:     db,
		cfg:    cfg,
		tokens: signer{secret: []byte(secret)},
		stats:  &Stats{start: time.Now()},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	s.script.Store(DefaultScript())
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(
		recovery(s.logger),
		requestLogger(s.logger, s.stats),
		securityHeaders(),
		rateLimit(NewRateLimiter(cfg.RequestsPerMinute, time.Minute)),
		limitBody(MaxRequestBodySize),
	)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/auth/login/", s.handleLogin)
	api.GET("/stocks/history/", s.handleHistory)

	conv := api.Group("/conversations", s.requireAuth())
	conv.GET("/", s.handleList)
	conv.POST("/create/", s.handleCreate)
	conv.GET("/:id/", s.handleGet)
	conv.POST("/:id/rename/", s.handleRename)
	conv.DELETE("/:id/delete/", s.handleDelete)
	conv.POST("/:id/stream/", s.handleStream)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// SetScript swaps the reply script. Streams already running keep theirs.
func (s *Server) SetScript(sc *Script) {
	if sc != nil {
		s.script.Store(sc)
	}
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() StatsSnapshot { return s.stats.snapshot() }

// Run listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("Development server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	s.logger.Info("Development server stopped")
	return nil
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": Version,
		"stats":   s.stats.snapshot(),
	})
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" || body.Password == "" {
		detail(c, http.StatusBadRequest, "username and password required")
		return
	}
	user, err := s.db.Authenticate(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCredentials) {
			detail(c, http.StatusUnauthorized, "No active account found with the given credentials")
			return
		}
		s.internalError(c, "authenticate", err)
		return
	}

	now := s.now()
	access, err := s.tokens.issue(user.ID, user.Username, tokenAccess, now, s.cfg.AccessTTL)
	if err != nil {
		s.internalError(c, "issue token", err)
		return
	}
	refresh, err := s.tokens.issue(user.ID, user.Username, tokenRefresh, now, RefreshTTL)
	if err != nil {
		s.internalError(c, "issue token", err)
		return
	}
	s.stats.logins.Add(1)
	s.logger.Info("Login", zap.String("username", user.Username))
	c.JSON(http.StatusOK, gin.H{"access": access, "refresh": refresh})
}

func (s *Server) handleList(c *gin.Context) {
	mode, err := model.ParseMode(c.Query("mode"))
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	convs, err := s.db.ListConversations(c.Request.Context(), userOf(c).UserID, mode)
	if err != nil {
		s.internalError(c, "list conversations", err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

type createBody struct {
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

func (s *Server) handleCreate(c *gin.Context) {
	var body createBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			detail(c, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	mode, err := model.ParseMode(body.Mode)
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		title = model.DefaultTitle
	}
	conv, err := s.db.CreateConversation(c.Request.Context(), userOf(c).UserID, title, mode)
	if err != nil {
		s.internalError(c, "create conversation", err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (s *Server) handleGet(c *gin.Context) {
	conv, err := s.db.GetConversation(c.Request.Context(), userOf(c).UserID, c.Param("id"))
	if err != nil {
		s.storageError(c, "get conversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type renameBody struct {
	Title string `json:"title"`
}

func (s *Server) handleRename(c *gin.Context) {
	var body renameBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Title) == "" {
		detail(c, http.StatusBadRequest, "title required")
		return
	}
	conv, err := s.db.RenameConversation(c.Request.Context(), userOf(c).UserID, c.Param("id"), strings.TrimSpace(body.Title))
	if err != nil {
		s.storageError(c, "rename conversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.db.DeleteConversation(c.Request.Context(), userOf(c).UserID, c.Param("id")); err != nil {
		s.storageError(c, "delete conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHistory(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		detail(c, http.StatusBadRequest, "symbol required")
		return
	}
	period := market.DefaultPeriod
	if p := c.Query("period"); p != "" {
		parsed, err := market.ParsePeriod(p)
		if err != nil {
			detail(c, http.StatusBadRequest, err.Error())
			return
		}
		period = parsed
	}
	c.JSON(http.StatusOK, Series(symbol, period, s.now()))
}

func (s *Server) storageError(c *gin.Context, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		detail(c, http.StatusNotFound, "Not found")
		return
	}
	s.internalError(c, op, err)
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	detail(c, http.StatusInternalServerError, "Internal server error")
}
