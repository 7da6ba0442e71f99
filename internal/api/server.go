// Package api exposes the repository over a small JSON HTTP surface for the
// UI process.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/njoerd114/saleslive/internal/model"
	"github.com/njoerd114/saleslive/internal/repository"
)

const shutdownTimeout = 5 * time.Second

// Server routes HTTP requests to a [repository.Repository].
type Server struct {
	repo   *repository.Repository
	log    *slog.Logger
	engine *gin.Engine
}

// Option configures a [Server].
type Option func(*serverOptions)

type serverOptions struct {
	allowOrigins []string
}

// WithAllowedOrigins enables CORS for browser front-ends served from the
// given origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *serverOptions) { o.allowOrigins = append(o.allowOrigins, origins...) }
}

// NewServer builds the router. gin runs in release mode; request logs go to
// logger.
func NewServer(repo *repository.Repository, logger *slog.Logger, opts ...Option) *Server {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{repo: repo, log: logger, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger(logger))
	if len(o.allowOrigins) > 0 {
		s.engine.Use(cors.New(cors.Config{
			AllowOrigins:  o.allowOrigins,
			AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return ctx.Err()
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/bills", s.createBill)
		v1.POST("/bills/:id/paid", s.markBillPaid)

		v1.POST("/shops", s.createShop)
		v1.GET("/shops/:id", s.getShop)
		v1.PATCH("/shops/:id", s.updateShop)
		v1.GET("/shops/:id/bills", s.billsByShop)
		v1.GET("/shops/:id/bills/today", s.todayBills)
		v1.GET("/shops/:id/analytics/last-7-days", s.last7Days)
		v1.GET("/shops/:id/analytics/top-products", s.topProducts)
		v1.GET("/shops/:id/analytics/summary", s.salesSummary)
		v1.GET("/shops/:id/dashboard", s.dashboard)
		v1.GET("/shops/:id/products", s.products)
		v1.GET("/shops/:id/staff", s.staff)
		v1.POST("/shops/:id/invites", s.inviteStaff)

		v1.POST("/products", s.saveProduct)
		v1.DELETE("/products/:id", s.deleteProduct)

		v1.GET("/staff/:id/bills", s.billsByStaff)
		v1.DELETE("/staff/:id", s.deleteStaff)
		v1.POST("/staff/:id/invite", s.resendInvite)

		v1.GET("/users", s.users)
		v1.POST("/users", s.createUser)
		v1.GET("/users/:id", s.getUser)
		v1.PATCH("/users/:id", s.updateUser)

		v1.POST("/sync", s.syncNow)
		v1.GET("/sync/status", s.syncStatus)
	}
}

// requestLogger logs one line per request at a level derived from the status.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		logger.Log(c.Request.Context(), level, "http request", attrs...)
	}
}

// fail writes the JSON error body matching err's kind.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateEmail):
		status = http.StatusConflict
	}
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}
