package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zpam/spamscore/pkg/config"
	"github.com/zpam/spamscore/pkg/email"
	"github.com/zpam/spamscore/pkg/filter"
	"go.uber.org/zap"
)

// Analyzer scores raw messages
type Analyzer interface {
	Analyze(ctx context.Context, raw string) (*filter.AnalysisResult, error)
}

// StatsReporter exposes component statistics on the health endpoint
type StatsReporter interface {
	Stats() map[string]interface{}
}

// AnalyzeRequest is the body of POST /analyze
type AnalyzeRequest struct {
	Raw string `json:"raw"`
}

// Server is the HTTP API in front of the analyzer
type Server struct {
	config    config.ServerConfig
	analyzer  Analyzer
	reporter  StatsReporter
	logger    *zap.Logger
	router    *gin.Engine
	startTime time.Time
}

// NewServer creates the HTTP API. reporter may be nil.
func NewServer(cfg config.ServerConfig, analyzer Analyzer, reporter StatsReporter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))
	router.Use(CORS(cfg.AllowedOrigins))

	s := &Server{
		config:    cfg,
		analyzer:  analyzer,
		reporter:  reporter,
		logger:    logger,
		router:    router,
		startTime: time.Now(),
	}

	router.POST("/analyze", s.handleAnalyze)
	router.GET("/health", s.handleHealth)

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", zap.String("address", s.config.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := time.Duration(s.config.ShutdownTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down HTTP API")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleAnalyze(c *gin.Context) {
	if s.config.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes)
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "request body must be JSON with a raw field"})
		return
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), req.Raw)
	if err != nil {
		var vErr *email.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": vErr.Error()})
			return
		}
		s.logger.Error("analysis failed", zap.Error(err), zap.NamedError("cause", errors.Unwrap(err)))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Analysis failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHealth(c *gin.Context) {
	response := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.reporter != nil {
		response["reputation"] = s.reporter.Stats()
	}
	c.JSON(http.StatusOK, response)
}
