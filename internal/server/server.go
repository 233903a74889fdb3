// Package server exposes the arbitration service over HTTP with gin.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"arbiter/internal/service"
	"arbiter/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server wires the arbitration service into an HTTP surface.
type Server struct {
	service *service.ArbiterService
	logger  *zap.Logger
	version string
	router  *gin.Engine
	http    *http.Server
}

// Options configures the HTTP surface.
type Options struct {
	Addr        string
	Version     string
	CORSOrigins []string
}

// New builds a server over the given service.
func New(svc *service.ArbiterService, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(CORS(opts.CORSOrigins))
	router.Use(AgentProcessed())

	s := &Server{
		service: svc,
		logger:  logger,
		version: opts.Version,
		router:  router,
		http: &http.Server{
			Addr:    opts.Addr,
			Handler: router,
		},
	}
	s.registerRoutes()
	return s
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/arbitrate", s.handleArbitrate)
	s.router.POST("/arbitrate/stream", s.handleArbitrateStream)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Service: "AI Arbiter",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if !s.service.Ready() {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, types.HealthResponse{
		Status:  status,
		Version: s.version,
		Service: "AI Arbiter",
	})
}

func (s *Server) handleArbitrate(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}

	envelope, err := s.service.Arbitrate(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope)
}

// handleArbitrateStream decodes the request body itself rather than going
// through bindRequest: once a body parses, every failure including
// validation surfaces as the stream's single terminal error frame, not as an
// HTTP error status.
func (s *Server) handleArbitrateStream(c *gin.Context) {
	var req types.ArbitrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeErrorCode(c, http.StatusBadRequest, "HTTP_400", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.writeError(c, fmt.Errorf("streaming not supported"))
		return
	}

	events, cancel := s.service.ArbitrateStream(c.Request.Context(), &req)
	defer cancel()

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("failed to encode stream event", zap.Error(err))
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// bindRequest decodes and structurally validates the arbitration request,
// writing the error response itself on failure.
func (s *Server) bindRequest(c *gin.Context) (*types.ArbitrationRequest, bool) {
	var req types.ArbitrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeErrorCode(c, http.StatusBadRequest, "HTTP_400", fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}
	if err := s.service.ValidatePolicy(&req); err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return &req, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	var vErr *types.ValidationError
	if errors.As(err, &vErr) {
		s.writeErrorCode(c, http.StatusBadRequest, "HTTP_400", vErr.Error())
		return
	}
	s.logger.Error("arbitration failed", zap.Error(err))
	s.writeErrorCode(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}

func (s *Server) writeErrorCode(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, types.ErrorResponse{
		Detail:    detail,
		ErrorCode: code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
