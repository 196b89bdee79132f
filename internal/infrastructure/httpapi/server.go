package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ForumWatcher/internal/ports"
)

// Controller is the part of the running application the admin surface can drive.
type Controller interface {
	Reload(ctx context.Context) error
	TriggerPoll()
}

// Deps wires the admin handlers.
type Deps struct {
	Store      ports.Store
	Controller Controller
	Metrics    http.Handler
	Logger     *slog.Logger
}

// NewRouter builds the admin gin engine.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	h := &handler{store: deps.Store, controller: deps.Controller, logger: deps.Logger}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))

	r.GET("/health", h.health)
	r.GET("/stats", h.stats)
	r.GET("/threads", h.thread)
	r.GET("/comments/:id", h.comment)
	r.POST("/reload", h.reload)
	r.POST("/poll", h.poll)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("admin request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// Server runs the admin router on a listen address.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer binds the router to addr.
func NewServer(addr string, router http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background. Listen errors other than a clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("admin server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server stopped", "error", err)
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
