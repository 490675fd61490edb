// Package statusapi serves campaign progress and filed failures over HTTP.
package statusapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"swfdiff/internal/campaign"
	commonmw "swfdiff/internal/common/http/middleware"
	"swfdiff/internal/store"
	"swfdiff/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Config holds HTTP server settings. An empty Addr disables the server.
type Config struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	return c
}

// Progress is the live side of a campaign.
type Progress interface {
	Snapshot() campaign.Snapshot
}

// Failures is the read side of the failure store.
type Failures interface {
	Get(ctx context.Context, fingerprint string) (store.FailureRecord, error)
	List(ctx context.Context, offset, limit int) ([]store.FailureRecord, int64, error)
	Artifact(ctx context.Context, fingerprint, name string) ([]byte, error)
	Counters() store.Counters
}

// Server exposes the status endpoints.
type Server struct {
	http *http.Server
}

// New builds the router. gatherer may be nil, in which case /metrics is not
// mounted.
func New(cfg Config, progress Progress, failures Failures, gatherer prometheus.Gatherer) *Server {
	cfg = cfg.withDefaults()
	return &Server{http: &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(progress, failures, gatherer),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}}
}

// NewRouter wires the handlers onto a gin engine.
func NewRouter(progress Progress, failures Failures, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.RequestContext())
	router.Use(requestLogger())

	h := &handler{progress: progress, failures: failures}
	router.GET("/healthz", h.Health)

	api := router.Group("/api/v1")
	api.GET("/campaign/stats", h.Stats)
	api.GET("/failures", h.ListFailures)
	api.GET("/failures/:fingerprint", h.GetFailure)
	api.GET("/failures/:fingerprint/artifacts/:name", h.GetArtifact)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// Start serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	logger.Info(context.Background(), "status api started", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Debug(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
