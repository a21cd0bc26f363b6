package apihttp

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"fxagent/internal/config"
	"fxagent/internal/logger"
	"fxagent/internal/model"
	"fxagent/internal/risk"
	"fxagent/internal/stream"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const serviceName = "fxagent"

// Analyzer is the workflow surface the HTTP layer serves.
type Analyzer interface {
	Analyze(ctx context.Context, raw string) (model.RunState, error)
	Stream(ctx context.Context, raw string) <-chan stream.Event
	Tasks() []string
}

// Info is the static service description reported by / and /info.
type Info struct {
	Version             string
	SynthesisConfigured bool
	Risk                risk.Settings
	Timeouts            config.TimeoutConfig
}

// Server exposes analysis over JSON and server-sent events.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the HTTP service dependencies.
type ServerConfig struct {
	Addr        string
	Analyzer    Analyzer
	Info        Info
	CORSOrigins []string
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Analyzer == nil {
		return nil, errors.New("http server requires an analyzer")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), corsMiddleware(cfg.CORSOrigins))

	h := &handlers{analyzer: cfg.Analyzer, info: cfg.Info}
	h.register(router)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	return &Server{addr: cfg.Addr, router: router}, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	conf := cors.DefaultConfig()
	conf.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	conf.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
	}
	return cors.New(conf)
}

// requestLogger writes one debug line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails. Open streams get
// five seconds to finish on shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("HTTP listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
