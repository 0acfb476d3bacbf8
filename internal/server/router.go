package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/unicornguard/internal/lifecycle"
	"github.com/loykin/unicornguard/internal/metrics"
	"github.com/loykin/unicornguard/internal/probe"
)

// Operations are the lifecycle actions exposed over HTTP. lifecycle.Hooks
// satisfies it, so requests notify exactly like the CLI and the watcher.
type Operations interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reload(ctx context.Context) error
}

// StatusSource reports the resolved server state.
type StatusSource interface {
	Status() lifecycle.Status
}

// Router provides embeddable HTTP handlers for the supervised server.
// Endpoints:
//
//	POST {basePath}/start
//	POST {basePath}/stop
//	POST {basePath}/reload
//	GET  {basePath}/status
//	GET  {basePath}/debug/process
//	GET  {basePath}/metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	ops      Operations
	status   StatusSource
	basePath string
	logger   *slog.Logger
	set      *metrics.Set
	gatherer prometheus.Gatherer
}

// RouterOption customises a Router.
type RouterOption func(*Router)

// WithMetrics updates set from status samples and serves /metrics from g
// instead of the default gatherer.
func WithMetrics(set *metrics.Set, g prometheus.Gatherer) RouterOption {
	return func(r *Router) {
		r.set = set
		r.gatherer = g
	}
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/start, /api/stop, /api/status.
func NewRouter(ops Operations, status StatusSource, basePath string, logger *slog.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		ops:      ops,
		status:   status,
		basePath: sanitizeBase(basePath),
		logger:   logger.With(slog.String("component", "http")),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), r.accessLog())
	group := g.Group(r.basePath)
	group.POST("/start", r.operation(r.ops.Start))
	group.POST("/stop", r.operation(r.ops.Stop))
	group.POST("/reload", r.operation(r.ops.Reload))
	group.GET("/status", r.handleStatus)
	group.GET("/debug/process", r.handleDebugProcess)
	group.GET("/metrics", gin.WrapH(metrics.Handler(r.gatherer)))
	return g
}

// writeSlack covers the final poll interval and response encoding on top
// of the configured stop budget.
const writeSlack = 30 * time.Second

// WriteTimeout returns the server write timeout for a stop budget. Start
// and stop responses are only written once the old server has exited, which
// takes up to stopTimeout plus killTimeout. A zero stopTimeout waits without
// bound, and so does the returned timeout (0).
func WriteTimeout(stopTimeout, killTimeout time.Duration) time.Duration {
	if stopTimeout <= 0 {
		return 0
	}
	return stopTimeout + killTimeout + writeSlack
}

// NewServer returns an http.Server for addr serving this router.
// writeTimeout is usually WriteTimeout(stop budget); 0 disables it.
func NewServer(addr string, r *Router, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type statusResp struct {
	lifecycle.Status
	Usage *metrics.ServerUsage `json:"usage,omitempty"`
}

func (r *Router) operation(fn func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		// A dropped client must not abort a stop halfway through.
		ctx := context.WithoutCancel(c.Request.Context())
		if err := fn(ctx); err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, lifecycle.ErrNotRunning) {
				code = http.StatusConflict
			}
			writeJSON(c, code, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusOK, okResp{OK: true})
	}
}

func (r *Router) handleStatus(c *gin.Context) {
	st := r.status.Status()
	r.set.SetRunning(st.Alive)
	resp := statusResp{Status: st}
	if st.Alive {
		if u, err := metrics.SampleServer(st.PID); err == nil {
			r.set.ObserveUsage(u)
			resp.Usage = &u
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleDebugProcess(c *gin.Context) {
	st := r.status.Status()
	if !st.Alive {
		writeJSON(c, http.StatusNotFound, errorResp{Error: lifecycle.ErrNotRunning.Error()})
		return
	}
	info, err := probe.Inspect(st.PID)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, info)
}

func (r *Router) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()
		r.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(began))
	}
}
