// Package unicornguard supervises a single Unicorn server: it starts it,
// stops it gracefully, reloads it on demand or when application files
// change, and exposes the same operations over HTTP.
package unicornguard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/unicornguard/internal/config"
	"github.com/loykin/unicornguard/internal/history/factory"
	"github.com/loykin/unicornguard/internal/lifecycle"
	"github.com/loykin/unicornguard/internal/logger"
	"github.com/loykin/unicornguard/internal/metrics"
	"github.com/loykin/unicornguard/internal/notify"
	"github.com/loykin/unicornguard/internal/server"
	apitls "github.com/loykin/unicornguard/internal/tls"
	"github.com/loykin/unicornguard/internal/watch"
)

// Re-export core types for external consumers.

type Config = config.FileConfig

type Status = lifecycle.Status

type Result = lifecycle.Result

var (
	ErrNotRunning = lifecycle.ErrNotRunning
	ErrTaskFailed = lifecycle.ErrTaskFailed
)

// LoadConfig reads a configuration file; an empty path yields defaults.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithLogger overrides the logger built from the config's [log] section.
func WithLogger(l *slog.Logger) Option { return func(s *Supervisor) { s.logger = l } }

// WithNotifier adds a notifier next to the configured ones.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Supervisor) { s.extraNotifiers = append(s.extraNotifiers, n) }
}

// WithRegisterer registers metrics with r instead of the default registry.
// When r is also a Gatherer (a *prometheus.Registry is), the HTTP /metrics
// endpoint serves it.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *Supervisor) {
		s.registerer = r
		if g, ok := r.(prometheus.Gatherer); ok {
			s.gatherer = g
		}
	}
}

// WithGatherer sets what the HTTP /metrics endpoint serves.
func WithGatherer(g prometheus.Gatherer) Option { return func(s *Supervisor) { s.gatherer = g } }

// WithControllerOptions passes options through to the lifecycle controller.
func WithControllerOptions(o ...lifecycle.Option) Option {
	return func(s *Supervisor) { s.ctrlOpts = append(s.ctrlOpts, o...) }
}

// WithConsole sets where console notifications are written.
func WithConsole(w io.Writer) Option { return func(s *Supervisor) { s.console = w } }

// Supervisor wires a lifecycle controller to its notifiers, metrics,
// history and event sources.
type Supervisor struct {
	cfg            *Config
	ctrl           *lifecycle.Controller
	hooks          *lifecycle.Hooks
	logger         *slog.Logger
	registerer     prometheus.Registerer
	gatherer       prometheus.Gatherer
	metricSet      *metrics.Set
	extraNotifiers []notify.Notifier
	ctrlOpts       []lifecycle.Option
	console        io.Writer
	closers        []io.Closer
}

// New builds a Supervisor from cfg. Callers must Close it.
func New(cfg *Config, opts ...Option) (*Supervisor, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.Default(); err != nil {
			return nil, err
		}
	}
	s := &Supervisor{
		cfg:        cfg,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
		metricSet:  metrics.NewSet(),
		console:    os.Stderr,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		l, c := newLogger(cfg)
		s.logger = l
		s.closers = append(s.closers, c)
	}

	lc, err := cfg.Lifecycle()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.metricSet.Register(s.registerer); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	copts := []lifecycle.Option{lifecycle.WithLogger(s.logger), lifecycle.WithMetrics(s.metricSet)}
	if cfg.History.Enabled {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("history sink: %w", err)
		}
		s.closers = append(s.closers, closerFunc(func() error { return factory.Close(sink) }))
		copts = append(copts, lifecycle.WithRecorder(lifecycle.HistoryRecorder{
			Sink:    sink,
			Timeout: cfg.History.Timeout,
			Logger:  s.logger,
		}))
	}
	s.ctrl = lifecycle.New(lc, append(copts, s.ctrlOpts...)...)
	s.hooks = lifecycle.NewHooks(s.ctrl, s.notifier())
	return s, nil
}

var newLogger = func(cfg *Config) (*slog.Logger, io.Closer) {
	return logger.New(cfg.Logger(), os.Stderr)
}

func (s *Supervisor) notifier() notify.Notifier {
	ns := notify.Multi{notify.NewLog(s.logger)}
	if s.cfg.Notify.Console && s.console != nil {
		ns = append(ns, notify.NewConsole(s.console, s.cfg.Notify.Timestamps))
	}
	return append(ns, s.extraNotifiers...)
}

// Controller exposes the underlying lifecycle controller.
func (s *Supervisor) Controller() *lifecycle.Controller { return s.ctrl }

// Logger returns the supervisor's logger.
func (s *Supervisor) Logger() *slog.Logger { return s.logger }

func (s *Supervisor) Start(ctx context.Context) error  { return s.hooks.Start(ctx) }
func (s *Supervisor) Stop(ctx context.Context) error   { return s.hooks.Stop(ctx) }
func (s *Supervisor) Reload(ctx context.Context) error { return s.hooks.Reload(ctx) }
func (s *Supervisor) RunAll(ctx context.Context) error { return s.hooks.RunAll(ctx) }

// Status reports the resolved server state.
func (s *Supervisor) Status() Status { return s.ctrl.Status() }

// Watch runs the file watcher until ctx is cancelled. Matching changes
// reload the server; deletions are ignored.
func (s *Supervisor) Watch(ctx context.Context) error {
	w, err := watch.New(s.cfg.WatchConfig(), s.hooks, s.logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Handler returns the HTTP API handler.
func (s *Supervisor) Handler() http.Handler {
	return s.router().Handler()
}

func (s *Supervisor) router() *server.Router {
	return server.NewRouter(s.hooks, s.ctrl, s.cfg.HTTP.BasePath, s.logger,
		server.WithMetrics(s.metricSet, s.gatherer))
}

// WriteTimeout is the HTTP write timeout that lets a start or stop response
// outlive the configured stop budget; 0 when stop.timeout is unbounded.
func (s *Supervisor) WriteTimeout() time.Duration {
	return server.WriteTimeout(s.cfg.Stop.Timeout, s.cfg.Stop.KillTimeout)
}

// Serve runs the HTTP API on addr until ctx is cancelled.
func (s *Supervisor) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = s.cfg.HTTP.Listen
	}
	if addr == "" {
		return errors.New("no listen address configured")
	}
	tc, err := apitls.Setup(s.cfg.APITLS())
	if err != nil {
		return fmt.Errorf("http tls: %w", err)
	}
	srv := server.NewServer(addr, s.router(), s.WriteTimeout())
	srv.TLSConfig = tc
	errCh := make(chan error, 1)
	go func() {
		if tc != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("http api listening", "addr", addr, "base_path", s.cfg.HTTP.BasePath, "tls", tc != nil)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases log files and history sinks.
func (s *Supervisor) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
