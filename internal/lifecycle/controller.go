package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/unicornguard/internal/launcher"
	"github.com/loykin/unicornguard/internal/pidfile"
	"github.com/loykin/unicornguard/internal/probe"
	"github.com/loykin/unicornguard/internal/signaler"
)

const (
	DefaultPIDFile    = "tmp/pids/unicorn.pid"
	DefaultConfigPath = "config/unicorn.rb"
)

// Process is the record of the supervised server. PID is only a cache: it is
// re-resolved against the pidfile before every operation.
type Process struct {
	PID        int    `json:"pid"`
	PIDFile    string `json:"pid_file"`
	ConfigPath string `json:"config_path"`
	Daemonize  bool   `json:"daemonize"`
	Bundler    bool   `json:"bundler"`
}

// DefaultProcess mirrors the conventional Rails layout.
func DefaultProcess() Process {
	return Process{PIDFile: DefaultPIDFile, ConfigPath: DefaultConfigPath, Bundler: true}
}

// PIDResolver resolves the authoritative pid given a cached one.
type PIDResolver interface {
	Resolve(cached int) (int, bool)
}

// SignalController delivers quit and reload signals.
type SignalController interface {
	Terminate(ctx context.Context, pid int) error
	Reload(pid int) error
}

// Config assembles a Controller.
type Config struct {
	Process Process
	Launch  launcher.Options
	Signals signaler.Config
}

// Option customises a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithProbe(p probe.Probe) Option { return func(c *Controller) { c.probe = p } }
func WithPIDResolver(r PIDResolver) Option { return func(c *Controller) { c.pids = r } }
func WithSignals(s SignalController) Option { return func(c *Controller) { c.signals = s } }
func WithSpawner(s launcher.Spawner) Option { return func(c *Controller) { c.spawner = s } }
func WithRecorder(r Recorder) Option { return func(c *Controller) { c.recorders = append(c.recorders, r) } }
func WithSignalOptions(o ...signaler.Option) Option {
	return func(c *Controller) { c.signalOpts = append(c.signalOpts, o...) }
}

// Controller runs one lifecycle operation at a time against its Process.
type Controller struct {
	// mu serializes operations; state guards proc and is only held briefly,
	// so Status never waits behind a graceful stop.
	mu         sync.Mutex
	state      sync.Mutex
	proc       Process
	pids       PIDResolver
	probe      probe.Probe
	signals    SignalController
	launcher   *launcher.Launcher
	spawner    launcher.Spawner
	signalOpts []signaler.Option
	recorders  []Recorder
	logger     *slog.Logger
}

func New(cfg Config, opts ...Option) *Controller {
	c := &Controller{proc: cfg.Process, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(slog.String("component", "lifecycle"))
	if c.pids == nil {
		c.pids = pidfile.New(c.proc.PIDFile)
	}
	if c.probe == nil {
		c.probe = probe.OS{}
	}
	if c.signals == nil {
		so := append([]signaler.Option{signaler.WithLogger(c.logger)}, c.signalOpts...)
		c.signals = signaler.New(cfg.Signals, c.probe, so...)
	}
	lo := cfg.Launch
	lo.Bundler = c.proc.Bundler
	lo.Daemonize = c.proc.Daemonize
	lo.ConfigPath = c.proc.ConfigPath
	c.launcher = launcher.New(lo, launcher.StopperFunc(func(ctx context.Context) error {
		_, err := c.terminateCurrent(ctx)
		return err
	}), c.spawner, c.logger)
	return c
}

// Process returns a copy of the managed process record.
func (c *Controller) Process() Process {
	c.state.Lock()
	defer c.state.Unlock()
	return c.proc
}

// Start stops any running instance and spawns a new one.
func (c *Controller) Start(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	began := time.Now()
	sp, err := c.launcher.Start(ctx)
	if err != nil {
		return c.finish(ctx, Result{Op: OpStart, Outcome: OutcomeFailed, Message: "Unicorn failed to start", Err: err}, began)
	}
	c.setPID(sp.PID)
	return c.finish(ctx, Result{Op: OpStart, Outcome: OutcomeSuccess, Message: "Unicorn started", PID: sp.PID}, began)
}

// Stop gracefully terminates the running instance, if any.
func (c *Controller) Stop(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	began := time.Now()
	pid, err := c.terminateCurrent(ctx)
	if err != nil {
		return c.finish(ctx, Result{Op: OpStop, Outcome: OutcomeFailed, Message: "Unicorn failed to stop", PID: pid, Err: err}, began)
	}
	return c.finish(ctx, Result{Op: OpStop, Outcome: OutcomeSuccess, Message: "Unicorn stopped", PID: pid}, began)
}

// Reload asks the running server to reload itself, keeping its pid.
func (c *Controller) Reload(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload(ctx, OpReload, nil)
}

// OnFileChange reacts to modified files the same way as Reload.
func (c *Controller) OnFileChange(ctx context.Context, paths []string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload(ctx, OpFileChange, paths)
}

// OnFileDeletion intentionally does nothing.
func (c *Controller) OnFileDeletion(ctx context.Context, paths []string) Result {
	return c.noop(ctx, OpFileDeletion, paths)
}

// RunAll is reserved for a bulk validation hook and does nothing.
func (c *Controller) RunAll(ctx context.Context) Result {
	return c.noop(ctx, OpRunAll, nil)
}

// Status describes the resolved server state.
type Status struct {
	PID           int      `json:"pid"`
	Alive         bool     `json:"alive"`
	PIDFile       string   `json:"pid_file"`
	PIDFileExists bool     `json:"pid_file_exists"`
	Command       []string `json:"command"`
}

// Status does not take the operation lock and does not update the cached
// pid, so it answers while a stop is still waiting for the server to exit.
func (c *Controller) Status() Status {
	pid, ok := c.pids.Resolve(c.cachedPID())
	if !ok {
		pid = 0
	}
	return Status{
		PID:           pid,
		Alive:         ok && c.probe.Alive(pid),
		PIDFile:       c.proc.PIDFile,
		PIDFileExists: pidfile.New(c.proc.PIDFile).Exists(),
		Command:       c.launcher.Command(),
	}
}

func (c *Controller) reload(ctx context.Context, op Op, paths []string) Result {
	began := time.Now()
	pid, ok := c.resolve()
	if !ok || !c.probe.Alive(pid) {
		err := ErrNotRunning
		if ok {
			err = fmt.Errorf("%w: pid %d is gone", ErrNotRunning, pid)
		}
		return c.finish(ctx, Result{Op: op, Outcome: OutcomeFailed, Message: "Unicorn not reloaded", PID: pid, Paths: paths, Err: err}, began)
	}
	if err := c.signals.Reload(pid); err != nil {
		// Delivery failures are absorbed; the process owns what happens next.
		c.logger.Warn("reload signal not delivered", "pid", pid, "error", err)
	}
	return c.finish(ctx, Result{Op: op, Outcome: OutcomeSuccess, Message: "Unicorn reloaded", PID: pid, Paths: paths}, began)
}

func (c *Controller) noop(ctx context.Context, op Op, paths []string) Result {
	return c.finish(ctx, Result{Op: op, Outcome: OutcomeNoop, Paths: paths}, time.Now())
}

// terminateCurrent resolves the pid and always calls Terminate, which treats
// an unknown pid as already stopped. Callers hold c.mu.
func (c *Controller) terminateCurrent(ctx context.Context) (int, error) {
	pid, _ := c.resolve()
	if err := c.signals.Terminate(ctx, pid); err != nil {
		return pid, err
	}
	c.setPID(0)
	return pid, nil
}

// resolve refreshes the cached pid from disk. Callers hold c.mu.
func (c *Controller) resolve() (int, bool) {
	pid, ok := c.pids.Resolve(c.cachedPID())
	if !ok {
		pid = 0
	}
	c.setPID(pid)
	return pid, ok
}

func (c *Controller) cachedPID() int {
	c.state.Lock()
	defer c.state.Unlock()
	return c.proc.PID
}

func (c *Controller) setPID(pid int) {
	c.state.Lock()
	c.proc.PID = pid
	c.state.Unlock()
}

func (c *Controller) finish(ctx context.Context, r Result, began time.Time) Result {
	r.Duration = time.Since(began)
	attrs := []any{"op", r.Op.String(), "outcome", r.Outcome.String(), "pid", r.PID, "duration", r.Duration}
	switch r.Outcome {
	case OutcomeFailed:
		c.logger.Error(r.Message, append(attrs, "error", r.Err)...)
	case OutcomeNoop:
		c.logger.Debug("no-op", attrs...)
	default:
		c.logger.Info(r.Message, attrs...)
	}
	for _, rec := range c.recorders {
		rec.Record(ctx, r)
	}
	return r
}

// IsNotRunning reports whether err means no live server was found.
func IsNotRunning(err error) bool { return errors.Is(err, ErrNotRunning) }
