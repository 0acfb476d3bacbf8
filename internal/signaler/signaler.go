package signaler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/loykin/unicornguard/internal/probe"
)

var (
	// ErrShutdownTimeout is returned when the process outlives every wait window.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

	// ErrNoPID is returned by Reload when there is nothing to signal.
	ErrNoPID = errors.New("no pid to signal")

	errStillAlive = errors.New("still alive")
)

// Default timings. The poll interval matches the one-second cadence at which
// Unicorn masters usually finish draining workers.
const (
	DefaultPollInterval = time.Second
	DefaultStopTimeout  = 30 * time.Second
	DefaultKillTimeout  = 5 * time.Second
)

// Config controls which signals are sent and how long Terminate waits.
type Config struct {
	QuitSignal   syscall.Signal
	ReloadSignal syscall.Signal
	KillSignal   syscall.Signal
	PollInterval time.Duration
	// StopTimeout bounds the wait after the quit signal. Zero waits forever.
	StopTimeout time.Duration
	// KillTimeout bounds the wait after escalation to KillSignal.
	KillTimeout time.Duration
	// Escalate sends KillSignal once StopTimeout elapses.
	Escalate bool
}

// DefaultConfig returns QUIT/HUP/KILL with bounded, escalating waits.
func DefaultConfig() Config {
	return Config{
		QuitSignal:   sigQuit,
		ReloadSignal: sigHup,
		KillSignal:   sigKill,
		PollInterval: DefaultPollInterval,
		StopTimeout:  DefaultStopTimeout,
		KillTimeout:  DefaultKillTimeout,
		Escalate:     true,
	}
}

// Sender delivers a signal to a pid.
type Sender interface {
	Send(pid int, sig syscall.Signal) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(pid int, sig syscall.Signal) error

func (f SenderFunc) Send(pid int, sig syscall.Signal) error { return f(pid, sig) }

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option customises a Controller.
type Option func(*Controller)

func WithSender(s Sender) Option { return func(c *Controller) { c.sender = s } }
func WithSleeper(s Sleeper) Option { return func(c *Controller) { c.sleep = s } }
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEscalationHook registers fn to be called whenever the kill signal is sent.
func WithEscalationHook(fn func(pid int)) Option { return func(c *Controller) { c.onEscalate = fn } }

// Controller sends quit/reload signals and waits for termination.
type Controller struct {
	cfg        Config
	probe      probe.Probe
	sender     Sender
	sleep      Sleeper
	logger     *slog.Logger
	onEscalate func(pid int)
}

func New(cfg Config, p probe.Probe, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.QuitSignal == 0 {
		cfg.QuitSignal = def.QuitSignal
	}
	if cfg.ReloadSignal == 0 {
		cfg.ReloadSignal = def.ReloadSignal
	}
	if cfg.KillSignal == 0 {
		cfg.KillSignal = def.KillSignal
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = def.KillTimeout
	}
	if p == nil {
		p = probe.OS{}
	}
	c := &Controller{
		cfg:    cfg,
		probe:  p,
		sender: SenderFunc(sendSignal),
		sleep:  sleepCtx,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(slog.String("component", "signaler"))
	return c
}

// Config returns the effective configuration after defaults.
func (c *Controller) Config() Config { return c.cfg }

// Reload delivers the reload signal and returns immediately. It does not
// check whether the process acted on it.
func (c *Controller) Reload(pid int) error {
	if pid <= 0 {
		return ErrNoPID
	}
	if err := c.sender.Send(pid, c.cfg.ReloadSignal); err != nil {
		return fmt.Errorf("send %v to %d: %w", c.cfg.ReloadSignal, pid, err)
	}
	c.logger.Debug("reload signal sent", "pid", pid, "signal", c.cfg.ReloadSignal.String())
	return nil
}

// Terminate asks pid to quit gracefully and blocks until the probe reports
// it gone. A pid that is unknown or already dead is a no-op success.
func (c *Controller) Terminate(ctx context.Context, pid int) error {
	if pid <= 0 || !c.probe.Alive(pid) {
		return nil
	}
	if err := c.sender.Send(pid, c.cfg.QuitSignal); err != nil {
		// The probe is the source of truth; a failed delivery usually means
		// the process disappeared on its own.
		c.logger.Warn("quit signal not delivered", "pid", pid, "error", err)
	} else {
		c.logger.Debug("quit signal sent", "pid", pid, "signal", c.cfg.QuitSignal.String())
	}

	err := c.waitGone(ctx, pid, c.cfg.StopTimeout)
	if !errors.Is(err, errStillAlive) {
		return err
	}
	if !c.cfg.Escalate {
		return fmt.Errorf("%w: pid %d alive after %s", ErrShutdownTimeout, pid, c.cfg.StopTimeout)
	}

	c.logger.Warn("graceful stop timed out, escalating", "pid", pid, "timeout", c.cfg.StopTimeout, "signal", c.cfg.KillSignal.String())
	if c.onEscalate != nil {
		c.onEscalate(pid)
	}
	if err := c.sender.Send(pid, c.cfg.KillSignal); err != nil {
		c.logger.Warn("kill signal not delivered", "pid", pid, "error", err)
	}
	err = c.waitGone(ctx, pid, c.cfg.KillTimeout)
	if errors.Is(err, errStillAlive) {
		return fmt.Errorf("%w: pid %d survived %v", ErrShutdownTimeout, pid, c.cfg.KillSignal)
	}
	return err
}

// waitGone polls the probe, sleeping PollInterval between checks. limit <= 0
// waits without bound. Elapsed time is the sum of requested sleeps so the
// loop behaves identically under a fake sleeper.
func (c *Controller) waitGone(ctx context.Context, pid int, limit time.Duration) error {
	var waited time.Duration
	for {
		if !c.probe.Alive(pid) {
			return nil
		}
		if limit > 0 && waited >= limit {
			return errStillAlive
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return err
		}
		waited += c.cfg.PollInterval
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
