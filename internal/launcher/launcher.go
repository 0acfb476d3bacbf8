package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrSpawn wraps every failure to launch the server process.
var ErrSpawn = errors.New("spawn failed")

// Stopper stops whatever instance is currently running. It is called before
// every spawn so two servers never run side by side.
type Stopper interface {
	Stop(ctx context.Context) error
}

// StopperFunc adapts a function to Stopper.
type StopperFunc func(ctx context.Context) error

func (f StopperFunc) Stop(ctx context.Context) error { return f(ctx) }

// Spawner starts cmd without waiting for it and returns its PID.
type Spawner interface {
	Spawn(cmd *exec.Cmd) (int, error)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(cmd *exec.Cmd) (int, error)

func (f SpawnerFunc) Spawn(cmd *exec.Cmd) (int, error) { return f(cmd) }

// Spawned describes a launched child.
type Spawned struct {
	PID       int       `json:"pid"`
	Command   []string  `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

// Launcher assembles and executes the server command line.
type Launcher struct {
	opts    Options
	stopper Stopper
	spawner Spawner
	logger  *slog.Logger
}

// New creates a Launcher. A nil spawner selects the detached OS spawner.
func New(opts Options, stopper Stopper, spawner Spawner, logger *slog.Logger) *Launcher {
	if spawner == nil {
		spawner = &Detached{LogFile: opts.LogFile}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		opts:    opts.withDefaults(),
		stopper: stopper,
		spawner: spawner,
		logger:  logger.With(slog.String("component", "launcher")),
	}
}

// Options returns the effective launch options.
func (l *Launcher) Options() Options { return l.opts }

// Command returns the command tokens Start would execute.
func (l *Launcher) Command() []string { return CommandLine(l.opts) }

// Start stops any running instance, then spawns a new detached server. It
// returns once the spawn call returns; server readiness is not verified and
// the returned PID is superseded by the pidfile once the server writes it.
func (l *Launcher) Start(ctx context.Context) (Spawned, error) {
	if l.stopper != nil {
		if err := l.stopper.Stop(ctx); err != nil {
			return Spawned{}, fmt.Errorf("stop before start: %w", err)
		}
	}
	tokens := l.Command()
	cmd := BuildCommand(tokens)
	if l.opts.WorkDir != "" {
		cmd.Dir = l.opts.WorkDir
	}
	if len(l.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), l.opts.Env...)
	}
	pid, err := l.spawner.Spawn(cmd)
	if err != nil {
		l.logger.Error("spawn failed", "command", strings.Join(tokens, " "), "error", err)
		return Spawned{}, fmt.Errorf("%w: %s: %v", ErrSpawn, strings.Join(tokens, " "), err)
	}
	sp := Spawned{PID: pid, Command: tokens, StartedAt: time.Now()}
	l.logger.Info("unicorn spawned", "pid", pid, "command", strings.Join(tokens, " "))
	return sp, nil
}
