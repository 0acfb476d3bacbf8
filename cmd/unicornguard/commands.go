package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/loykin/unicornguard"
	"github.com/loykin/unicornguard/pkg/client"
)

type operation string

const (
	opStart  operation = "start"
	opStop   operation = "stop"
	opReload operation = "reload"
)

type command struct {
	global *GlobalFlags
	out    io.Writer
	// newSupervisor builds the local supervisor; tests inject fakes through it.
	newSupervisor func(cfg *unicornguard.Config) (*unicornguard.Supervisor, error)
}

func newCommand(out io.Writer) *command {
	return &command{
		global: &GlobalFlags{},
		out:    out,
		newSupervisor: func(cfg *unicornguard.Config) (*unicornguard.Supervisor, error) {
			return unicornguard.New(cfg)
		},
	}
}

func (c *command) config() (*unicornguard.Config, error) {
	cfg, err := unicornguard.LoadConfig(c.global.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

func (c *command) supervisor() (*unicornguard.Supervisor, *unicornguard.Config, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	s, err := c.newSupervisor(cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func (c *command) remoteClient(f RemoteFlags) (*client.Client, error) {
	return client.New(client.Config{
		BaseURL:  f.APIUrl,
		Timeout:  f.APITimeout,
		CACert:   f.CACert,
		Insecure: f.Insecure,
	})
}

// Operation runs start, stop or reload locally or against a remote API.
func (c *command) Operation(ctx context.Context, op operation, f RemoteFlags) error {
	if f.remote() {
		cl, err := c.remoteClient(f)
		if err != nil {
			return err
		}
		var run func(context.Context) error
		switch op {
		case opStart:
			run = cl.Start
		case opStop:
			run = cl.Stop
		case opReload:
			run = cl.Reload
		default:
			return fmt.Errorf("unknown operation %q", op)
		}
		if err := run(ctx); err != nil {
			return fmt.Errorf("%s via %s: %w", op, f.APIUrl, err)
		}
		_, _ = fmt.Fprintf(c.out, "%s: ok\n", op)
		return nil
	}

	s, _, err := c.supervisor()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	switch op {
	case opStart:
		return s.Start(ctx)
	case opStop:
		return s.Stop(ctx)
	case opReload:
		return s.Reload(ctx)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

// Status prints the server state.
func (c *command) Status(ctx context.Context, f StatusFlags) error {
	if f.remote() {
		cl, err := c.remoteClient(f.RemoteFlags)
		if err != nil {
			return err
		}
		st, err := cl.Status(ctx)
		if err != nil {
			return err
		}
		var proc *client.ProcessInfo
		if f.Process && st.Alive {
			p, err := cl.Process(ctx)
			if err != nil && !errors.Is(err, client.ErrNotRunning) {
				return err
			}
			if err == nil {
				proc = &p
			}
		}
		return c.printStatus(st, proc, f.JSON)
	}

	s, _, err := c.supervisor()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return c.printStatus(fromLocal(s.Status()), nil, f.JSON)
}

// Watch starts the server, reloads it on file changes until ctx ends, then
// stops it.
func (c *command) Watch(ctx context.Context, f WatchFlags) error {
	s, _, err := c.supervisor()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if !f.NoStart {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	werr := s.Watch(ctx)
	if errors.Is(werr, context.Canceled) {
		werr = nil
	}
	if !f.KeepRunning {
		if err := s.Stop(context.WithoutCancel(ctx)); err != nil {
			return errors.Join(werr, err)
		}
	}
	return werr
}

// Serve runs the HTTP API and, optionally, the watcher until ctx ends.
func (c *command) Serve(ctx context.Context, f ServeFlags) error {
	s, cfg, err := c.supervisor()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	listen := f.Listen
	if listen == "" {
		listen = cfg.HTTP.Listen
	}
	if listen == "" {
		listen = defaultListen
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Serve(gctx, listen) })
	if f.Watch {
		g.Go(func() error {
			if err := s.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

const defaultListen = "127.0.0.1:8080"

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
