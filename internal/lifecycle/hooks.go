package lifecycle

import (
	"context"
	"fmt"

	"github.com/loykin/unicornguard/internal/notify"
)

// Lifecycle is the set of operations an event source can trigger.
type Lifecycle interface {
	Start(ctx context.Context) Result
	Stop(ctx context.Context) Result
	Reload(ctx context.Context) Result
	OnFileChange(ctx context.Context, paths []string) Result
	OnFileDeletion(ctx context.Context, paths []string) Result
	RunAll(ctx context.Context) Result
}

// Hooks turns Results into notifications and pass/fail errors for event
// sources such as the CLI, the file watcher and the HTTP API.
type Hooks struct {
	l        Lifecycle
	notifier notify.Notifier
}

func NewHooks(l Lifecycle, n notify.Notifier) *Hooks {
	if n == nil {
		n = notify.Nop{}
	}
	return &Hooks{l: l, notifier: n}
}

func (h *Hooks) Start(ctx context.Context) error {
	h.notifier.Notify("Starting Unicorn", notify.Pending)
	return h.report(h.l.Start(ctx))
}

func (h *Hooks) Stop(ctx context.Context) error {
	h.notifier.Notify("Stopping Unicorn", notify.Pending)
	return h.report(h.l.Stop(ctx))
}

func (h *Hooks) Reload(ctx context.Context) error {
	h.notifier.Notify("Reloading Unicorn", notify.Pending)
	return h.report(h.l.Reload(ctx))
}

func (h *Hooks) OnFileChange(ctx context.Context, paths []string) error {
	return h.report(h.l.OnFileChange(ctx, paths))
}

func (h *Hooks) OnFileDeletion(ctx context.Context, paths []string) error {
	return h.report(h.l.OnFileDeletion(ctx, paths))
}

func (h *Hooks) RunAll(ctx context.Context) error {
	return h.report(h.l.RunAll(ctx))
}

func (h *Hooks) report(r Result) error {
	switch r.Outcome {
	case OutcomeNoop:
		return nil
	case OutcomeFailed:
		h.notifier.Notify(r.Message, notify.Failed)
		return fmt.Errorf("%w: %s: %w", ErrTaskFailed, r.Op, r.Err)
	default:
		h.notifier.Notify(r.Message, notify.Success)
		return nil
	}
}
