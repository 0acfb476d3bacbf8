package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/unicornguard/internal/history"
	"github.com/loykin/unicornguard/internal/metrics"
	"github.com/loykin/unicornguard/internal/signaler"
)

// Recorder observes every finished operation.
type Recorder interface {
	Record(ctx context.Context, r Result)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, r Result)

func (f RecorderFunc) Record(ctx context.Context, r Result) { f(ctx, r) }

// MetricsRecorder feeds results into a metrics set. A successful start
// leaves the running gauge alone: the spawned pid may be a daemonizing
// launcher, so liveness is only reported by status sampling. A successful
// stop has verified the exit and clears it.
type MetricsRecorder struct {
	Set *metrics.Set
}

func (m MetricsRecorder) Record(_ context.Context, r Result) {
	m.Set.ObserveOperation(r.Op.String(), r.Outcome.String(), r.Duration.Seconds())
	if r.Op == OpStop && r.OK() {
		m.Set.SetRunning(false)
	}
}

// WithMetrics records results and kill escalations into set.
func WithMetrics(set *metrics.Set) Option {
	return func(c *Controller) {
		c.recorders = append(c.recorders, MetricsRecorder{Set: set})
		c.signalOpts = append(c.signalOpts, signaler.WithEscalationHook(func(int) { set.IncEscalation() }))
	}
}

// HistoryRecorder exports non-noop results to a history sink. Sink failures
// are logged and never fail the operation.
type HistoryRecorder struct {
	Sink    history.Sink
	Timeout time.Duration
	Logger  *slog.Logger
}

func (h HistoryRecorder) Record(ctx context.Context, r Result) {
	if h.Sink == nil || r.Outcome == OutcomeNoop {
		return
	}
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), h.Timeout)
		defer cancel()
	}
	if err := h.Sink.Send(ctx, EventFromResult(r, time.Now().UTC())); err != nil {
		l := h.Logger
		if l == nil {
			l = slog.Default()
		}
		l.Warn("history sink send failed", "op", r.Op.String(), "error", err)
	}
}

// EventFromResult converts a Result into a history event.
func EventFromResult(r Result, at time.Time) history.Event {
	return history.Event{
		Type:       history.EventType(r.Op),
		OccurredAt: at,
		PID:        r.PID,
		Outcome:    r.Outcome.String(),
		Message:    r.Message,
		Error:      r.Error(),
		DurationMS: r.Duration.Milliseconds(),
	}
}
