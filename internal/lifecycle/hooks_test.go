package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/unicornguard/internal/history"
	"github.com/loykin/unicornguard/internal/notify"
)

type scripted struct {
	results map[Op]Result
}

func (s scripted) get(op Op) Result {
	if r, ok := s.results[op]; ok {
		return r
	}
	return Result{Op: op, Outcome: OutcomeNoop}
}

func (s scripted) Start(context.Context) Result { return s.get(OpStart) }
func (s scripted) Stop(context.Context) Result { return s.get(OpStop) }
func (s scripted) Reload(context.Context) Result { return s.get(OpReload) }
func (s scripted) OnFileChange(context.Context, []string) Result { return s.get(OpFileChange) }
func (s scripted) OnFileDeletion(context.Context, []string) Result { return s.get(OpFileDeletion) }
func (s scripted) RunAll(context.Context) Result { return s.get(OpRunAll) }

type note struct {
	msg string
	sev notify.Severity
}

func capture() (*[]note, notify.Notifier) {
	var got []note
	return &got, notify.Func(func(m string, s notify.Severity) { got = append(got, note{m, s}) })
}

func TestHooksStartSuccess(t *testing.T) {
	got, n := capture()
	h := NewHooks(scripted{results: map[Op]Result{
		OpStart: {Op: OpStart, Outcome: OutcomeSuccess, Message: "Unicorn started"},
	}}, n)

	require.NoError(t, h.Start(context.Background()))
	assert.Equal(t, []note{{"Starting Unicorn", notify.Pending}, {"Unicorn started", notify.Success}}, *got)
}

func TestHooksReloadFailure(t *testing.T) {
	got, n := capture()
	h := NewHooks(scripted{results: map[Op]Result{
		OpReload: {Op: OpReload, Outcome: OutcomeFailed, Message: "Unicorn not reloaded", Err: ErrNotRunning},
	}}, n)

	err := h.Reload(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskFailed)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, notify.Failed, (*got)[1].sev)
}

func TestHooksFileChangeHasNoPending(t *testing.T) {
	got, n := capture()
	h := NewHooks(scripted{results: map[Op]Result{
		OpFileChange: {Op: OpFileChange, Outcome: OutcomeSuccess, Message: "Unicorn reloaded"},
	}}, n)

	require.NoError(t, h.OnFileChange(context.Background(), []string{"lib/a.rb"}))
	assert.Equal(t, []note{{"Unicorn reloaded", notify.Success}}, *got)
}

func TestHooksNoopsAreSilent(t *testing.T) {
	got, n := capture()
	h := NewHooks(scripted{}, n)

	require.NoError(t, h.OnFileDeletion(context.Background(), nil))
	require.NoError(t, h.RunAll(context.Background()))
	assert.Empty(t, *got)
}

func TestNewHooksNilNotifier(t *testing.T) {
	h := NewHooks(scripted{results: map[Op]Result{
		OpStop: {Op: OpStop, Outcome: OutcomeSuccess, Message: "Unicorn stopped"},
	}}, nil)
	assert.NoError(t, h.Stop(context.Background()))
}

type memSink struct {
	events []history.Event
	err    error
}

func (m *memSink) Send(_ context.Context, e history.Event) error {
	m.events = append(m.events, e)
	return m.err
}

func TestHistoryRecorderSkipsNoops(t *testing.T) {
	sink := &memSink{}
	rec := HistoryRecorder{Sink: sink, Timeout: time.Second}

	rec.Record(context.Background(), Result{Op: OpRunAll, Outcome: OutcomeNoop})
	rec.Record(context.Background(), Result{Op: OpReload, Outcome: OutcomeFailed, Message: "Unicorn not reloaded", Err: ErrNotRunning, Duration: 3 * time.Millisecond})

	require.Len(t, sink.events, 1)
	e := sink.events[0]
	assert.Equal(t, history.EventReload, e.Type)
	assert.Equal(t, "failed", e.Outcome)
	assert.Equal(t, ErrNotRunning.Error(), e.Error)
	assert.Equal(t, int64(3), e.DurationMS)
}

func TestHistoryRecorderSwallowsSinkErrors(t *testing.T) {
	sink := &memSink{err: errors.New("down")}
	rec := HistoryRecorder{Sink: sink}
	rec.Record(context.Background(), Result{Op: OpStart, Outcome: OutcomeSuccess})
	assert.Len(t, sink.events, 1)
}
