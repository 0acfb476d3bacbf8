package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/unicornguard/internal/history"
)

func TestSQLiteSink_FileRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	events := []history.Event{
		{Type: history.EventStart, OccurredAt: time.Now().UTC(), PID: 100, Outcome: "success", Message: "Unicorn started"},
		{Type: history.EventReload, OccurredAt: time.Now().UTC(), PID: 100, Outcome: "success", Message: "Unicorn reloaded"},
		{Type: history.EventReload, OccurredAt: time.Now().UTC(), Outcome: "failed", Error: "unicorn is not running"},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("send %s: %v", e.Type, err)
		}
	}

	n, err := sink.Count(ctx, history.EventReload)
	require.NoError(t, err)
	if n != 2 {
		t.Fatalf("expected 2 reload events, got %d", n)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	if err := sink.Send(ctx, history.Event{Type: history.EventStop, OccurredAt: time.Now(), PID: 7, Outcome: "success"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	n, err := sink.Count(ctx, history.EventStop)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestSQLiteSink_ContextCancellation(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Send(ctx, history.Event{Type: history.EventStart, OccurredAt: time.Now(), Outcome: "success"}); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}
