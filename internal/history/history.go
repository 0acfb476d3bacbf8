package history

import (
	"context"
	"time"
)

// EventType names the lifecycle operation an event records.
type EventType string

const (
	EventStart      EventType = "start"
	EventStop       EventType = "stop"
	EventReload     EventType = "reload"
	EventFileChange EventType = "file_change"
)

// Event is one finished lifecycle operation, exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
	Outcome    string    `json:"outcome"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Nullable maps "" to nil so SQL drivers store NULL.
func Nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
