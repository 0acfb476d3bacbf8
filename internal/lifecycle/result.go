package lifecycle

import (
	"errors"
	"time"
)

var (
	// ErrNotRunning is reported by Reload when no live server is known.
	ErrNotRunning = errors.New("unicorn is not running")

	// ErrTaskFailed is returned by Hooks so an event source can halt.
	ErrTaskFailed = errors.New("task has failed")
)

// Op names a lifecycle operation.
type Op string

const (
	OpStart        Op = "start"
	OpStop         Op = "stop"
	OpReload       Op = "reload"
	OpFileChange   Op = "file_change"
	OpFileDeletion Op = "file_deletion"
	OpRunAll       Op = "run_all"
)

func (o Op) String() string { return string(o) }

// Outcome is the pass/fail verdict of an operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeNoop    Outcome = "noop"
)

func (o Outcome) String() string { return string(o) }

// Result is returned by every lifecycle operation. Notification, metrics and
// history adapters translate it; the controller itself never renders anything.
type Result struct {
	Op       Op            `json:"op"`
	Outcome  Outcome       `json:"outcome"`
	Message  string        `json:"message,omitempty"`
	PID      int           `json:"pid,omitempty"`
	Paths    []string      `json:"paths,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the operation did not fail.
func (r Result) OK() bool { return r.Outcome != OutcomeFailed }

// Error returns the failure text, or "" on success.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
