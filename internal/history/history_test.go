package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONShape(t *testing.T) {
	e := Event{
		Type:       EventReload,
		OccurredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		PID:        4242,
		Outcome:    "success",
		Message:    "Unicorn reloaded",
		DurationMS: 12,
	}
	b, err := json.Marshal(e)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "reload", m["type"])
	assert.Equal(t, float64(4242), m["pid"])
	assert.Equal(t, "Unicorn reloaded", m["message"])
	if _, ok := m["error"]; ok {
		t.Fatalf("empty error should be omitted: %s", b)
	}
}

func TestNullable(t *testing.T) {
	assert.Nil(t, Nullable(""))
	assert.Equal(t, "boom", Nullable("boom"))
}
