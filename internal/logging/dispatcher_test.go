package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	dl.Debug("test message", "key1", "value1", "key2", 42)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "test message", entry["message"])
	assert.Equal(t, "value1", entry["key1"])
	assert.Equal(t, float64(42), entry["key2"])
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("info message", "status", "ok")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ok", entry["status"])
}

func TestDispatcherLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.ErrorLevel))

	dl.Info("filtered")
	assert.Zero(t, buf.Len())

	dl.Error("error occurred", "code", 500, "reason", "internal")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, float64(500), entry["code"])
	assert.Equal(t, "internal", entry["reason"])
}

func TestDispatcherLogger_ErrorValue(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("handler failed", "command", ":TICK:", "error", errors.New("boom"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, ":TICK:", entry["command"])
	assert.Equal(t, "boom", entry["error"])
}

func TestToFields(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want map[string]any
	}{
		{name: "empty", in: nil, want: map[string]any{}},
		{name: "pairs", in: []any{"a", 1, "b", "two"}, want: map[string]any{"a": 1, "b": "two"}},
		{name: "trailing value kept", in: []any{"a", 1, "dangling"}, want: map[string]any{"a": 1, BadKey: "dangling"}},
		{name: "non-string key formatted", in: []any{7, "x", "b", true}, want: map[string]any{"7": "x", "b": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toFields(tt.in))
		})
	}
}
