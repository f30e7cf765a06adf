package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureOutput struct {
	entries []LogEntry
}

func (c *captureOutput) Write(e LogEntry) error { c.entries = append(c.entries, e); return nil }
func (c *captureOutput) Sync() error            { return nil }
func (c *captureOutput) Close() error           { return nil }

func TestSeverityFiltering(t *testing.T) {
	capture := &captureOutput{}
	logger := NewLogger(Config{Severity: WARN, Outputs: []Output{capture}})

	ctx := context.Background()
	logger.Debug(ctx, "dropped")
	logger.Info(ctx, "dropped too")
	logger.Warn(ctx, "kept")
	logger.Error(ctx, "kept: %d", 42)

	require.Len(t, capture.entries, 2)
	assert.Equal(t, "kept", capture.entries[0].Message)
	assert.Equal(t, "kept: 42", capture.entries[1].Message)
}

func TestSessionContextAnnotations(t *testing.T) {
	capture := &captureOutput{}
	logger := NewLogger(Config{Severity: DEBUG, Outputs: []Output{capture}})

	ctx := WithSession(context.Background(), "sess-1", "skill")
	logger.Info(ctx, "skill event")

	require.Len(t, capture.entries, 1)
	assert.Equal(t, "sess-1", capture.entries[0].SessionID)
	assert.Equal(t, "skill", capture.entries[0].LoopType)
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, DEBUG, ParseSeverity("DEBUG"))
	assert.Equal(t, ERROR, ParseSeverity("ERROR"))
	assert.Equal(t, INFO, ParseSeverity("bogus"))
}

func TestFileOutputWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	out, err := NewFileOutput(path)
	require.NoError(t, err)

	logger := NewLogger(Config{Severity: DEBUG, Outputs: []Output{out}})
	logger.Info(WithSession(context.Background(), "sess-2", "primary"), "hello")
	require.NoError(t, out.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "hello", record["message"])
	assert.Equal(t, "sess-2", record["session_id"])
	assert.Equal(t, "INFO", record["severity"])
}
