package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLoggerCapturesEntries(t *testing.T) {
	log := NewTestLogger()
	log.Info("hello %s", "world")
	log.Warn("careful")

	logs := log.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "INFO", logs[0].Severity)
	assert.Equal(t, "hello world", logs[0].Message)
	assert.Equal(t, "WARNING", logs[1].Severity)
}

func TestTestLoggerWithSharesStore(t *testing.T) {
	log := NewTestLogger()
	child := log.With(map[string]interface{}{"namespace": "thumbs"})
	child.Error("boom")
	require.Len(t, log.Logs(), 1)
}

func TestJSONLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(LevelInfo, &buf).With(map[string]interface{}{"namespace": "thumbs"})
	log.Debug("filtered out")
	log.Info("wrote %d entries", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["severity"])
	assert.Equal(t, "wrote 3 entries", entry["message"])
	assert.Equal(t, "thumbs", entry["namespace"])
}

func TestJSONLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(LevelError, &buf)
	log.Info("nope")
	log.Warn("nope")
	assert.Zero(t, buf.Len())
	log.Error("yes")
	assert.NotZero(t, buf.Len())
}

func TestGetLevelFromEnv(t *testing.T) {
	t.Setenv("CACHE_LOG_LEVEL", "error")
	assert.Equal(t, LevelError, GetLevelFromEnv())
	t.Setenv("CACHE_LOG_LEVEL", "bogus")
	assert.Equal(t, LevelInfo, GetLevelFromEnv())
}
