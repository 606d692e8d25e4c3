package logger

import (
	"fmt"
	"sync"
)

type TestLogEntry struct {
	Severity string
	Message  string
}

type testLogStore struct {
	mutex sync.Mutex
	logs  []TestLogEntry
}

// TestLogger records log entries for assertions in tests. Loggers derived
// with With share the same underlying log store.
type TestLogger struct {
	metadata map[string]interface{}
	store    *testLogStore
}

var _ Logger = (*TestLogger)(nil)

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	return &TestLogger{store: &testLogStore{}}
}

// Logs returns a snapshot of everything logged so far.
func (c *TestLogger) Logs() []TestLogEntry {
	c.store.mutex.Lock()
	defer c.store.mutex.Unlock()
	out := make([]TestLogEntry, len(c.store.logs))
	copy(out, c.store.logs)
	return out
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{})
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{metadata: kv, store: c.store}
}

func (c *TestLogger) log(severity, msg string, args []interface{}) {
	c.store.mutex.Lock()
	c.store.logs = append(c.store.logs, TestLogEntry{severity, fmt.Sprintf(msg, args...)})
	c.store.mutex.Unlock()
}

func (c *TestLogger) Debug(msg string, args ...interface{}) { c.log("DEBUG", msg, args) }
func (c *TestLogger) Info(msg string, args ...interface{})  { c.log("INFO", msg, args) }
func (c *TestLogger) Warn(msg string, args ...interface{})  { c.log("WARNING", msg, args) }
func (c *TestLogger) Error(msg string, args ...interface{}) { c.log("ERROR", msg, args) }
