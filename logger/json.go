package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

type jsonLogger struct {
	level    LogLevel
	sink     io.Writer
	metadata map[string]interface{}
}

var _ Logger = (*jsonLogger)(nil)

// NewJSON returns a Logger that writes one JSON object per line to sink.
// If sink is nil, stderr is used.
func NewJSON(level LogLevel, sink io.Writer) Logger {
	if sink == nil {
		sink = os.Stderr
	}
	return &jsonLogger{level: level, sink: sink}
}

func (j *jsonLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{})
	for k, v := range j.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &jsonLogger{level: j.level, sink: j.sink, metadata: kv}
}

func (j *jsonLogger) write(level LogLevel, severity, msg string, args []interface{}) {
	if level < j.level {
		return
	}
	entry := make(map[string]interface{}, len(j.metadata)+3)
	for k, v := range j.metadata {
		entry[k] = v
	}
	entry["ts"] = time.Now().Format(time.RFC3339Nano)
	entry["severity"] = severity
	entry["message"] = fmt.Sprintf(msg, args...)
	buf, err := json.Marshal(entry)
	if err != nil {
		return
	}
	j.sink.Write(append(buf, '\n'))
}

func (j *jsonLogger) Debug(msg string, args ...interface{}) {
	j.write(LevelDebug, "DEBUG", msg, args)
}

func (j *jsonLogger) Info(msg string, args ...interface{}) {
	j.write(LevelInfo, "INFO", msg, args)
}

func (j *jsonLogger) Warn(msg string, args ...interface{}) {
	j.write(LevelWarn, "WARNING", msg, args)
}

func (j *jsonLogger) Error(msg string, args ...interface{}) {
	j.write(LevelError, "ERROR", msg, args)
}
