package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	}
	return "ERROR"
}

// ParseLevel maps a config value to a Level; unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

type Logger struct {
	service string
	level   Level
	fields  map[string]any
	out     *output
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

func New(service string) *Logger {
	return &Logger{service: service, level: LevelInfo, out: &output{w: os.Stdout}}
}

// NewWithWriter is New writing to w at the given level.
func NewWithWriter(service string, w io.Writer, level Level) *Logger {
	return &Logger{service: service, level: level, out: &output{w: w}}
}

// Discard returns a logger that drops everything.
func Discard() *Logger { return NewWithWriter("discard", io.Discard, LevelError+1) }

func (l *Logger) SetLevel(level Level) { l.level = level }

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{service: l.service, level: l.level, fields: merged, out: l.out}
}

func (l *Logger) log(level Level, action, msg string, fields map[string]any, err error) {
	if level < l.level {
		return
	}
	entry := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"level":      level.String(),
		"service":    l.service,
		"action":     action,
		"message":    msg,
		"hostname":   hostname(),
		"request_id": "",
	}
	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}
	if err != nil {
		entry["error"] = map[string]any{"msg": err.Error(), "stack": fmt.Sprintf("%T", err)}
	}
	l.out.mu.Lock()
	_ = json.NewEncoder(l.out.w).Encode(entry)
	l.out.mu.Unlock()
}

func (l *Logger) Info(action string, fields map[string]any)             { l.log(LevelInfo, action, action, fields, nil) }
func (l *Logger) Debug(action string, fields map[string]any)            { l.log(LevelDebug, action, action, fields, nil) }
func (l *Logger) Warn(action string, fields map[string]any)             { l.log(LevelWarn, action, action, fields, nil) }
func (l *Logger) Error(action string, err error, fields map[string]any) { l.log(LevelError, action, action, fields, err) }

var (
	hostOnce sync.Once
	hostName string
)

func hostname() string {
	hostOnce.Do(func() { hostName, _ = os.Hostname() })
	return hostName
}
