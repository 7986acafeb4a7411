package logging

import "strings"

// Level orders log severities
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps debug, info, warn and error (any case) to a Level; unknown names are info
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// LevelLogger drops entries below a minimum level
type LevelLogger struct {
	next Logger
	min  Level
}

// NewLevelLogger wraps next; a nil next uses the default logger
func NewLevelLogger(next Logger, min Level) *LevelLogger {
	if next == nil {
		next = NewDefaultLogger()
	}
	return &LevelLogger{next: next, min: min}
}

func (l *LevelLogger) Debug(msg string, fields ...interface{}) {
	if l.min <= LevelDebug {
		l.next.Debug(msg, fields...)
	}
}

func (l *LevelLogger) Info(msg string, fields ...interface{}) {
	if l.min <= LevelInfo {
		l.next.Info(msg, fields...)
	}
}

func (l *LevelLogger) Warn(msg string, fields ...interface{}) {
	if l.min <= LevelWarn {
		l.next.Warn(msg, fields...)
	}
}

func (l *LevelLogger) Error(msg string, fields ...interface{}) {
	l.next.Error(msg, fields...)
}
