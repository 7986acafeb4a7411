package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Logger is the structured logger shared by the bridge, host and journal layers
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// DefaultLogger writes one JSON object per line through the standard log package
type DefaultLogger struct{}

// NewDefaultLogger creates a new default logger instance
func NewDefaultLogger() Logger {
	return &DefaultLogger{}
}

type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
}

// fieldsToMap converts alternating key/value pairs to a map.
// Non-string keys and a dangling trailing value are kept under positional keys.
func fieldsToMap(fields []interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			result[fmt.Sprintf("field_%d", i/2)] = fields[i]
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			result[fmt.Sprintf("field_%d", i/2)] = fields[i]
			result[fmt.Sprintf("field_%d_value", i/2)] = fields[i+1]
			continue
		}
		if err, isErr := fields[i+1].(error); isErr && err != nil {
			// errors marshal to {} otherwise
			result[key] = err.Error()
			continue
		}
		result[key] = fields[i+1]
	}

	return result
}

func (l *DefaultLogger) logStructured(level, msg string, fields []interface{}) {
	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   msg,
		Fields:    fieldsToMap(fields),
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		fallbackFields := fmt.Sprintf("%v", fields)
		fallbackEntry := logEntry{
			Timestamp: entry.Timestamp,
			Level:     level,
			Message:   msg,
			Fields: map[string]interface{}{
				"original_fields": fallbackFields,
				"marshal_error":   err.Error(),
			},
		}

		if jsonBytes, err = json.Marshal(fallbackEntry); err != nil {
			log.Printf("[%s] %s %s", level, msg, fallbackFields)
			return
		}
	}

	log.Println(string(jsonBytes))
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.logStructured("DEBUG", msg, fields)
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.logStructured("INFO", msg, fields)
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.logStructured("WARN", msg, fields)
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.logStructured("ERROR", msg, fields)
}

// CodedError is implemented by the errors package's BridgeError.
// Declared here to avoid an import cycle.
type CodedError interface {
	Error() string
	GetCode() string
	IsRetryable() bool
	GetContext() map[string]string
	GetTimestamp() time.Time
}

// LogError logs err with its classification when it carries one
func LogError(logger Logger, err error, operation string, context map[string]interface{}) {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	if err == nil {
		return
	}

	if coded, ok := err.(CodedError); ok {
		fields := []interface{}{
			"operation", operation,
			"error_code", coded.GetCode(),
			"retryable", coded.IsRetryable(),
			"timestamp", coded.GetTimestamp(),
		}
		for k, v := range coded.GetContext() {
			fields = append(fields, k, v)
		}
		for k, v := range context {
			fields = append(fields, k, v)
		}

		logger.Error(fmt.Sprintf("Bridge error: %s", err.Error()), fields...)
		return
	}

	fields := []interface{}{
		"operation", operation,
		"error_type", fmt.Sprintf("%T", err),
	}
	for k, v := range context {
		fields = append(fields, k, v)
	}

	logger.Error(fmt.Sprintf("Unexpected error: %s", err.Error()), fields...)
}

// LogOperation logs a completed operation with its duration
func LogOperation(logger Logger, operation string, duration time.Duration, context map[string]interface{}) {
	if logger == nil {
		logger = NewDefaultLogger()
	}

	fields := []interface{}{
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	}
	for k, v := range context {
		fields = append(fields, k, v)
	}

	logger.Info(fmt.Sprintf("Operation completed: %s", operation), fields...)
}
