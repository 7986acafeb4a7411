package errors

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ClassifyError maps driver, context and message patterns onto an ErrorCode
func ClassifyError(err error) ErrorCode {
	if err == nil {
		return ErrCodeUnknown
	}

	if code := classifySQLiteError(err); code != ErrCodeUnknown {
		return code
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrCodeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCodeTimeout
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "constraint"):
		return ErrCodeConstraint
	case strings.Contains(errStr, "database is locked"):
		return ErrCodeBusy
	case strings.Contains(errStr, "database disk image is malformed"):
		return ErrCodeCorruption
	case strings.Contains(errStr, "no such table"), strings.Contains(errStr, "no such column"):
		return ErrCodeSchema
	case strings.Contains(errStr, "permission denied"), strings.Contains(errStr, "access denied"):
		return ErrCodePermission
	case strings.Contains(errStr, "no space left"), strings.Contains(errStr, "disk full"):
		return ErrCodeDiskSpace
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "device offline"):
		return ErrCodeConnection
	case strings.Contains(errStr, "timeout"):
		return ErrCodeTimeout
	default:
		return ErrCodeUnknown
	}
}

// Wrap classifies err and wraps it; nil stays nil
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return New(op, err, ClassifyError(err))
}

// WrapWithContext is Wrap plus context
func WrapWithContext(op string, err error, contextMap map[string]string) error {
	if err == nil {
		return nil
	}
	return NewWithContext(op, err, ClassifyError(err), contextMap)
}

// ConnectionError creates a standardized connection error
func ConnectionError(op string, details string) error {
	return NewWithContext(op, errors.New("connection error"), ErrCodeConnection,
		map[string]string{"details": details})
}

// ValidationError creates a standardized validation error
func ValidationError(op string, field string, value string, reason string) error {
	return NewWithContext(op, errors.New("validation failed"), ErrCodeValidation, map[string]string{
		"field":  field,
		"value":  value,
		"reason": reason,
	})
}
