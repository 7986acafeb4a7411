package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode classifies bridge, host and journal failures
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeMissingArgument
	ErrCodeOperationFailure
	ErrCodeNotFound
	ErrCodeNotImplemented
	ErrCodeConnection
	ErrCodeTimeout
	ErrCodeBusy
	ErrCodeConstraint
	ErrCodePermission
	ErrCodeDiskSpace
	ErrCodeCorruption
	ErrCodeSchema
	ErrCodeInternal
	ErrCodeValidation
)

func (e ErrorCode) String() string {
	switch e {
	case ErrCodeMissingArgument:
		return "MISSING_ARGUMENT"
	case ErrCodeOperationFailure:
		return "OPERATION_FAILURE"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeNotImplemented:
		return "NOT_IMPLEMENTED"
	case ErrCodeConnection:
		return "CONNECTION"
	case ErrCodeTimeout:
		return "TIMEOUT"
	case ErrCodeBusy:
		return "BUSY"
	case ErrCodeConstraint:
		return "CONSTRAINT"
	case ErrCodePermission:
		return "PERMISSION"
	case ErrCodeDiskSpace:
		return "DISK_SPACE"
	case ErrCodeCorruption:
		return "CORRUPTION"
	case ErrCodeSchema:
		return "SCHEMA"
	case ErrCodeInternal:
		return "INTERNAL"
	case ErrCodeValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// BridgeError is a classified error carrying the failing operation and context
type BridgeError struct {
	Op        string            // operation name
	Err       error             // underlying error
	Code      ErrorCode         // error classification
	Retryable bool              // whether the error is retryable
	Context   map[string]string // additional context information
	Timestamp time.Time         // when the error occurred
}

func (e *BridgeError) Error() string {
	if e == nil {
		return "bridge error"
	}

	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Code != ErrCodeUnknown {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code.String()))
	}
	if e.Retryable {
		parts = append(parts, "retryable=true")
	}

	// sorted for deterministic output
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, e.Context[k]))
	}

	contextStr := ""
	if len(parts) > 0 {
		contextStr = fmt.Sprintf(" [%s]", strings.Join(parts, " "))
	}

	if e.Err != nil {
		return e.Err.Error() + contextStr
	}
	return "bridge error" + contextStr
}

func (e *BridgeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *BridgeError by code, otherwise defers to the wrapped error
func (e *BridgeError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*BridgeError); ok {
		return e.Code == t.Code
	}
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

func (e *BridgeError) IsRetryable() bool {
	if e == nil {
		return false
	}
	return e.Retryable
}

// GetCode returns the code as a string for logging.CodedError
func (e *BridgeError) GetCode() string {
	if e == nil {
		return ErrCodeUnknown.String()
	}
	return e.Code.String()
}

func (e *BridgeError) GetContext() map[string]string {
	if e == nil || e.Context == nil {
		return make(map[string]string)
	}
	return e.Context
}

func (e *BridgeError) GetTimestamp() time.Time {
	if e == nil {
		return time.Time{}
	}
	return e.Timestamp
}

// WithContext mutates the receiver; do not call it after the error is shared
func (e *BridgeError) WithContext(key, value string) *BridgeError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// New creates a BridgeError, deriving retryability from the code
func New(op string, err error, code ErrorCode) *BridgeError {
	return &BridgeError{
		Op:        op,
		Err:       err,
		Code:      code,
		Retryable: isRetryableError(code, err),
		Context:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// NewWithContext creates a BridgeError with a copy of context
func NewWithContext(op string, err error, code ErrorCode, context map[string]string) *BridgeError {
	bridgeErr := New(op, err, code)
	for k, v := range context {
		bridgeErr.Context[k] = v
	}
	return bridgeErr
}

// MissingArgument reports an absent or empty required argument
func MissingArgument(op, argument string) *BridgeError {
	return NewWithContext(op, fmt.Errorf("%s is required", argument), ErrCodeMissingArgument,
		map[string]string{"argument": argument})
}

// OperationFailure wraps an underlying host failure
func OperationFailure(op string, err error) *BridgeError {
	return New(op, err, ErrCodeOperationFailure)
}

func isRetryableError(code ErrorCode, err error) bool {
	switch code {
	case ErrCodeConnection, ErrCodeTimeout, ErrCodeBusy:
		return true
	case ErrCodeUnknown:
		if err == nil {
			return false
		}
		errStr := strings.ToLower(err.Error())
		return strings.Contains(errStr, "temporary") ||
			strings.Contains(errStr, "busy") ||
			strings.Contains(errStr, "locked")
	default:
		return false
	}
}

func hasCode(err error, code ErrorCode) bool {
	var bridgeErr *BridgeError
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Code == code
	}
	return false
}

func IsMissingArgument(err error) bool  { return hasCode(err, ErrCodeMissingArgument) }
func IsOperationFailure(err error) bool { return hasCode(err, ErrCodeOperationFailure) }
func IsNotFound(err error) bool         { return hasCode(err, ErrCodeNotFound) }
func IsConnection(err error) bool       { return hasCode(err, ErrCodeConnection) }
func IsBusy(err error) bool             { return hasCode(err, ErrCodeBusy) }

// IsRetryable checks if the error is a retryable BridgeError
func IsRetryable(err error) bool {
	var bridgeErr *BridgeError
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Retryable
	}
	return false
}
