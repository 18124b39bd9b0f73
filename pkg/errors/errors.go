package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Common sentinel errors for quick checks
var (
	// ErrClosed is returned by operations on a closed subscriber or multiplexer.
	ErrClosed = errors.New("closed")

	// ErrInvalidInput is returned when caller input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal is returned when an internal error occurs.
	ErrInternal = errors.New("internal error")

	// ErrNil is returned by store reads of a key that does not exist.
	ErrNil = errors.New("key does not exist")

	// ErrLockNotAcquired is returned when a lock is held by someone else.
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrLockNotHeld is returned when releasing a lock that expired or was taken over.
	ErrLockNotHeld = errors.New("lock not held")
)

// Error is the base interface for all custom errors in the system.
// It extends the standard error interface with additional context.
type Error interface {
	error
	// Code returns the error code
	Code() string
	// Message returns the human-readable error message
	Message() string
	// Unwrap returns the underlying cause
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
	stack   []uintptr
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// Stack returns the captured stack trace.
func (e *BaseError) Stack() []uintptr {
	return e.stack
}

// captureStack captures the current stack trace.
func captureStack(skip int) []uintptr {
	const maxDepth = 32
	stack := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, stack)
	return stack[:n]
}

// StackTrace returns a formatted stack trace string.
func (e *BaseError) StackTrace() string {
	if len(e.stack) == 0 {
		return ""
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return buf.String()
}

// NotConnectedError is returned when a subscriber is requested before the
// physical subscription connection exists, after shutdown, or after the
// reader loop faulted.
type NotConnectedError struct {
	*BaseError
}

// NewNotConnectedError creates a new not connected error. cause may be nil.
func NewNotConnectedError(message string, cause error) *NotConnectedError {
	if message == "" {
		message = "pubsub connection is not established"
	}
	return &NotConnectedError{
		BaseError: &BaseError{
			code:    CodeNotConnected,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
	}
}

// PubSubDisabledError is returned when pub/sub support was not enabled.
type PubSubDisabledError struct {
	*BaseError
}

// NewPubSubDisabledError creates a new pub/sub disabled error.
func NewPubSubDisabledError() *PubSubDisabledError {
	return &PubSubDisabledError{
		BaseError: &BaseError{
			code:    CodePubSubDisabled,
			message: "pubsub support is disabled",
			stack:   captureStack(1),
		},
	}
}

// NotSubscribedError is returned when a subscriber releases a channel or
// pattern it never subscribed to. It signals a programming error.
type NotSubscribedError struct {
	*BaseError
	Name    string
	Pattern bool
}

// NewNotSubscribedError creates a new not subscribed error.
func NewNotSubscribedError(name string, pattern bool) *NotSubscribedError {
	kind := "channel"
	if pattern {
		kind = "pattern"
	}
	return &NotSubscribedError{
		BaseError: &BaseError{
			code:    CodeNotSubscribed,
			message: fmt.Sprintf("not subscribed to %s '%s'", kind, name),
			stack:   captureStack(1),
		},
		Name:    name,
		Pattern: pattern,
	}
}

// LeakedSubscriptionError reports a subscriber that became unreachable
// without being closed while it still held channels or patterns.
// It is a diagnostic, never returned from a blocking call.
type LeakedSubscriptionError struct {
	*BaseError
	SubscriberID string
	Channels     []string
	Patterns     []string
}

// NewLeakedSubscriptionError creates a new leaked subscription error.
func NewLeakedSubscriptionError(subscriberID string, channels, patterns []string) *LeakedSubscriptionError {
	return &LeakedSubscriptionError{
		BaseError: &BaseError{
			code:    CodeLeakedSubscription,
			message: fmt.Sprintf("subscriber %s was not closed", subscriberID),
		},
		SubscriberID: subscriberID,
		Channels:     channels,
		Patterns:     patterns,
	}
}

// Error implements the error interface.
func (e *LeakedSubscriptionError) Error() string {
	return fmt.Sprintf("subscriber %s was not closed: leaked channels=%v patterns=%v",
		e.SubscriberID, e.Channels, e.Patterns)
}

// ConnectionError represents a failure of the store connection.
type ConnectionError struct {
	*BaseError
	Op string
}

// NewConnectionError creates a new connection error for the given operation.
func NewConnectionError(op string, cause error) *ConnectionError {
	return &ConnectionError{
		BaseError: &BaseError{
			code:    CodeUnavailable,
			message: fmt.Sprintf("%s failed", op),
			cause:   cause,
			stack:   captureStack(1),
		},
		Op: op,
	}
}

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	*BaseError
	Field string
}

// NewConfigError creates a new configuration error.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		BaseError: &BaseError{
			code:    CodeConfigError,
			message: message,
			stack:   captureStack(1),
		},
		Field: field,
	}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("config error: %s", e.message)
}

// InternalError represents an internal error.
type InternalError struct {
	*BaseError
	Operation string
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *InternalError {
	if message == "" {
		message = "internal error"
	}
	return &InternalError{
		BaseError: &BaseError{
			code:    CodeInternal,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
	}
}

// WithOperation sets the operation context.
func (e *InternalError) WithOperation(op string) *InternalError {
	e.Operation = op
	return e
}

// Wrap wraps an error with additional context.
// If the error is already one of our custom types, it preserves the type
// and adds the cause chain. Otherwise, it creates an InternalError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already our error type, wrap it
	if e, ok := err.(Error); ok {
		return &BaseError{
			code:    e.Code(),
			message: message,
			cause:   err,
			stack:   captureStack(1),
		}
	}

	// Otherwise create an internal error
	return &InternalError{
		BaseError: &BaseError{
			code:    CodeInternal,
			message: message,
			cause:   err,
			stack:   captureStack(1),
		},
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// New creates a new error with a message.
func New(message string) error {
	return &BaseError{
		code:    CodeInternal,
		message: message,
		stack:   captureStack(1),
	}
}
