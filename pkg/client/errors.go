package client

import (
	"fmt"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

// Common client errors
var (
	// ErrNil is returned by Get when the key does not exist
	ErrNil = errors.ErrNil

	// ErrLockNotAcquired is returned by Lock when the key is already locked
	ErrLockNotAcquired = errors.ErrLockNotAcquired

	// ErrLockNotHeld is returned by Unlock when the lock expired or was taken over
	ErrLockNotHeld = errors.ErrLockNotHeld
)

// ClientError represents a client-specific error with additional context
type ClientError struct {
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError
func NewClientError(op, message string, err error) *ClientError {
	return &ClientError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}

func notStarted(op string) error {
	return NewClientError(op, "client not started", errors.NewNotConnectedError("store connection is not established", nil))
}
