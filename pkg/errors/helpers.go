package errors

import (
	"context"
	"errors"
)

// IsNotConnected checks if an error indicates a missing subscription connection.
func IsNotConnected(err error) bool {
	if err == nil {
		return false
	}

	var notConnectedErr *NotConnectedError
	return errors.As(err, &notConnectedErr)
}

// IsPubSubDisabled checks if an error indicates pub/sub is disabled.
func IsPubSubDisabled(err error) bool {
	if err == nil {
		return false
	}

	var disabledErr *PubSubDisabledError
	return errors.As(err, &disabledErr)
}

// IsNotSubscribed checks if an error indicates releasing a key that was never held.
func IsNotSubscribed(err error) bool {
	if err == nil {
		return false
	}

	var notSubscribedErr *NotSubscribedError
	return errors.As(err, &notSubscribedErr)
}

// IsLeakedSubscription checks if an error is a leaked subscription diagnostic.
func IsLeakedSubscription(err error) bool {
	if err == nil {
		return false
	}

	var leakErr *LeakedSubscriptionError
	return errors.As(err, &leakErr)
}

// IsClosed checks if an error indicates a closed subscriber or multiplexer.
func IsClosed(err error) bool {
	return err != nil && errors.Is(err, ErrClosed)
}

// IsConnection checks if an error is a store connection failure.
func IsConnection(err error) bool {
	if err == nil {
		return false
	}

	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsCancellation reports whether err is a cooperative cancellation signal
// rather than a failure.
func IsCancellation(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// ShouldRetry checks if an operation should be retried based on the error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return IsRetryable(customErr.Code())
	}

	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	if err == nil {
		return CodeOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Code()
	}

	switch {
	case IsClosed(err):
		return CodeClosed
	case IsCancellation(err):
		return CodeCancelled
	default:
		return CodeInternal
	}
}

// GetErrorMessage extracts a human-readable message from an error.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Message()
	}

	return err.Error()
}

// Cause returns the underlying cause of an error.
// It unwraps the error chain until it finds the root cause.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		underlying := unwrapper.Unwrap()
		if underlying == nil {
			return err
		}
		err = underlying
	}
}

// Is and As re-export the standard library helpers so callers importing this
// package under the name errors keep working.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Join returns an error wrapping every non-nil error in errs.
func Join(errs ...error) error { return errors.Join(errs...) }
