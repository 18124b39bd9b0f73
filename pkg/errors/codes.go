package errors

// Error codes for categorizing errors.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeCancelled indicates the operation was cancelled.
	CodeCancelled = "CANCELLED"

	// CodeInvalidArgument indicates client specified an invalid argument.
	CodeInvalidArgument = "INVALID_ARGUMENT"

	// CodeFailedPrecondition indicates operation was rejected because the system
	// is not in a required state.
	CodeFailedPrecondition = "FAILED_PRECONDITION"

	// CodeInternal indicates internal errors.
	CodeInternal = "INTERNAL"

	// CodeUnavailable indicates the store is currently unavailable.
	CodeUnavailable = "UNAVAILABLE"

	// Domain-specific error codes

	// CodeNotConnected indicates the physical subscription connection is not established.
	CodeNotConnected = "NOT_CONNECTED"

	// CodePubSubDisabled indicates pub/sub support was disabled in configuration.
	CodePubSubDisabled = "PUBSUB_DISABLED"

	// CodeNotSubscribed indicates a subscriber released a channel or pattern it never held.
	CodeNotSubscribed = "NOT_SUBSCRIBED"

	// CodeLeakedSubscription indicates a subscriber was dropped while still holding keys.
	CodeLeakedSubscription = "LEAKED_SUBSCRIPTION"

	// CodeClosed indicates the subscriber or multiplexer was already closed.
	CodeClosed = "CLOSED"

	// CodeConfigError indicates a configuration error.
	CodeConfigError = "CONFIG_ERROR"

	// CodeSerializationError indicates serialization/deserialization failed.
	CodeSerializationError = "SERIALIZATION_ERROR"
)

// ErrorCategory represents a high-level error category.
type ErrorCategory string

const (
	// CategoryUsage indicates the caller used the API incorrectly.
	CategoryUsage ErrorCategory = "USAGE_ERROR"

	// CategoryTransport indicates the store connection failed.
	CategoryTransport ErrorCategory = "TRANSPORT_ERROR"

	// CategoryLifecycle indicates the component was closed or not started.
	CategoryLifecycle ErrorCategory = "LIFECYCLE_ERROR"

	// CategoryInternal indicates anything else.
	CategoryInternal ErrorCategory = "INTERNAL_ERROR"
)

// GetCategory returns the category for an error code.
func GetCategory(code string) ErrorCategory {
	switch code {
	case CodeInvalidArgument, CodeNotSubscribed, CodePubSubDisabled,
		CodeConfigError, CodeSerializationError:
		return CategoryUsage

	case CodeUnavailable:
		return CategoryTransport

	case CodeNotConnected, CodeClosed, CodeCancelled, CodeFailedPrecondition:
		return CategoryLifecycle

	default:
		return CategoryInternal
	}
}

// IsRetryable returns true if an error with the given code should be retried.
// Usage and lifecycle errors are never retried.
func IsRetryable(code string) bool {
	return code == CodeUnavailable
}
