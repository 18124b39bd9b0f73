package httputil

import (
	"net/http"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

// StatusFor maps an error from the client or multiplexer to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.IsPubSubDisabled(err), errors.IsNotConnected(err), errors.IsClosed(err):
		return http.StatusServiceUnavailable
	case errors.IsNotSubscribed(err):
		return http.StatusBadRequest
	case errors.IsConnection(err):
		return http.StatusBadGateway
	case errors.IsCancellation(err):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteErr writes err with the status chosen by StatusFor.
func WriteErr(w http.ResponseWriter, err error) {
	WriteError(w, StatusFor(err), errors.GetErrorMessage(err))
}
