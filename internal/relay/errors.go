package relay

import (
	"errors"
	"net/http"

	"github.com/teemow/garelay/internal/analytics"
)

// notConnectedMessage is the client-facing text for ErrNotConnected.
const notConnectedMessage = "Not connected to Google Analytics"

// StatusCode maps a Query or Disconnect error to an HTTP status.
func StatusCode(err error) int {
	var paramErr *analytics.InvalidParamError
	var toolErr *analytics.UnknownToolError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidRequest),
		errors.As(err, &paramErr),
		errors.As(err, &toolErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage returns the text reported to clients for err. Downstream
// failures pass their message through.
func ErrorMessage(err error) string {
	if errors.Is(err, ErrNotConnected) {
		return notConnectedMessage
	}
	return err.Error()
}
