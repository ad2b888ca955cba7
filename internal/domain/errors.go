package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotConnected   = errors.New("websocket not connected")
	ErrCallTimeout    = errors.New("api call timed out")
	ErrMonitorTimeout = errors.New("contract monitor timed out")
	ErrOrderInFlight  = errors.New("order already in flight")
	ErrNotConfirmed   = errors.New("signal entry not confirmed")
	ErrRiskLimit      = errors.New("session profit outside configured band")
	ErrRateLimited    = errors.New("trade rate limit reached")
)

// APIError is a structured error returned by the broker API.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker error %s: %s", e.Code, e.Message)
}

// Authorization reports whether the error is an authorization failure, which
// must surface to the caller instead of being retried.
func (e *APIError) Authorization() bool {
	switch e.Code {
	case "AuthorizationRequired", "InvalidToken", "AccountDisabled":
		return true
	default:
		return false
	}
}

// Recoverable reports whether err can be handled by skip-and-retry. All
// broker errors except authorization failures are recoverable, as are
// timeouts.
func Recoverable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Authorization()
	}
	return true
}
