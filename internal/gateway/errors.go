// ABOUTME: Error taxonomy for remote API calls
// ABOUTME: Sentinel kinds plus a typed APIError carrying status code and response body

package gateway

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers match with errors.Is; the concrete error in
// the chain is usually an *APIError carrying the HTTP detail.
var (
	ErrNetworkFailure        = errors.New("network failure")
	ErrTimeout               = errors.New("request timed out")
	ErrAuthenticationExpired = errors.New("authentication expired")
	ErrValidationRejected    = errors.New("validation rejected")
	ErrServerFault           = errors.New("server fault")
)

// APIError is a failed HTTP exchange. Err is one of the sentinel kinds above
// so errors.Is works through the wrap chain.
type APIError struct {
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (status %d)", e.Err, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// classifyStatus maps a non-2xx HTTP status to its error kind. 401 is
// handled separately by the re-authentication path before this is reached.
func classifyStatus(status int) error {
	switch {
	case status >= 500:
		return ErrServerFault
	case status >= 400:
		return ErrValidationRejected
	default:
		return ErrServerFault
	}
}
