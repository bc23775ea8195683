// internal/api/errors.go
package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes callers branch on.
var (
	// ErrUnauthenticated means no usable credential remains: there was
	// no refresh token, or the renewal call itself failed. The session
	// is logged out.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAuthorizationExpired is the internal marker for a 401. The
	// pipeline recovers from it once per request via renewal; it only
	// escapes Do when the retried request is rejected again.
	ErrAuthorizationExpired = errors.New("authorization expired")

	// ErrNetwork covers transport failures and timeouts. Not retried
	// by the pipeline.
	ErrNetwork = errors.New("network error")

	// ErrConfirmationExpired means the server refused a confirm or
	// reject because the confirmation token lapsed. Non-retryable for
	// that pending confirmation.
	ErrConfirmationExpired = errors.New("confirmation expired")
)

// StatusError is a non-2xx response that is not one of the recognized
// failure classes.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// statusOf extracts the HTTP status from an error chain, or 0.
func statusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
