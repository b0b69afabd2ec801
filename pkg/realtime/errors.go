package realtime

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized      = errors.New("credential rejected")
	ErrInvalidTransition = errors.New("invalid connection state transition")
	ErrNoCredential      = errors.New("no credential available")
)

// TransportError is a recoverable failure of the push channel: a dropped
// connection, a network error or an unexpected server status.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError means the server refused the credential used to open the channel.
// Retrying with the same credential is pointless.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("push channel refused credential (status %d)", e.StatusCode)
}

func (e *AuthError) Unwrap() error { return ErrUnauthorized }

// ParseError reports a malformed event payload. Only the offending event is
// dropped.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed event payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// HTTPError is returned by APIClient for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status=%d, body=%s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrUnauthorized
	}
	return nil
}

// IsAuthError reports whether err carries a rejected credential.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
