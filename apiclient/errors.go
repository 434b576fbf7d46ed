package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork wraps transport failures: refused connections, timeouts,
	// truncated bodies.
	ErrNetwork = errors.New("network failure")

	// ErrMalformed is returned when a 2xx body does not decode or lacks a
	// field the caller relies on.
	ErrMalformed = errors.New("malformed response")

	// ErrUnauthorized matches every 401 and 403 StatusError via errors.Is.
	ErrUnauthorized = errors.New("not authorized")
)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) see auth failures.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Message converts any error returned by Client into the string shown to
// the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.Message != "":
		return se.Message
	case errors.Is(err, ErrUnauthorized):
		return "You are not allowed to do that. Please log in again."
	case errors.Is(err, ErrNetwork):
		return "Could not reach the server. Check your connection and try again."
	case errors.Is(err, ErrMalformed):
		return "The server sent an unexpected response."
	case se != nil:
		return http.StatusText(se.Status)
	}
	return "Something went wrong."
}

// HTTPStatus picks the status a proxy should answer with for err.
func HTTPStatus(err error) int {
	var se *StatusError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &se):
		return se.Status
	case errors.Is(err, ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, ErrMalformed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
