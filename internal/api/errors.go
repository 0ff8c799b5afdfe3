package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrSessionExpired is returned for a request that was abandoned because the session ended.
// The login redirect has already happened; callers should stop and not report it as a failure.
var ErrSessionExpired = errors.New("session expired")

// ValidationError is a missing or malformed input field. It is produced before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Invalid returns a *ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthError is a 4xx rejection from the backend, such as bad credentials or an unknown verification code.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: rejected with status %d", e.Status)
	}
	return fmt.Sprintf("api: rejected with status %d: %s", e.Status, e.Message)
}

// StatusError is a 5xx or otherwise unexpected response status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("api: unexpected status %d: %s", e.Status, e.Message)
}

// NetworkError is a transport failure: DNS, connection refused, timeout, unreadable body.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a 401 rejection.
func IsUnauthorized(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

// UserMessage turns err into a message fit to show to the user.
// Session expiry yields an empty string because the redirect is the only feedback.
func UserMessage(err error) string {
	if err == nil || errors.Is(err, ErrSessionExpired) {
		return ""
	}
	var (
		ve *ValidationError
		ae *AuthError
		se *StatusError
		ne *NetworkError
	)
	switch {
	case errors.As(err, &ve):
		return capitalize(ve.Error())
	case errors.As(err, &ae):
		if ae.Message != "" {
			return ae.Message
		}
		if ae.Status == http.StatusUnauthorized {
			return "Invalid email or password."
		}
		return "The request was rejected."
	case errors.As(err, &se):
		if se.Message != "" && se.Status < 500 {
			return se.Message
		}
		return "The server is having trouble. Please try again later."
	case errors.As(err, &ne):
		return "Unable to reach the server. Check your connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
