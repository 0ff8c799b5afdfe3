package api

import (
	"errors"
	"fmt"
	"testing"
)

func TestUserMessage(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"session expired", fmt.Errorf("list: %w", ErrSessionExpired), ""},
		{"validation", Invalid("email", "is required"), "Email is required"},
		{"auth with message", &AuthError{Status: 401, Message: "Invalid credentials"}, "Invalid credentials"},
		{"auth 401 no message", &AuthError{Status: 401}, "Invalid email or password."},
		{"auth 403 no message", &AuthError{Status: 403}, "The request was rejected."},
		{"server", &StatusError{Status: 503, Message: "db down"}, "The server is having trouble. Please try again later."},
		{"network", &NetworkError{Op: "POST /x", Err: errors.New("refused")}, "Unable to reach the server. Check your connection and try again."},
		{"other", errors.New("boom"), "Something went wrong. Please try again."},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := UserMessage(tc.err); got != tc.want {
				t.Errorf("UserMessage = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsUnauthorized(t *testing.T) {
	if !IsUnauthorized(fmt.Errorf("wrap: %w", &AuthError{Status: 401})) {
		t.Error("wrapped 401 should be unauthorized")
	}
	if IsUnauthorized(&AuthError{Status: 403}) {
		t.Error("403 is not unauthorized")
	}
	if IsUnauthorized(&StatusError{Status: 401}) {
		t.Error("StatusError is never unauthorized")
	}
}

func TestErrorStrings(t *testing.T) {
	if got := (&AuthError{Status: 400, Message: "bad"}).Error(); got != "api: rejected with status 400: bad" {
		t.Errorf("AuthError = %q", got)
	}
	if got := (&StatusError{Status: 500}).Error(); got != "api: unexpected status 500" {
		t.Errorf("StatusError = %q", got)
	}
	if got := Invalid("code", "must be 6 digits").Error(); got != "code must be 6 digits" {
		t.Errorf("ValidationError = %q", got)
	}
}
