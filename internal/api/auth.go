package api

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Backend endpoints.
const (
	PathRegister  = "/api/auth/register"
	PathLogin     = "/api/auth/login"
	PathLogout    = "/api/auth/logout"
	PathVerify    = "/api/auth/verify"
	PathRefresh   = "/api/auth/refresh"
	PathReminders = "/api/reminders"
	PathKeys      = "/api/keys"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Timezone string `json:"timezone"`
}

type RegisterResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// AuthResponse is the body returned by login, verify and refresh.
// ExpiresAt is kept as the raw string because the backend may omit it.
type AuthResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Expiry parses ExpiresAt as an RFC 3339 timestamp.
func (r *AuthResponse) Expiry() (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	return ParseTimestamp(r.ExpiresAt)
}

// ParseTimestamp parses an RFC 3339 timestamp, with or without fractional seconds.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.Do(ctx, http.MethodPost, PathRegister, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.Do(ctx, http.MethodPost, PathLogin, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout tells the backend to revoke the bearer token attached by the transport.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, PathLogout, nil, nil)
}

func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.Do(ctx, http.MethodPost, PathVerify, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges the current bearer token for a new one at path.
func (c *Client) Refresh(ctx context.Context, path string) (*AuthResponse, error) {
	if path == "" {
		path = PathRefresh
	}
	var out AuthResponse
	if err := c.Do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
