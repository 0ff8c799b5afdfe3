package domain

import "time"

// Storage keys for the persisted session. They are always written and cleared together.
const (
	KeyToken     = "auth_token"
	KeyExpiresAt = "token_expires_at"
	KeyUser      = "user_data"
)

// Keys lists the persisted session keys.
var Keys = []string{KeyToken, KeyExpiresAt, KeyUser}

// User is the identity snapshot cached with the token for display. Not authoritative.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Session is the authenticated user's credential state.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      User
}

// Valid reports whether the session has a token and now is strictly before ExpiresAt.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && now.Before(s.ExpiresAt)
}

// RefreshAt returns when a pre-expiry refresh should run for the given lead.
func (s *Session) RefreshAt(lead time.Duration) time.Time {
	return s.ExpiresAt.Add(-lead)
}
