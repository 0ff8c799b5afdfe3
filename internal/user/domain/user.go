package domain

import (
	"errors"
	"time"
)

// User is an account of the development backend.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Timezone     string
	Verified     bool // false until the emailed code is confirmed; unverified users cannot log in
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	return nil
}
