package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"remindme/internal/api"
	"remindme/internal/session/domain"
	"remindme/internal/session/repository"
	"remindme/internal/telemetry"
	"remindme/internal/telemetry/metrics"
)

const minPasswordLength = 8

// Credentials are the login form fields.
type Credentials struct {
	Email      string
	Password   string
	RememberMe bool
}

// Registration are the signup form fields. An empty Timezone means UTC.
type Registration struct {
	Email    string
	Username string
	Password string
	Timezone string
}

func validateEmail(email string) error {
	if email == "" {
		return api.Invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return api.Invalid("email", "is not a valid address")
	}
	return nil
}

// Login exchanges credentials for a session, persists it and arms the refresh task.
// Invalid input fails with *api.ValidationError before any request; a rejection is *api.AuthError.
func (m *Manager) Login(ctx context.Context, c Credentials) (*domain.Session, error) {
	email := strings.TrimSpace(c.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if c.Password == "" {
		return nil, api.Invalid("password", "is required")
	}

	resp, err := m.api.Login(ctx, api.LoginRequest{Email: email, Password: c.Password, RememberMe: c.RememberMe})
	if err != nil {
		var ae *api.AuthError
		if errors.As(err, &ae) {
			m.metrics.Login(metrics.OutcomeRejected)
		} else {
			m.metrics.Login(metrics.OutcomeError)
		}
		return nil, err
	}
	meta, _ := json.Marshal(map[string]any{"via": "login", "remember_me": c.RememberMe})
	return m.start(ctx, resp, meta)
}

// Verify confirms an email with the code sent at signup. The backend answers with a session, which is installed.
func (m *Manager) Verify(ctx context.Context, email, code string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, api.Invalid("code", "is required")
	}
	resp, err := m.api.Verify(ctx, api.VerifyRequest{Email: email, Code: code})
	if err != nil {
		return nil, err
	}
	meta, _ := json.Marshal(map[string]any{"via": "verify"})
	return m.start(ctx, resp, meta)
}

// start installs the session carried by an auth response.
func (m *Manager) start(ctx context.Context, resp *api.AuthResponse, meta []byte) (*domain.Session, error) {
	s, err := sessionFromResponse(resp, domain.User{})
	if err == nil && !s.Valid(m.clock.Now()) {
		err = errors.New("session: backend returned an expired token")
	}
	if err == nil {
		err = m.install(ctx, s, true)
	}
	if err != nil {
		m.metrics.Login(metrics.OutcomeError)
		return nil, err
	}
	m.metrics.Login(metrics.OutcomeSuccess)
	m.logger.Info().Str("user_id", s.User.ID).Time("expires_at", s.ExpiresAt).Msg("session: logged in")
	m.emit(telemetry.EventLogin, s.User.ID, meta)
	cp := *s
	return &cp, nil
}

// Register creates an account. It does not start a session; the user verifies the email first.
func (m *Manager) Register(ctx context.Context, r Registration) (*api.RegisterResponse, error) {
	email := strings.TrimSpace(r.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(r.Username)
	if username == "" {
		return nil, api.Invalid("username", "is required")
	}
	if len(r.Password) < minPasswordLength {
		return nil, api.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	tz := strings.TrimSpace(r.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, api.Invalid("timezone", "is not a known IANA time zone")
	}
	return m.api.Register(ctx, api.RegisterRequest{Email: email, Username: username, Password: r.Password, Timezone: tz})
}

// Logout notifies the backend best-effort, then clears the session, its storage keys and the refresh task.
// Only a storage failure is returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	var userID string
	hadSession := m.session != nil
	if hadSession {
		userID = m.session.User.ID
	}
	m.mu.Unlock()

	if hadSession {
		if err := m.api.Logout(ctx); err != nil && !errors.Is(err, api.ErrSessionExpired) {
			m.logger.Warn().Err(err).Msg("session: backend logout failed, clearing locally")
		}
	}

	m.ioMu.Lock()
	m.mu.Lock()
	m.clearLocked()
	m.mu.Unlock()
	clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storageTimeout)
	err := m.repo.Clear(clearCtx)
	cancel()
	m.ioMu.Unlock()

	m.metrics.SetAuthenticated(false)
	m.metrics.Logout()
	if hadSession {
		m.emit(telemetry.EventLogout, userID, nil)
	}
	if err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// Restore installs the persisted session if it is still valid and returns it.
// Expired or corrupt persisted state is cleared and (nil, nil) is returned.
func (m *Manager) Restore(ctx context.Context) (*domain.Session, error) {
	s, err := m.repo.Load(ctx)
	if err != nil && !errors.Is(err, repository.ErrCorrupt) {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	if err != nil || (s != nil && !s.Valid(m.clock.Now())) {
		if err != nil {
			m.logger.Warn().Err(err).Msg("session: discarding persisted session")
		}
		if clearErr := m.repo.Clear(ctx); clearErr != nil {
			return nil, fmt.Errorf("session: clear: %w", clearErr)
		}
		return nil, nil
	}
	if s == nil {
		return nil, nil
	}
	if err := m.install(ctx, s, false); err != nil {
		return nil, err
	}
	m.emit(telemetry.EventRestored, s.User.ID, nil)
	cp := *s
	return &cp, nil
}
