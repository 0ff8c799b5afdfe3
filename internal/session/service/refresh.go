package service

import (
	"context"
	"errors"
	"fmt"

	"remindme/internal/api"
	"remindme/internal/security"
	"remindme/internal/session/domain"
	"remindme/internal/telemetry"
)

var (
	// ErrRefreshUnsupported is returned by UnsupportedRefresher.
	ErrRefreshUnsupported = errors.New("session: backend does not support token refresh")
	// ErrNoToken is returned when an auth response carries no token.
	ErrNoToken = errors.New("session: backend returned no token")
	// ErrNoExpiry is returned when neither expires_at nor the token's exp claim gives an expiry.
	ErrNoExpiry = errors.New("session: backend returned no token expiry")
)

// Refresher exchanges the current session for a new one.
type Refresher interface {
	Refresh(ctx context.Context, current domain.Session) (*domain.Session, error)
}

// UnsupportedRefresher always fails, which ends the session when the refresh task fires.
// It is the default for backends without a refresh endpoint.
type UnsupportedRefresher struct{}

func (UnsupportedRefresher) Refresh(context.Context, domain.Session) (*domain.Session, error) {
	return nil, ErrRefreshUnsupported
}

// EndpointRefresher posts to a refresh endpoint with the current bearer token.
type EndpointRefresher struct {
	client *api.Client
	path   string
}

// NewEndpointRefresher returns a Refresher calling path through client.
// client must attach the current token, as Manager.Client does.
func NewEndpointRefresher(client *api.Client, path string) *EndpointRefresher {
	return &EndpointRefresher{client: client, path: path}
}

func (r *EndpointRefresher) Refresh(ctx context.Context, current domain.Session) (*domain.Session, error) {
	resp, err := r.client.Refresh(ctx, r.path)
	if err != nil {
		return nil, err
	}
	return sessionFromResponse(resp, current.User)
}

// sessionFromResponse builds a session from a login, verify or refresh response.
// A missing expires_at falls back to the token's exp claim. A missing user id keeps fallback.
func sessionFromResponse(resp *api.AuthResponse, fallback domain.User) (*domain.Session, error) {
	if resp == nil || resp.Token == "" {
		return nil, ErrNoToken
	}
	exp, ok := resp.Expiry()
	if !ok {
		exp, ok = security.ExpiryFromToken(resp.Token)
	}
	if !ok {
		return nil, ErrNoExpiry
	}
	user := domain.User{ID: resp.ID, Email: resp.Email, Username: resp.Username}
	if user.ID == "" {
		user = fallback
	}
	return &domain.Session{Token: resp.Token, ExpiresAt: exp, User: user}, nil
}

// Refresh runs a refresh now through the shared flight. Concurrent callers and 401 handlers join it.
// On failure the session is ended and the returned error wraps api.ErrSessionExpired.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.session == nil {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	gen := m.gen
	sc := m.scope
	m.mu.Unlock()

	flightCtx := context.Background()
	if sc != nil {
		flightCtx = sc.ctx
	}
	ch := m.flights.DoChan(flightKey, m.refreshFlight(flightCtx, gen))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// refresh is the timer entry point.
func (m *Manager) refresh(ctx context.Context, gen uint64) (*domain.Session, error) {
	v, err, _ := m.flights.Do(flightKey, m.refreshFlight(ctx, gen))
	if err != nil {
		return nil, err
	}
	return v.(*domain.Session), nil
}

// refreshFlight returns the flight body that refreshes the session of generation gen.
// ctx is the session scope, cancelled when the session is cleared by another path.
func (m *Manager) refreshFlight(ctx context.Context, gen uint64) func() (any, error) {
	return func() (any, error) {
		m.mu.Lock()
		if m.gen != gen || m.session == nil {
			cur, ok := m.currentLocked()
			m.mu.Unlock()
			if ok {
				return cur, nil
			}
			return nil, api.ErrSessionExpired
		}
		current := *m.session
		m.state = StateRefreshing
		m.inFlight = true
		m.mu.Unlock()
		defer m.leaveFlight()

		rctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		next, err := m.refresher.Refresh(rctx, current)
		cancel()
		if err == nil && !next.Valid(m.clock.Now()) {
			err = errors.New("session: refreshed token is already expired")
		}
		if err == nil {
			err = m.installIf(context.Background(), next, gen)
		}
		if errors.Is(err, errStaleGeneration) {
			// Logout or a new login won while the refresher ran; the result is dropped.
			m.logger.Debug().Msg("session: discarding refresh result for a replaced session")
			m.mu.Lock()
			cur, ok := m.currentLocked()
			m.mu.Unlock()
			if ok {
				return cur, nil
			}
			return nil, api.ErrSessionExpired
		}
		if err != nil {
			m.metrics.Refresh(false)
			m.expire(gen, telemetry.EventRefreshFailed, err)
			return nil, fmt.Errorf("%w: %w", api.ErrSessionExpired, err)
		}
		m.metrics.Refresh(true)
		m.logger.Debug().Time("expires_at", next.ExpiresAt).Msg("session: refreshed")
		m.emit(telemetry.EventRefreshed, next.User.ID, nil)
		cp := *next
		return &cp, nil
	}
}

// teardownFlight returns the flight body run for a 401 when nothing else is in flight.
func (m *Manager) teardownFlight(gen uint64) func() (any, error) {
	return func() (any, error) {
		m.mu.Lock()
		if m.gen != gen {
			cur, ok := m.currentLocked()
			m.mu.Unlock()
			if ok {
				return cur, nil
			}
			return nil, api.ErrSessionExpired
		}
		m.inFlight = true
		m.mu.Unlock()
		defer m.leaveFlight()

		m.expire(gen, telemetry.EventExpired, nil)
		return nil, api.ErrSessionExpired
	}
}

func (m *Manager) leaveFlight() {
	m.mu.Lock()
	m.inFlight = false
	if m.state == StateRefreshing {
		m.state = StateUnauthenticated
		if m.session != nil {
			m.state = StateAuthenticated
		}
	}
	m.mu.Unlock()
}

// currentLocked returns a copy of the session if it is valid.
func (m *Manager) currentLocked() (*domain.Session, bool) {
	if !m.session.Valid(m.clock.Now()) {
		return nil, false
	}
	cp := *m.session
	return &cp, true
}

// handleUnauthorized decides what happens to a request that got a 401 while sent with generation gen.
// It returns the session to retry with, or api.ErrSessionExpired when the request is abandoned.
func (m *Manager) handleUnauthorized(ctx context.Context, gen uint64) (*domain.Session, error) {
	m.mu.Lock()
	if m.gen != gen {
		// The session was replaced or cleared after the request was sent; that path already redirected.
		cur, ok := m.currentLocked()
		m.mu.Unlock()
		if ok {
			return cur, nil
		}
		return nil, api.ErrSessionExpired
	}
	queued := m.inFlight
	m.mu.Unlock()
	if queued {
		m.metrics.Queued()
	}

	ch := m.flights.DoChan(flightKey, m.teardownFlight(gen))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, api.ErrSessionExpired
		}
		return res.Val.(*domain.Session), nil
	}
}
