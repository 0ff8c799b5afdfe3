// Package service implements the session manager: it owns the bearer token, attaches it to
// outbound requests, refreshes it before expiry and ends the session on rejection.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"remindme/internal/api"
	"remindme/internal/session/domain"
	"remindme/internal/session/repository"
	"remindme/internal/storage"
	"remindme/internal/telemetry"
	"remindme/internal/telemetry/metrics"
)

const (
	// DefaultRefreshLead is how long before expiry the refresh task runs.
	DefaultRefreshLead = 5 * time.Minute
	// DefaultLoginURL is where the user is sent when the session ends.
	DefaultLoginURL = "/login"

	flightKey      = "session"
	storageTimeout = 5 * time.Second
	refreshTimeout = 30 * time.Second
)

var (
	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("session: manager is closed")
	// ErrNotAuthenticated is returned by Refresh when there is no session to refresh.
	ErrNotAuthenticated = errors.New("session: not authenticated")
)

// errStaleGeneration means the session changed while a refresh was in flight.
var errStaleGeneration = errors.New("session: superseded while refreshing")

// State is the lifecycle state of the session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// Options configures a Manager. Only BaseURL is required.
type Options struct {
	// BaseURL is the backend base URL.
	BaseURL string
	// Transport is the underlying RoundTripper; defaults to http.DefaultTransport.
	Transport http.RoundTripper
	// Timeout is the per-request timeout; zero keeps the api client default.
	Timeout time.Duration
	// Repository persists the session; defaults to an in-memory store.
	Repository repository.Repository
	Clock      clockwork.Clock
	// RefreshLead defaults to DefaultRefreshLead.
	RefreshLead time.Duration
	// Refresher obtains a new session. When nil, RefreshPath selects an EndpointRefresher,
	// otherwise UnsupportedRefresher is used.
	Refresher   Refresher
	RefreshPath string
	Redirector  Redirector
	LoginURL    string
	Logger      *zerolog.Logger
	Emitter     telemetry.EventEmitter
	Metrics     *metrics.Session
	Tracer      trace.Tracer
	// Source is recorded on emitted events (e.g. "remindctl").
	Source string
}

// Manager holds the single authentication credential of a client process.
// Create it with New, use it for every backend call through Client or Transport, and Close it on exit.
type Manager struct {
	api        *api.Client
	repo       repository.Repository
	clock      clockwork.Clock
	lead       time.Duration
	refresher  Refresher
	redirector Redirector
	loginURL   string
	exempt     []string
	logger     zerolog.Logger
	emitter    telemetry.EventEmitter
	metrics    *metrics.Session
	source     string

	flights singleflight.Group

	// ioMu serializes session changes together with their persistence.
	ioMu sync.Mutex

	mu       sync.Mutex
	session  *domain.Session
	gen      uint64
	state    State
	scope    *scope
	inFlight bool
	closed   bool
}

// scope ties the refresh timer to one installed session.
type scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	timer  clockwork.Timer
	at     time.Time
}

func (s *scope) release() {
	if s == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
}

// New returns a Manager with no session installed. Call Restore to pick up a persisted session.
func New(opts Options) (*Manager, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("session: base URL is required")
	}
	m := &Manager{
		repo:       opts.Repository,
		clock:      opts.Clock,
		lead:       opts.RefreshLead,
		refresher:  opts.Refresher,
		redirector: opts.Redirector,
		loginURL:   opts.LoginURL,
		emitter:    opts.Emitter,
		metrics:    opts.Metrics,
		source:     opts.Source,
		logger:     zerolog.Nop(),
	}
	if opts.Logger != nil {
		m.logger = *opts.Logger
	}
	if m.repo == nil {
		m.repo = repository.NewKVRepository(storage.NewMemoryStore())
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.lead <= 0 {
		m.lead = DefaultRefreshLead
	}
	if m.loginURL == "" {
		m.loginURL = DefaultLoginURL
	}
	if m.redirector == nil {
		m.redirector = logRedirector{logger: m.logger}
	}
	if m.source == "" {
		m.source = "remindme"
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	apiOpts := []api.Option{
		api.WithTransport(&transport{m: m, base: base}),
		api.WithTimeout(opts.Timeout),
		api.WithLogger(m.logger),
	}
	if opts.Tracer != nil {
		apiOpts = append(apiOpts, api.WithTracer(opts.Tracer))
	}
	m.api = api.NewClient(opts.BaseURL, apiOpts...)

	refreshPath := strings.TrimSpace(opts.RefreshPath)
	if m.refresher == nil {
		if refreshPath != "" {
			m.refresher = NewEndpointRefresher(m.api, refreshPath)
		} else {
			m.refresher = UnsupportedRefresher{}
		}
	}
	m.exempt = []string{api.PathLogin, api.PathRegister, api.PathVerify, api.PathRefresh}
	if refreshPath != "" && refreshPath != api.PathRefresh {
		m.exempt = append(m.exempt, refreshPath)
	}
	return m, nil
}

// Client returns the API client whose requests carry the session's bearer token.
func (m *Manager) Client() *api.Client { return m.api }

// IsAuthenticated reports whether a token is present and unexpired now. It performs no I/O.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Valid(m.clock.Now())
}

// State returns the lifecycle state. An installed session past its expiry reports StateUnauthenticated.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAuthenticated && !m.session.Valid(m.clock.Now()) {
		return StateUnauthenticated
	}
	return m.state
}

// Current returns a copy of the session if it is valid.
func (m *Manager) Current() (*domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.session.Valid(m.clock.Now()) {
		return nil, false
	}
	cp := *m.session
	return &cp, true
}

// NextRefresh returns when the refresh task is armed to run.
func (m *Manager) NextRefresh() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scope == nil || m.scope.timer == nil {
		return time.Time{}, false
	}
	return m.scope.at, true
}

// Close cancels the refresh task. The persisted session is kept for the next Restore.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.scope.release()
	m.scope = nil
	return nil
}

// snapshot returns the token to attach and the generation it belongs to.
func (m *Manager) snapshot() (string, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return "", m.gen
	}
	return m.session.Token, m.gen
}

// install persists s when persist is set, then makes it the current session and arms the refresh task.
func (m *Manager) install(ctx context.Context, s *domain.Session, persist bool) error {
	return m.installAt(ctx, s, persist, 0, false)
}

// installIf installs s only while generation gen is still current. A session cleared or
// replaced in the meantime is left alone and errStaleGeneration is returned without persisting.
func (m *Manager) installIf(ctx context.Context, s *domain.Session, gen uint64) error {
	return m.installAt(ctx, s, true, gen, true)
}

func (m *Manager) installAt(ctx context.Context, s *domain.Session, persist bool, gen uint64, checkGen bool) error {
	m.ioMu.Lock()
	defer m.ioMu.Unlock()

	m.mu.Lock()
	closed := m.closed
	stale := checkGen && m.gen != gen
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if stale {
		return errStaleGeneration
	}
	if persist {
		if err := m.repo.Save(ctx, s); err != nil {
			return fmt.Errorf("session: save: %w", err)
		}
	}

	m.mu.Lock()
	m.gen++
	m.session = s
	m.state = StateAuthenticated
	m.scope.release()
	m.scope = m.armLocked(s, m.gen)
	m.mu.Unlock()

	m.metrics.SetAuthenticated(true)
	return nil
}

// armLocked creates the scope for session s and arms its refresh timer if the refresh time is in the future.
func (m *Manager) armLocked(s *domain.Session, gen uint64) *scope {
	ctx, cancel := context.WithCancel(context.Background())
	sc := &scope{ctx: ctx, cancel: cancel}
	at := s.RefreshAt(m.lead)
	d := at.Sub(m.clock.Now())
	if d <= 0 {
		m.logger.Debug().Time("refresh_at", at).Msg("session: refresh time already passed, timer not armed")
		return sc
	}
	sc.at = at
	sc.timer = m.clock.AfterFunc(d, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := m.refresh(ctx, gen); err != nil {
			m.logger.Info().Err(err).Msg("session: scheduled refresh ended the session")
		}
	})
	return sc
}

// clearLocked drops the in-memory session and its scope. The caller persists the change.
func (m *Manager) clearLocked() {
	m.gen++
	m.session = nil
	m.state = StateUnauthenticated
	m.scope.release()
	m.scope = nil
}

// expire ends the session of generation gen: clears memory and storage and redirects to login once.
// It does nothing when the session has already changed.
func (m *Manager) expire(gen uint64, eventType string, cause error) bool {
	m.ioMu.Lock()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.ioMu.Unlock()
		return false
	}
	var userID string
	if m.session != nil {
		userID = m.session.User.ID
	}
	m.clearLocked()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	clearErr := m.repo.Clear(ctx)
	cancel()
	m.ioMu.Unlock()

	if clearErr != nil {
		m.logger.Warn().Err(clearErr).Msg("session: clear storage on expiry failed")
	}
	m.metrics.SetAuthenticated(false)
	m.metrics.Redirect()
	ev := m.logger.Info().Str("reason", eventType)
	if cause != nil {
		ev = ev.AnErr("cause", cause)
	}
	ev.Msg("session: ended, redirecting to login")
	m.emit(eventType, userID, nil)
	m.redirector.Redirect(m.loginURL)
	return true
}

func (m *Manager) emit(eventType, userID string, metadata []byte) {
	if m.emitter == nil {
		return
	}
	telemetry.EmitAsync(m.emitter, &telemetry.Event{
		UserID:    userID,
		EventType: eventType,
		Source:    m.source,
		Metadata:  metadata,
		CreatedAt: m.clock.Now().UTC(),
	})
}

func (m *Manager) isExempt(path string) bool {
	for _, p := range m.exempt {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}
