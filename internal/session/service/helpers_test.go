package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"remindme/internal/session/domain"
	"remindme/internal/session/repository"
	"remindme/internal/storage"
	"remindme/internal/telemetry"
	"remindme/internal/telemetry/metrics"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// backend is a fake reminders backend. Handlers can be replaced per test.
type backend struct {
	srv  *httptest.Server
	mux  *http.ServeMux
	mu   sync.Mutex
	hits map[string]int
	auth map[string][]string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{mux: http.NewServeMux(), hits: map[string]int{}, auth: map[string][]string{}}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.URL.Path]++
		b.auth[r.URL.Path] = append(b.auth[r.URL.Path], r.Header.Get("Authorization"))
		b.mu.Unlock()
		b.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) handle(path string, h http.HandlerFunc) { b.mux.HandleFunc(path, h) }

func (b *backend) hitCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *backend) lastAuth(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.auth[path]
	if len(a) == 0 {
		return ""
	}
	return a[len(a)-1]
}

// loginReturns makes /api/auth/login answer with token and an expiry ttl after now.
func (b *backend) loginReturns(token string, expiresAt time.Time) {
	b.handle("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "u1", "email": "a@b.com", "username": "ann", "token": token,
			"expires_at": expiresAt.Format(time.RFC3339), "message": "ok",
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type redirectCounter struct {
	n    atomic.Int32
	last atomic.Value
}

func (r *redirectCounter) Redirect(loginURL string) {
	r.n.Add(1)
	r.last.Store(loginURL)
}

func (r *redirectCounter) count() int { return int(r.n.Load()) }

// recordingRefresher returns next (or err) and reports each call on calls.
// With ignoreCtx it keeps waiting for release after its context is cancelled.
type recordingRefresher struct {
	calls     chan domain.Session
	release   chan struct{}
	ignoreCtx bool
	next      func(domain.Session) *domain.Session
	err       error
}

func newRecordingRefresher() *recordingRefresher {
	return &recordingRefresher{calls: make(chan domain.Session, 8)}
}

func (r *recordingRefresher) Refresh(ctx context.Context, cur domain.Session) (*domain.Session, error) {
	r.calls <- cur
	if r.release != nil && r.ignoreCtx {
		<-r.release
	} else if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.next(cur), nil
}

type fakeEmitter struct {
	events chan *telemetry.Event
}

func (f *fakeEmitter) Emit(_ context.Context, e *telemetry.Event) error {
	f.events <- e
	return nil
}

type harness struct {
	m         *Manager
	clock     *clockwork.FakeClock
	store     *storage.MemoryStore
	redirects *redirectCounter
	metrics   *metrics.Session
	backend   *backend
}

func newHarness(t *testing.T, b *backend, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		clock:     clockwork.NewFakeClockAt(testNow),
		store:     storage.NewMemoryStore(),
		redirects: &redirectCounter{},
		metrics:   metrics.NewSession(prometheus.NewRegistry()),
		backend:   b,
	}
	opts := Options{
		BaseURL:    b.srv.URL,
		Repository: repository.NewKVRepository(h.store),
		Clock:      h.clock,
		Redirector: h.redirects,
		Metrics:    h.metrics,
	}
	if mutate != nil {
		mutate(&opts)
	}
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	h.m = m
	return h
}

func (h *harness) login(t *testing.T) *domain.Session {
	t.Helper()
	s, err := h.m.Login(context.Background(), Credentials{Email: "a@b.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return s
}

func (h *harness) storedKeys(t *testing.T) map[string]string {
	t.Helper()
	vals, err := h.store.GetMany(context.Background(), domain.Keys...)
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	return vals
}

func (h *harness) waitForTimer(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("refresh timer was not armed: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// blockingRefresher answers with token "tok2" once release is closed, even after its scope is cancelled.
func blockingRefresher() *recordingRefresher {
	r := newRecordingRefresher()
	r.release = make(chan struct{})
	r.ignoreCtx = true
	r.next = func(cur domain.Session) *domain.Session {
		return &domain.Session{Token: "tok2", ExpiresAt: testNow.Add(2 * time.Hour), User: cur.User}
	}
	return r
}

// refreshInBackground runs Manager.Refresh and returns once r has been called.
func (h *harness) refreshInBackground(t *testing.T, r *recordingRefresher) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- h.m.Refresh(context.Background()) }()
	select {
	case <-r.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher was not called")
	}
	if got := h.m.State(); got != StateRefreshing {
		t.Fatalf("State = %v, want refreshing", got)
	}
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh did not return")
		return nil
	}
}
