package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"remindme/internal/config"
	"remindme/internal/logging"
	"remindme/internal/session/repository"
	"remindme/internal/session/service"
	"remindme/internal/storage"
	"remindme/internal/telemetry"
	"remindme/internal/telemetry/loki"
	"remindme/internal/telemetry/metrics"
	otelsetup "remindme/internal/telemetry/otel"
	"remindme/internal/telemetry/producer"
)

// cliDrainDuration gives async session events a moment to reach remote sinks before exit.
const cliDrainDuration = time.Second

// app holds what a single remindctl invocation needs. Fields set before setup are kept (tests inject them).
type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	cfg       *config.Config
	store     storage.Store
	transport http.RoundTripper
	clock     clockwork.Clock
	registry  *prometheus.Registry

	logger  zerolog.Logger
	manager *service.Manager
	closers []func(context.Context) error
	drain   bool

	endOnce sync.Once
	ended   chan struct{}
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		ended:  make(chan struct{}),
	}
}

// setup loads config, opens the session store and telemetry sinks, and restores any persisted session.
func (a *app) setup(ctx context.Context) error {
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	cfg := a.cfg
	a.logger = logging.Component(logging.Setup(cfg.LogLevel, cfg.LogFormat, a.errOut), "remindctl")

	if a.store == nil {
		st, err := storage.Open(ctx, cfg)
		if err != nil {
			return err
		}
		a.store = st
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
	}

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	a.closers = append(a.closers, providers.Shutdown)

	emitter := telemetry.Multi{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	if p := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic); p != nil {
		emitter = append(emitter, p)
		a.closers = append(a.closers, func(context.Context) error { return p.Close() })
		a.drain = true
	}
	if c := loki.NewClient(cfg.LokiURL); c != nil {
		emitter = append(emitter, c)
		a.drain = true
	}
	if strings.TrimSpace(cfg.OTLPEndpoint) != "" {
		a.drain = true
	}

	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	logger := a.logger
	m, err := service.New(service.Options{
		BaseURL:     cfg.APIBaseURL,
		Transport:   a.transport,
		Timeout:     cfg.Timeout(),
		Repository:  repository.NewKVRepository(a.store),
		Clock:       a.clock,
		RefreshLead: cfg.Lead(),
		RefreshPath: cfg.RefreshPath,
		Redirector:  service.RedirectFunc(a.redirect),
		LoginURL:    cfg.LoginURL,
		Logger:      &logger,
		Emitter:     emitter,
		Metrics:     metrics.NewSession(a.registry),
		Tracer:      providers.Tracer("remindme/api"),
		Source:      "remindctl",
	})
	if err != nil {
		return err
	}
	a.manager = m
	a.closers = append(a.closers, func(context.Context) error { return m.Close() })

	if _, err := m.Restore(ctx); err != nil {
		return err
	}
	return nil
}

// teardown closes everything setup opened, newest first.
func (a *app) teardown() error {
	if a.drain {
		time.Sleep(cliDrainDuration)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// redirect is the CLI's login screen: it tells the user to sign in again.
func (a *app) redirect(loginURL string) {
	a.endOnce.Do(func() {
		fmt.Fprintf(a.errOut, "Your session has ended. Run `remindctl login` to sign in again (%s).\n", loginURL)
		close(a.ended)
	})
}

// prompt reads one line from the input when value is empty.
func (a *app) prompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) requireSession() error {
	if !a.manager.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

var errNotLoggedIn = errors.New("not logged in; run `remindctl login` first")
