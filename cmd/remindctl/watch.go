package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"remindme/internal/api"
	"remindme/internal/telemetry/metrics"
)

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive in the foreground and serve session metrics on METRICS_ADDR",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		if interval <= 0 {
			interval = 30 * time.Second
		}

		var srv *http.Server
		if addr := a.cfg.MetricsAddr; addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(a.registry))
			srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				a.logger.Info().Str("addr", addr).Msg("watch: serving metrics")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error().Err(err).Msg("watch: metrics server")
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
		return a.watch(ctx, interval)
	})
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "how often to print the session state")
	return cmd
}

// watch reports the session state every interval until ctx is done or the session ends.
// Refreshes happen on the manager's own timer.
func (a *app) watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	a.report()
	for {
		select {
		case <-ctx.Done():
			printf(a.out, "Stopped.\n")
			return nil
		case <-a.ended:
			return errSessionEnded
		case <-ticker.C:
			a.report()
		}
	}
}

func (a *app) report() {
	s, ok := a.manager.Current()
	if !ok {
		printf(a.out, "%s  state=%s\n", time.Now().Format(time.TimeOnly), a.manager.State())
		return
	}
	next := "none"
	if at, ok := a.manager.NextRefresh(); ok {
		next = at.Local().Format(time.TimeOnly)
	}
	printf(a.out, "%s  state=%s user=%s expires=%s refresh=%s\n",
		time.Now().Format(time.TimeOnly), a.manager.State(), s.User.Username,
		s.ExpiresAt.Local().Format(time.TimeOnly), next)
}

// errSessionEnded exits non-zero without a second message; redirect already told the user.
var errSessionEnded = fmt.Errorf("watch: %w", api.ErrSessionExpired)
