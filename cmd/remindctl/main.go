// remindctl is the command-line client for the reminders backend.
// It keeps one session per user (SESSION_STORE, default ~/.remindme/session.json) and refreshes it
// before expiry while a long-running command such as watch is active.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"remindme/internal/api"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		if msg := userMessage(err); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "remindctl",
		Short:         "Manage reminders and API keys from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationOffline] == "true" {
				return nil
			}
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationOffline] == "true" {
				return nil
			}
			return a.teardown()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newRegisterCmd(a),
		newVerifyCmd(a),
		newRemindersCmd(a),
		newKeysCmd(a),
		newRecurrenceCmd(a),
		newWatchCmd(a),
	)
	return root
}

// annotationOffline marks commands that need neither config nor a session.
const annotationOffline = "offline"

// run executes a command body and releases the app even when the body fails,
// since cobra skips PersistentPostRunE on error.
func run(a *app, fn func(ctx context.Context, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd.Context(), args)
		if err != nil {
			if tdErr := a.teardown(); tdErr != nil {
				a.logger.Warn().Err(tdErr).Msg("remindctl: teardown")
			}
		}
		return err
	}
}

// userMessage formats err for the terminal. Session expiry prints nothing; the redirect already did.
func userMessage(err error) string {
	if errors.Is(err, api.ErrSessionExpired) {
		return ""
	}
	var (
		ve *api.ValidationError
		ae *api.AuthError
		se *api.StatusError
		ne *api.NetworkError
	)
	if errors.As(err, &ve) || errors.As(err, &ae) || errors.As(err, &se) || errors.As(err, &ne) {
		return api.UserMessage(err)
	}
	return "Error: " + err.Error()
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
