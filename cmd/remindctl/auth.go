package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"remindme/internal/session/domain"
	"remindme/internal/session/service"
)

func newLoginCmd(a *app) *cobra.Command {
	var c service.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		var err error
		if c.Email, err = a.prompt(c.Email, "Email"); err != nil {
			return err
		}
		if c.Password, err = a.prompt(c.Password, "Password"); err != nil {
			return err
		}
		s, err := a.manager.Login(ctx, c)
		if err != nil {
			return err
		}
		printSignedIn(a, s)
		return nil
	})
	cmd.Flags().StringVar(&c.Email, "email", "", "account email")
	cmd.Flags().StringVar(&c.Password, "password", "", "account password (prompted when empty)")
	cmd.Flags().BoolVar(&c.RememberMe, "remember-me", false, "ask the backend for a long-lived session")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove it from storage",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		if err := a.manager.Logout(ctx); err != nil {
			return err
		}
		printf(a.out, "Logged out.\n")
		return nil
	})
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session without contacting the backend",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(context.Context, []string) error {
		s, ok := a.manager.Current()
		if !ok {
			printf(a.out, "Not logged in.\n")
			return nil
		}
		printf(a.out, "Logged in as %s <%s>\n", s.User.Username, s.User.Email)
		printf(a.out, "State:       %s\n", a.manager.State())
		printf(a.out, "Expires at:  %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
		if at, ok := a.manager.NextRefresh(); ok {
			printf(a.out, "Refresh at:  %s\n", at.Local().Format(time.RFC1123))
		}
		return nil
	})
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var r service.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account; a verification code is sent to the email",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		var err error
		if r.Email, err = a.prompt(r.Email, "Email"); err != nil {
			return err
		}
		if r.Username, err = a.prompt(r.Username, "Username"); err != nil {
			return err
		}
		if r.Password, err = a.prompt(r.Password, "Password"); err != nil {
			return err
		}
		resp, err := a.manager.Register(ctx, r)
		if err != nil {
			return err
		}
		if resp.Message != "" {
			printf(a.out, "%s\n", resp.Message)
		}
		printf(a.out, "Run `remindctl verify --email %s --code <code>` to finish.\n", resp.Email)
		return nil
	})
	cmd.Flags().StringVar(&r.Email, "email", "", "account email")
	cmd.Flags().StringVar(&r.Username, "username", "", "display name")
	cmd.Flags().StringVar(&r.Password, "password", "", "password, at least 8 characters (prompted when empty)")
	cmd.Flags().StringVar(&r.Timezone, "timezone", "", "IANA time zone, e.g. Europe/Berlin (default UTC)")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var email, code string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Confirm the email with the code from registration and sign in",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(a, func(ctx context.Context, _ []string) error {
		var err error
		if email, err = a.prompt(email, "Email"); err != nil {
			return err
		}
		if code, err = a.prompt(code, "Code"); err != nil {
			return err
		}
		s, err := a.manager.Verify(ctx, email, code)
		if err != nil {
			return err
		}
		printSignedIn(a, s)
		return nil
	})
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&code, "code", "", "verification code")
	return cmd
}

func printSignedIn(a *app, s *domain.Session) {
	printf(a.out, "Logged in as %s <%s>. Session expires %s.\n",
		s.User.Username, s.User.Email, s.ExpiresAt.Local().Format(time.RFC1123))
}
