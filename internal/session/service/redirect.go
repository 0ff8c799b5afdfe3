package service

import "github.com/rs/zerolog"

// Redirector sends the user to the login screen when the session ends.
type Redirector interface {
	Redirect(loginURL string)
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(loginURL string)

func (f RedirectFunc) Redirect(loginURL string) { f(loginURL) }

type logRedirector struct {
	logger zerolog.Logger
}

func (r logRedirector) Redirect(loginURL string) {
	r.logger.Warn().Str("login_url", loginURL).Msg("session: expired, please log in again")
}
