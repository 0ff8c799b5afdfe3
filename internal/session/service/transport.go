package service

import (
	"io"
	"net/http"

	"remindme/internal/api"
)

// transport attaches the bearer token and applies the 401 policy.
type transport struct {
	m    *Manager
	base http.RoundTripper
}

// Transport returns the RoundTripper used by Client, wrapping base. Use it to build other
// http.Clients that must carry the session.
func (m *Manager) Transport() http.RoundTripper {
	return m.api.Transport()
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, gen := t.m.snapshot()
	resp, err := t.send(req, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || t.m.isExempt(req.URL.Path) {
		return resp, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()

	next, err := t.m.handleUnauthorized(req.Context(), gen)
	if err != nil {
		return nil, err
	}
	retry := req
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, api.ErrSessionExpired
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry = req.Clone(req.Context())
		retry.Body = body
	}
	t.m.logger.Debug().Str("path", req.URL.Path).Msg("session: retrying request with current token")
	return t.send(retry, next.Token)
}

// send clones req so the caller's request is never modified, and attaches token when set.
func (t *transport) send(req *http.Request, token string) (*http.Response, error) {
	if token == "" {
		return t.base.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(out)
}
