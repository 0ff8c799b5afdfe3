// Package apikey is the client for the backend's API key endpoints.
package apikey

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"remindme/internal/api"
)

const maxNameLength = 64

// Key is an API key as listed by the backend. The secret is only returned once, on creation.
type Key struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Prefix    string     `json:"prefix,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used_at,omitempty"`
}

// Created is the response to a create call. Secret is shown to the user once.
type Created struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Secret    string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// Service manages API keys through an authenticated api.Client.
type Service struct {
	client *api.Client
}

func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

func (s *Service) List(ctx context.Context) ([]Key, error) {
	var out []Key
	if err := s.client.Do(ctx, http.MethodGet, api.PathKeys, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create makes a new key called name.
func (s *Service) Create(ctx context.Context, name string) (*Created, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, api.Invalid("name", "is required")
	case len(name) > maxNameLength:
		return nil, api.Invalid("name", "is too long")
	}
	var out Created
	if err := s.client.Do(ctx, http.MethodPost, api.PathKeys, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Revoke deletes the key with the given id.
func (s *Service) Revoke(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return api.Invalid("id", "is required")
	}
	return s.client.Do(ctx, http.MethodDelete, api.PathKeys+"/"+url.PathEscape(id), nil, nil)
}
