// Package reminder is the client for the backend's reminders endpoints.
package reminder

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"remindme/internal/api"
	"remindme/internal/recurrence"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
)

// Reminder is a reminder as returned by the backend.
type Reminder struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	RemindAt    time.Time       `json:"remind_at"`
	Timezone    string          `json:"timezone"`
	Recurrence  recurrence.Code `json:"recurrence"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

// Input holds the fields of the reminder creation wizard. An empty Timezone means UTC.
type Input struct {
	Title       string
	Description string
	RemindAt    time.Time
	Timezone    string
	Recurrence  recurrence.Code
}

type createRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	RemindAt    string          `json:"remind_at"`
	Timezone    string          `json:"timezone"`
	Recurrence  recurrence.Code `json:"recurrence"`
}

// Service creates and lists reminders through an authenticated api.Client.
type Service struct {
	client *api.Client
	now    func() time.Time
}

// NewService returns a Service. now defaults to time.Now.
func NewService(client *api.Client, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{client: client, now: now}
}

// validate checks in and returns the normalized request.
func (s *Service) validate(in Input) (*createRequest, error) {
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return nil, api.Invalid("title", "is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		return nil, api.Invalid("title", "is too long")
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return nil, api.Invalid("description", "is too long")
	}
	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, api.Invalid("timezone", "is not a known IANA time zone")
	}
	if in.RemindAt.IsZero() {
		return nil, api.Invalid("remind_at", "is required")
	}
	if !in.RemindAt.After(s.now()) {
		return nil, api.Invalid("remind_at", "must be in the future")
	}
	if !in.Recurrence.Valid() {
		return nil, api.Invalid("recurrence", "is not a known recurrence")
	}
	return &createRequest{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		RemindAt:    in.RemindAt.In(loc).Format(time.RFC3339),
		Timezone:    tz,
		Recurrence:  in.Recurrence,
	}, nil
}

// Create validates in and creates the reminder.
func (s *Service) Create(ctx context.Context, in Input) (*Reminder, error) {
	req, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	var out Reminder
	if err := s.client.Do(ctx, http.MethodPost, api.PathReminders, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the user's reminders.
func (s *Service) List(ctx context.Context) ([]Reminder, error) {
	var out []Reminder
	if err := s.client.Do(ctx, http.MethodGet, api.PathReminders, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
