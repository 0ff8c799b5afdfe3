package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"remindme/internal/api"
	"remindme/internal/recurrence"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestCreate_Validation(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()
	s := NewService(api.NewClient(srv.URL), clock)

	valid := Input{Title: "Pay rent", RemindAt: now.Add(time.Hour), Recurrence: recurrence.Monthly}
	testCases := []struct {
		name   string
		mutate func(*Input)
		field  string
	}{
		{"missing title", func(in *Input) { in.Title = "  " }, "title"},
		{"long title", func(in *Input) { in.Title = strings.Repeat("x", 201) }, "title"},
		{"long description", func(in *Input) { in.Description = strings.Repeat("x", 2001) }, "description"},
		{"bad timezone", func(in *Input) { in.Timezone = "Nowhere/Land" }, "timezone"},
		{"missing time", func(in *Input) { in.RemindAt = time.Time{} }, "remind_at"},
		{"past time", func(in *Input) { in.RemindAt = now }, "remind_at"},
		{"bad recurrence", func(in *Input) { in.Recurrence = 99 }, "recurrence"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := s.Create(context.Background(), in)
			var ve *api.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Errorf("Create = %v, want ValidationError on %q", err, tc.field)
			}
		})
	}
	if hits != 0 {
		t.Errorf("backend hit %d times, want 0", hits)
	}
}

func TestCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != api.PathReminders {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["title"] != "Pay rent" || body["timezone"] != "Europe/Paris" {
			t.Errorf("body = %v", body)
		}
		if body["remind_at"] != "2025-03-01T14:00:00+01:00" {
			t.Errorf("remind_at = %v, want local RFC 3339", body["remind_at"])
		}
		if body["recurrence"] != float64(2) {
			t.Errorf("recurrence = %v, want 2", body["recurrence"])
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"r1","title":"Pay rent","remind_at":"2025-03-01T14:00:00+01:00","timezone":"Europe/Paris","recurrence":"MONTHLY"}`))
	}))
	defer srv.Close()

	s := NewService(api.NewClient(srv.URL), clock)
	r, err := s.Create(context.Background(), Input{
		Title: " Pay rent ", RemindAt: now.Add(time.Hour), Timezone: "Europe/Paris", Recurrence: recurrence.Monthly,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID != "r1" || r.Recurrence != recurrence.Monthly {
		t.Errorf("reminder = %+v", r)
	}
	if !r.RemindAt.Equal(now.Add(time.Hour)) {
		t.Errorf("RemindAt = %v", r.RemindAt)
	}
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"r1","title":"a","remind_at":"2025-03-02T00:00:00Z","timezone":"UTC","recurrence":0},
			{"id":"r2","title":"b","remind_at":"2025-03-03T00:00:00Z","timezone":"UTC","recurrence":"WEEKEND"}]`))
	}))
	defer srv.Close()

	list, err := NewService(api.NewClient(srv.URL), nil).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Recurrence != recurrence.Once || list[1].Recurrence != recurrence.Weekend {
		t.Errorf("list = %+v", list)
	}
}

func TestList_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	_, err := NewService(api.NewClient(srv.URL), nil).List(context.Background())
	var se *api.StatusError
	if !errors.As(err, &se) {
		t.Errorf("List = %v, want *api.StatusError", err)
	}
}
