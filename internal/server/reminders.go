package server

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"remindme/internal/recurrence"
	"remindme/internal/reminder"
	"remindme/internal/server/middleware"
)

type createReminderRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	RemindAt    string          `json:"remind_at"`
	Timezone    string          `json:"timezone"`
	Recurrence  recurrence.Code `json:"recurrence"`
}

// reminderStore keeps reminders per user in memory.
type reminderStore struct {
	mu     sync.RWMutex
	byUser map[string][]reminder.Reminder
	now    func() time.Time
}

func newReminderStore(now func() time.Time) *reminderStore {
	return &reminderStore{byUser: make(map[string][]reminder.Reminder), now: now}
}

func (s *reminderStore) list(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	s.mu.RLock()
	out := make([]reminder.Reminder, len(s.byUser[userID]))
	copy(out, s.byUser[userID])
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RemindAt.Before(out[j].RemindAt) })
	c.JSON(http.StatusOK, out)
}

func (s *reminderStore) create(c *gin.Context) {
	var req createReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" || utf8.RuneCountInString(title) > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title must be 1 to 200 characters"})
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone"})
		return
	}
	remindAt, err := time.Parse(time.RFC3339, req.RemindAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "remind_at must be an RFC 3339 timestamp"})
		return
	}
	if !remindAt.After(s.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "remind_at must be in the future"})
		return
	}

	userID, _ := middleware.GetUserID(c.Request.Context())
	r := reminder.Reminder{
		ID:          uuid.New().String(),
		Title:       title,
		Description: req.Description,
		RemindAt:    remindAt,
		Timezone:    req.Timezone,
		Recurrence:  req.Recurrence,
		CreatedAt:   s.now().UTC(),
	}
	s.mu.Lock()
	s.byUser[userID] = append(s.byUser[userID], r)
	s.mu.Unlock()
	c.JSON(http.StatusCreated, r)
}
