package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"remindme/internal/apikey"
	"remindme/internal/server/middleware"
)

const keySecretPrefix = "rmk_"

type storedKey struct {
	key    apikey.Key
	userID string
}

// keyStore keeps API keys in memory. Secrets are returned once and never stored.
type keyStore struct {
	mu   sync.RWMutex
	keys map[string]*storedKey
	now  func() time.Time
}

func newKeyStore(now func() time.Time) *keyStore {
	return &keyStore{keys: make(map[string]*storedKey), now: now}
}

func (s *keyStore) list(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	s.mu.RLock()
	out := make([]apikey.Key, 0)
	for _, k := range s.keys {
		if k.userID == userID {
			out = append(out, k.key)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	c.JSON(http.StatusOK, out)
}

func (s *keyStore) create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must be 1 to 64 characters"})
		return
	}
	secret, err := generateSecret()
	if err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("keys: generate secret")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	userID, _ := middleware.GetUserID(c.Request.Context())
	k := &storedKey{
		key: apikey.Key{
			ID:        uuid.New().String(),
			Name:      name,
			Prefix:    secret[:len(keySecretPrefix)+6],
			CreatedAt: s.now().UTC(),
		},
		userID: userID,
	}
	s.mu.Lock()
	s.keys[k.key.ID] = k
	s.mu.Unlock()
	c.JSON(http.StatusCreated, apikey.Created{ID: k.key.ID, Name: name, Secret: secret, CreatedAt: k.key.CreatedAt})
}

// revoke deletes a key owned by the caller. Keys of other users are reported as not found.
func (s *keyStore) revoke(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	id := c.Param("id")
	s.mu.Lock()
	k, ok := s.keys[id]
	if ok && k.userID == userID {
		delete(s.keys, id)
	}
	s.mu.Unlock()
	if !ok || k.userID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func generateSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return keySecretPrefix + hex.EncodeToString(b), nil
}
