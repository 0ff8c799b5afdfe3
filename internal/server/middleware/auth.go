package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"remindme/internal/security"
)

const bearerPrefix = "bearer "

// Authenticator validates a bearer token. The identity auth service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*security.Claims, error)
}

// ErrUnauthenticated is the body text of every 401 written by Auth.
var ErrUnauthenticated = errors.New("missing or invalid authorization")

// Auth returns a middleware that validates the Bearer token from the Authorization header
// and sets user_id and token in the request context. Requests without a valid token get
// 401 with a JSON error body, which clients treat as session expiry. Other Authenticator
// failures are 500.
func Auth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
			return
		}
		claims, err := a.Authenticate(c.Request.Context(), token)
		if errors.Is(err, security.ErrInvalidToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
			return
		}
		if err != nil {
			log.Ctx(c.Request.Context()).Error().Err(err).Msg("auth: authenticate failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), claims.Subject, token))
		c.Next()
	}
}

// BearerToken returns the bearer token of the request, or "" if missing or malformed.
func BearerToken(c *gin.Context) string {
	return extractBearer(c.GetHeader("Authorization"))
}

// extractBearer returns the token of an "Authorization: Bearer <token>" value, or "" if missing or malformed.
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
