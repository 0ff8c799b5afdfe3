package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"remindme/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthenticator struct {
	tokens map[string]string // token -> user id
	err    error
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, token string) (*security.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	userID, ok := f.tokens[token]
	if !ok {
		return nil, security.ErrInvalidToken
	}
	return &security.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}, nil
}

func newAuthRouter(a Authenticator) *gin.Engine {
	r := gin.New()
	r.GET("/protected", Auth(a), func(c *gin.Context) {
		userID, _ := GetUserID(c.Request.Context())
		token, _ := GetToken(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "token": token})
	})
	return r
}

func TestAuth(t *testing.T) {
	a := &fakeAuthenticator{tokens: map[string]string{"good": "u1"}}
	testCases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
		{"case insensitive scheme", "bearer good", http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			newAuthRouter(a).ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantStatus == http.StatusUnauthorized && w.Body.String() != `{"error":"missing or invalid authorization"}` {
				t.Errorf("body = %s", w.Body.String())
			}
			if tc.wantStatus == http.StatusOK && w.Body.String() != `{"token":"good","user_id":"u1"}` {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestAuth_AuthenticatorFailure(t *testing.T) {
	a := &fakeAuthenticator{err: errors.New("store down")}
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	newAuthRouter(a).ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestExtractBearer(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"Bearer abc", "abc"},
		{"BEARER abc", "abc"},
		{"  Bearer   abc  ", "abc"},
		{"Bearer", ""},
		{"Token abc", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := extractBearer(tc.in); got != tc.want {
			t.Errorf("extractBearer(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID on empty context should be false")
	}
	if _, ok := GetToken(ctx); ok {
		t.Error("GetToken on empty context should be false")
	}
	ctx = WithIdentity(ctx, "u1", "tok")
	if v, ok := GetUserID(ctx); !ok || v != "u1" {
		t.Errorf("GetUserID = %q, %v", v, ok)
	}
	if v, ok := GetToken(ctx); !ok || v != "tok" {
		t.Errorf("GetToken = %q, %v", v, ok)
	}
}
