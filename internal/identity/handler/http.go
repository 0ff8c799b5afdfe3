package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"remindme/internal/api"
	"remindme/internal/identity/service"
	"remindme/internal/server/middleware"
	"remindme/internal/verification"
)

// Handler serves the /api/auth endpoints of the development backend.
type Handler struct {
	auth  *service.AuthService
	codes verification.Store
}

// NewHandler returns a Handler. codes is only needed for the dev verification-code endpoint and may be nil.
func NewHandler(auth *service.AuthService, codes verification.Store) *Handler {
	return &Handler{auth: auth, codes: codes}
}

// RegisterRoutes registers the auth routes on rg. Register, login, verify and logout are public;
// refresh requires a valid bearer token. When the handler has a code store, GET /dev/verification-code
// is registered on dev.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc, dev *gin.RouterGroup) {
	rg.POST("/auth/register", h.Register)
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/verify", h.Verify)
	rg.POST("/auth/logout", h.Logout)
	rg.POST("/auth/refresh", requireAuth, h.Refresh)
	if dev != nil && h.codes != nil {
		dev.GET("/verification-code", h.VerificationCode)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req api.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.Email, req.Username, req.Password, req.Timezone)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.RegisterResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Message:  "Verification code sent to " + user.Email,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse(res, "Login successful"))
}

func (h *Handler) Verify(c *gin.Context) {
	var req api.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.auth.Verify(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse(res, "Email verified"))
}

// Logout revokes the bearer token if it is valid. A missing or invalid token still answers 204 so a client can clear its state.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.BearerToken(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Refresh(c *gin.Context) {
	token, _ := middleware.GetToken(c.Request.Context())
	res, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse(res, ""))
}

// VerificationCode returns the pending code for ?email= so the signup flow can be completed locally.
func (h *Handler) VerificationCode(c *gin.Context) {
	email := strings.TrimSpace(strings.ToLower(c.Query("email")))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	code, ok := h.codes.Get(c.Request.Context(), email)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": email, "code": code})
}

func authResponse(res *service.AuthResult, message string) api.AuthResponse {
	return api.AuthResponse{
		ID:        res.User.ID,
		Email:     res.User.Email,
		Username:  res.User.Username,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.UTC().Format(time.RFC3339),
		Message:   message,
	}
}

// writeError maps auth service errors to HTTP status codes with a JSON {"error": ...} body.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), service.ErrInvalidArgument.Error()+": ")})
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, service.ErrNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": "Email not verified"})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired verification code"})
	case errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
	default:
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("auth: request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
