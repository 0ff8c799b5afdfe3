package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"remindme/internal/security"
	"remindme/internal/storage"
	userdomain "remindme/internal/user/domain"
	"remindme/internal/verification"
)

// Sentinel errors for auth service; handler maps them to HTTP status codes.
var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrNotVerified            = errors.New("email not verified")
	ErrInvalidCode            = errors.New("invalid or expired verification code")
)

// ErrInvalidToken is security.ErrInvalidToken so HTTP middleware can map it without importing this package.
var ErrInvalidToken = security.ErrInvalidToken

const revokedKeyPrefix = "revoked:"

// AuthResult holds the outcome of Login, Verify or Refresh.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *userdomain.User
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	MarkVerified(ctx context.Context, userID string) error
}

// AuthService implements register, email verification, login, refresh and logout for the development backend.
// Revoked tokens are remembered by hash in revoked until they would have expired anyway.
type AuthService struct {
	userRepo    UserRepo
	codes       verification.Store
	revoked     storage.Store
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	rememberTTL time.Duration
	codeTTL     time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewAuthService returns an AuthService with the given dependencies.
// rememberTTL is the token lifetime for logins with remember_me; zero means the provider's TTL.
func NewAuthService(
	userRepo UserRepo,
	codes verification.Store,
	revoked storage.Store,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	rememberTTL time.Duration,
	logger zerolog.Logger,
) *AuthService {
	if rememberTTL <= 0 {
		rememberTTL = tokens.TTL()
	}
	return &AuthService{
		userRepo:    userRepo,
		codes:       codes,
		revoked:     revoked,
		hasher:      hasher,
		tokens:      tokens,
		rememberTTL: rememberTTL,
		codeTTL:     verification.DefaultTTL,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

// Register creates an unverified user and issues a verification code for the email.
// The code is logged and kept for GET /dev/verification-code; no mail is sent.
func (s *AuthService) Register(ctx context.Context, email, username, password, timezone string) (*userdomain.User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	timezone = strings.TrimSpace(timezone)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidArgument, timezone)
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Timezone:     timezone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.issueCode(ctx, email); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueCode(ctx context.Context, email string) error {
	code, err := verification.GenerateCode()
	if err != nil {
		return err
	}
	s.codes.Put(ctx, email, code, s.now().Add(s.codeTTL))
	s.logger.Info().Str("email", email).Str("code", code).Msg("verification code issued")
	return nil
}

// Verify consumes the verification code, marks the user verified and signs them in.
func (s *AuthService) Verify(ctx context.Context, email, code string) (*AuthResult, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, ErrInvalidCode
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.codes.Consume(ctx, email, code) {
		return nil, ErrInvalidCode
	}
	if err := s.userRepo.MarkVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	user.Verified = true
	return s.issue(user, s.tokens)
}

// Login authenticates with email and password and returns a token.
// rememberMe selects the longer token lifetime.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, ErrNotVerified
	}
	tokens := s.tokens
	if rememberMe {
		tokens = tokens.WithTTL(s.rememberTTL)
	}
	return s.issue(user, tokens)
}

// Refresh exchanges a valid token for a new one with a fresh lifetime and revokes the old one.
func (s *AuthService) Refresh(ctx context.Context, token string) (*AuthResult, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	res, err := s.issue(user, s.tokens)
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, token, claims); err != nil {
		return nil, err
	}
	return res, nil
}

// Logout revokes token. An invalid or already revoked token is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil
	}
	return s.revoke(ctx, token, claims)
}

// Authenticate validates token and checks that it has not been revoked.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*security.Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.tokens.WithClock(s.now).Validate(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	key := revokedKeyPrefix + security.HashToken(token)
	vals, err := s.revoked.GetMany(ctx, key)
	if err != nil {
		return nil, err
	}
	if _, ok := vals[key]; ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) revoke(ctx context.Context, token string, claims *security.Claims) error {
	var until string
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}
	return s.revoked.SetMany(ctx, map[string]string{revokedKeyPrefix + security.HashToken(token): until})
}

func (s *AuthService) issue(user *userdomain.User, tokens *security.TokenProvider) (*AuthResult, error) {
	token, _, expiresAt, err := tokens.WithClock(s.now).Issue(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return fmt.Errorf("%w: invalid email format", ErrInvalidArgument)
	}
	return nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 32 {
		return fmt.Errorf("%w: username must be 3 to 32 characters", ErrInvalidArgument)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidArgument)
	}
	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasLetter {
		return fmt.Errorf("%w: password must contain at least one letter", ErrInvalidArgument)
	}
	if !hasNumber {
		return fmt.Errorf("%w: password must contain at least one number", ErrInvalidArgument)
	}
	return nil
}
