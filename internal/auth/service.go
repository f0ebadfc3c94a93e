package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmptyUsername      = errors.New("username required")
	ErrWeakPassword       = fmt.Errorf("password too short (min %d)", MinPasswordLength)
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrSessionExpired     = errors.New("session expired")
)

// Session is what a successful login hands back to the HTTP layer.
type Session struct {
	UserID         string
	Username       string
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

type Service struct {
	users  store.UserStore
	tokens store.TokenStore
	jwt    *Tokens
	logger *slog.Logger
}

func NewService(users store.UserStore, tokens store.TokenStore, jwt *Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tokens: tokens, jwt: jwt, logger: logger}
}

func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CreateUser registers an account without opening a session. Used by the CLI.
func (s *Service) CreateUser(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrEmptyUsername
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	settings := core.DefaultSettings()
	settings.DisplayName = username
	id, err := s.users.CreateUser(ctx, store.User{Username: username, PasswordHash: hash, Settings: settings})
	if errors.Is(err, store.ErrConflict) {
		return "", ErrUsernameTaken
	}
	if err != nil {
		return "", err
	}
	s.logger.Info("User created", "owner_id", id)
	return id, nil
}

func (s *Service) Register(ctx context.Context, username, password, confirm string) (Session, error) {
	if password != confirm {
		return Session{}, ErrPasswordMismatch
	}
	id, err := s.CreateUser(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	return s.open(ctx, id, strings.TrimSpace(username))
}

func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.open(ctx, u.ID, u.Username)
}

// Refresh consumes a refresh token and returns a new session with a rotated token.
func (s *Service) Refresh(ctx context.Context, raw string) (Session, error) {
	if raw == "" {
		return Session{}, ErrSessionExpired
	}
	rt, err := s.tokens.ConsumeRefreshToken(ctx, HashToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, err
	}
	if !rt.ExpiresAt.After(s.jwt.now()) {
		return Session{}, ErrSessionExpired
	}
	u, err := s.users.UserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, err
	}
	return s.open(ctx, u.ID, u.Username)
}

// Logout invalidates the given refresh token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	_, err := s.tokens.ConsumeRefreshToken(ctx, HashToken(raw))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// Authenticate validates an access token and returns its claims.
func (s *Service) Authenticate(raw string) (*Claims, error) {
	return s.jwt.ParseAccess(raw)
}

// ChangePassword sets a new password and signs out every other session.
func (s *Service) ChangePassword(ctx context.Context, userID, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.tokens.RevokeUserTokens(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("Password changed", "owner_id", userID)
	return nil
}

// ResetPassword is the CLI path: look the user up by name and set the password.
func (s *Service) ResetPassword(ctx context.Context, username, password string) error {
	u, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return err
	}
	return s.ChangePassword(ctx, u.ID, password, password)
}

func (s *Service) Profile(ctx context.Context, userID string) (store.User, error) {
	return s.users.UserByID(ctx, userID)
}

func (s *Service) UpdateSettings(ctx context.Context, userID string, settings core.Settings) error {
	settings.DisplayName = strings.TrimSpace(settings.DisplayName)
	if settings.DisplayName == "" {
		return &core.ValidationError{Field: "display_name", Err: ErrEmptyUsername}
	}
	if !core.IsCurrency(settings.Currency) {
		return &core.ValidationError{Field: "currency", Err: errors.New("unsupported currency")}
	}
	return s.users.UpdateSettings(ctx, userID, settings)
}

func (s *Service) open(ctx context.Context, userID, username string) (Session, error) {
	access, accessExp, err := s.jwt.IssueAccess(userID, username)
	if err != nil {
		return Session{}, err
	}
	raw, hash, err := NewRefreshToken()
	if err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExp := s.jwt.now().Add(s.jwt.refreshTTL)
	if err := s.tokens.SaveRefreshToken(ctx, store.RefreshToken{Hash: hash, UserID: userID, ExpiresAt: refreshExp}); err != nil {
		return Session{}, err
	}
	return Session{
		UserID:         userID,
		Username:       username,
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   raw,
		RefreshExpires: refreshExp,
	}, nil
}
