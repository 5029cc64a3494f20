package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/auth"
	"github.com/smukkama/sentinel-server/internal/database"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserStore is the persistence used by AuthService
type UserStore interface {
	CreateUser(ctx context.Context, u *database.User) error
	GetUserByEmail(ctx context.Context, email string) (*database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*database.User, error)
	InsertAuditLog(ctx context.Context, entry *database.AuditLog) error
}

// TokenRevoker denylists token ids
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

type LoginInput struct {
	Email    string
	Password string
}

// Session is an authenticated user with a freshly issued token
type Session struct {
	User   *database.User
	Token  string
	Claims *auth.Claims
}

// AuthService handles account creation and session tokens
type AuthService struct {
	users      UserStore
	tokens     *auth.TokenService
	revoker    TokenRevoker
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

func NewAuthService(users UserStore, tokens *auth.TokenService, revoker TokenRevoker, bcryptCost int, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		revoker:    revoker,
		bcryptCost: bcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an account and signs the user in
func (s *AuthService) Signup(ctx context.Context, in SignupInput, ip string) (*Session, error) {
	email := normalizeEmail(in.Email)

	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := in.Role
	if role == "" {
		role = database.RoleUser
	}

	user := &database.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, database.AuditUserSignup, ip, map[string]string{"email": user.Email})
	return session, nil
}

// Login verifies credentials and issues a token
func (s *AuthService) Login(ctx context.Context, in LoginInput, ip string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(in.Email))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, database.AuditUserLogin, ip, map[string]string{"email": user.Email})
	return session, nil
}

// Logout revokes the token described by claims for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims, ip string) error {
	if claims == nil {
		return nil
	}

	if err := s.revoker.Revoke(ctx, claims.ID, claims.TTL(s.now())); err != nil {
		return err
	}

	if userID, err := claims.UserUUID(); err == nil {
		s.audit(ctx, userID, database.AuditUserLogout, ip, nil)
	}
	return nil
}

// CurrentUser loads the account behind a session
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*database.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *AuthService) issue(user *database.User) (*Session, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, Claims: claims}, nil
}

// audit failures are logged and never fail the request
func (s *AuthService) audit(ctx context.Context, userID uuid.UUID, action, ip string, details map[string]string) {
	entry := &database.AuditLog{
		UserID:    &userID,
		Action:    action,
		IPAddress: ip,
	}
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			entry.Details = string(data)
		}
	}

	if err := s.users.InsertAuditLog(ctx, entry); err != nil {
		s.logger.Warn("Failed to write audit log",
			zap.String("action", action),
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}
