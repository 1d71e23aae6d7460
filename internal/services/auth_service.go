package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/repository"
	"github.com/example/orderdesk/internal/utils"
)

// ResetTokenTTL is how long a password-reset token stays usable.
const ResetTokenTTL = time.Hour

const resetTokenBytes = 32

// Identity is the verified caller attached to a request.
type Identity struct {
	UserID uuid.UUID   `json:"user_id"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
}

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// RequireRole is the single authorization check every protected operation
// goes through. A nil identity means Authenticate never succeeded.
func RequireRole(id *Identity, role models.Role) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if id.Role != role {
		return ErrForbidden
	}
	return nil
}

// Mailer delivers password-reset tokens out of band.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// AuthConfig holds the token and password policy.
type AuthConfig struct {
	Secret            string
	TokenTTL          time.Duration
	RememberMeTTL     time.Duration
	MinPasswordLength int
}

// AuthService verifies identities and manages credentials.
type AuthService struct {
	users  repository.UserRepository
	mailer Mailer
	cfg    AuthConfig
	now    Clock
	log    *slog.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(users repository.UserRepository, mailer Mailer, cfg AuthConfig, log *slog.Logger) *AuthService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 6
	}
	return &AuthService{users: users, mailer: mailer, cfg: cfg, now: SystemClock, log: log}
}

// WithClock replaces the time source.
func (s *AuthService) WithClock(c Clock) *AuthService {
	s.now = c
	return s
}

// Authenticate verifies the Authorization header value "Bearer <jwt>".
func (s *AuthService) Authenticate(header string) (*Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrUnauthenticated
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, ErrInvalidToken
	}

	claims, err := utils.ParseToken(s.cfg.Secret, strings.TrimSpace(parts[1]), s.now())
	if err != nil {
		return nil, &Error{Kind: KindInvalidToken, Message: "invalid token", Err: err}
	}

	role := models.Role(claims.Role)
	if !role.Valid() {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID: uuid.MustParse(claims.UserID),
		Name:   claims.Name,
		Role:   role,
	}, nil
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates a regular user and signs them in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)

	fields := FieldErrors{}
	checkStruct(in, fields)
	if in.Password != "" && len(in.Password) < s.cfg.MinPasswordLength {
		// Alone it is a weak password; alongside other problems it is one
		// more field message.
		if len(fields) == 0 {
			return nil, "", s.weakPassword()
		}
		fields.Add("password", s.passwordRule())
	}
	if err := fields.Err(); err != nil {
		return nil, "", err
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, "", FieldErrors{"email": "is already registered"}.Err()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", internal("find user", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, "", internal("hash password", err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	user.CreatedAt = s.now()
	user.UpdatedAt = user.CreatedAt
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", FieldErrors{"email": "is already registered"}.Err()
		}
		return nil, "", internal("create user", err)
	}

	token, err := s.sign(user, false)
	if err != nil {
		return nil, "", err
	}

	s.log.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// IssueToken checks email and password and returns a signed access token.
// rememberMe selects the extended expiry window.
func (s *AuthService) IssueToken(ctx context.Context, email, password string, rememberMe bool) (*models.User, string, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", notFound("user")
		}
		return nil, "", internal("find user", err)
	}

	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.sign(user, rememberMe)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) sign(user *models.User, rememberMe bool) (string, error) {
	ttl := s.cfg.TokenTTL
	if rememberMe {
		ttl = s.cfg.RememberMeTTL
	}
	token, err := utils.GenerateToken(s.cfg.Secret, user.ID, user.Name, string(user.Role), s.now(), ttl)
	if err != nil {
		return "", internal("sign token", err)
	}
	return token, nil
}

// IssuePasswordResetToken stores a fresh single-use token on the user,
// replacing any earlier one, and returns it.
func (s *AuthService) IssuePasswordResetToken(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", notFound("user")
		}
		return "", internal("find user", err)
	}

	token, err := utils.SecureToken(resetTokenBytes)
	if err != nil {
		return "", internal("generate reset token", err)
	}

	now := s.now()
	if err := s.users.SetResetToken(ctx, user.ID, token, now.Add(ResetTokenTTL), now); err != nil {
		return "", internal("store reset token", err)
	}
	return token, nil
}

// RequestPasswordReset issues a token and mails it. A delivery failure is
// reported, but the stored token stays valid.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	token, err := s.IssuePasswordResetToken(ctx, email)
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, email, token); err != nil {
		s.log.Error("password reset delivery failed", "email", email, "error", err)
		return internal("deliver reset email", err)
	}
	return nil
}

// ConsumePasswordResetToken sets a new password if token is still valid.
// The password change and the token removal are one write.
func (s *AuthService) ConsumePasswordResetToken(ctx context.Context, token, newPassword string) error {
	now := s.now()

	if token == "" {
		return ErrInvalidOrExpiredToken
	}
	user, err := s.users.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return internal("find reset token", err)
	}
	if !user.ResetTokenUsable(now) {
		return ErrInvalidOrExpiredToken
	}

	if len(newPassword) < s.cfg.MinPasswordLength {
		return s.weakPassword()
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return internal("hash password", err)
	}

	ok, err := s.users.ConsumeResetToken(ctx, token, now, hash)
	if err != nil {
		return internal("reset password", err)
	}
	if !ok {
		return ErrInvalidOrExpiredToken
	}

	s.log.Info("password reset", "user_id", user.ID)
	return nil
}

func (s *AuthService) weakPassword() error {
	return &Error{
		Kind:    KindWeakPassword,
		Message: "password too short",
		Fields:  map[string]string{"password": s.passwordRule()},
	}
}

func (s *AuthService) passwordRule() string {
	return "must be at least " + strconv.Itoa(s.cfg.MinPasswordLength) + " characters"
}

// NormalizeEmail trims and lower-cases an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
