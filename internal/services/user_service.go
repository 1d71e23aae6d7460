package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/repository"
	"github.com/example/orderdesk/internal/utils"
)

// UserSummary is a user row in the admin listing.
type UserSummary struct {
	models.User
	OrderCount int64 `json:"order_count"`
}

// ProfileInput updates the caller's own profile.
type ProfileInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

// UserService manages accounts outside of authentication.
type UserService struct {
	users  repository.UserRepository
	orders repository.OrderRepository
	cfg    AuthConfig
	now    Clock
	log    *slog.Logger
}

// NewUserService constructs a UserService. cfg supplies the password policy
// used by EnsureAdmin.
func NewUserService(store *repository.Store, cfg AuthConfig, log *slog.Logger) *UserService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 6
	}
	return &UserService{users: store.Users, orders: store.Orders, cfg: cfg, now: SystemClock, log: log}
}

// WithClock replaces the time source.
func (s *UserService) WithClock(c Clock) *UserService {
	s.now = c
	return s
}

// Profile returns the caller's account.
func (s *UserService) Profile(ctx context.Context, caller *Identity) (*models.User, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	return s.find(ctx, caller.UserID)
}

// UpdateProfile changes the caller's display name.
func (s *UserService) UpdateProfile(ctx context.Context, caller *Identity, in ProfileInput) (*models.User, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	in.Name = strings.TrimSpace(in.Name)
	fields := FieldErrors{}
	checkStruct(in, fields)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	if err := s.users.UpdateName(ctx, caller.UserID, in.Name, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, internal("update profile", err)
	}
	return s.find(ctx, caller.UserID)
}

// ListUsers returns accounts with their order counts. Admin only.
func (s *UserService) ListUsers(ctx context.Context, caller *Identity, search string, page repository.Page) ([]UserSummary, int64, error) {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, 0, err
	}

	users, total, err := s.users.List(ctx, repository.UserFilter{Search: strings.TrimSpace(search), Page: page})
	if err != nil {
		return nil, 0, internal("list users", err)
	}
	counts, err := s.orders.CountByUser(ctx)
	if err != nil {
		return nil, 0, internal("count orders", err)
	}

	out := make([]UserSummary, len(users))
	for i, u := range users {
		out[i] = UserSummary{User: u, OrderCount: counts[u.ID]}
	}
	return out, total, nil
}

// ChangeRole sets the role of another account. Admin only; admins cannot
// change their own role.
func (s *UserService) ChangeRole(ctx context.Context, caller *Identity, id uuid.UUID, role models.Role) (*models.User, error) {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, FieldErrors{"role": "must be one of: user, admin"}.Err()
	}
	if id == caller.UserID {
		return nil, FieldErrors{"id": "cannot change your own role"}.Err()
	}

	if err := s.users.UpdateRole(ctx, id, role, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, internal("update role", err)
	}
	s.log.Info("user role changed", "user_id", id, "role", role, "by", caller.UserID)
	return s.find(ctx, id)
}

// DeleteUser removes another account. Its orders are kept. Admin only.
func (s *UserService) DeleteUser(ctx context.Context, caller *Identity, id uuid.UUID) error {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	if id == caller.UserID {
		return FieldErrors{"id": "cannot delete your own account"}.Err()
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user")
		}
		return internal("delete user", err)
	}
	s.log.Info("user deleted", "user_id", id, "by", caller.UserID)
	return nil
}

// EnsureAdmin creates an admin account, or promotes the existing account
// with that email. The password is only set on creation.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, bool, error) {
	email = NormalizeEmail(email)
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			if err := s.users.UpdateRole(ctx, existing.ID, models.RoleAdmin, s.now()); err != nil {
				return nil, false, internal("promote user", err)
			}
			existing.Role = models.RoleAdmin
		}
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, internal("find user", err)
	}

	fields := FieldErrors{}
	checkStruct(RegisterInput{Name: strings.TrimSpace(name), Email: email, Password: password}, fields)
	if err := fields.Err(); err != nil {
		return nil, false, err
	}
	if len(password) < s.cfg.MinPasswordLength {
		return nil, false, ErrWeakPassword
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, internal("hash password", err)
	}
	user := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	user.CreatedAt = s.now()
	user.UpdatedAt = user.CreatedAt
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, internal("create admin", err)
	}
	s.log.Info("admin created", "user_id", user.ID)
	return user, true, nil
}

func (s *UserService) find(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, internal("find user", err)
	}
	return user, nil
}
