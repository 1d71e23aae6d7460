// Package repository persists users, products and orders. Every operation
// touches a single document (or a single order with its items), so
// conditional single-statement updates are enough for consistency.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/orderdesk/internal/models"
)

var (
	// ErrNotFound is returned when a lookup or mutation matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// Page limits a listing. A zero Limit returns every row.
type Page struct {
	Limit  int
	Offset int
}

type UserFilter struct {
	Search string
	Page
}

type OrderFilter struct {
	UserID *uuid.UUID
	Status models.OrderStatus
	Page
}

type ProductFilter struct {
	IncludeInactive bool
	Search          string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Page
}

// OrderPatch carries the fields an update should overwrite; nil fields are left alone.
type OrderPatch struct {
	Items     []models.OrderItem
	Total     *decimal.Decimal
	Status    *models.OrderStatus
	UpdatedAt time.Time
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string, now time.Time) error
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role, now time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error

	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, now time.Time) error
	FindByResetToken(ctx context.Context, token string) (*models.User, error)
	// ConsumeResetToken swaps the password hash and clears the reset fields in
	// one write, only if token is still stored and expires after now.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (bool, error)
}

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	Update(ctx context.Context, id uuid.UUID, patch OrderPatch) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByUser(ctx context.Context) (map[uuid.UUID]int64, error)

	// FindStale returns ids of orders in status created at or before cutoff.
	FindStale(ctx context.Context, status models.OrderStatus, cutoff time.Time) ([]uuid.UUID, error)
	// TransitionStatus sets status to `to` only while it still equals `from`.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, now time.Time) (bool, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Users    UserRepository
	Products ProductRepository
	Orders   OrderRepository
	closer   func(context.Context) error
}

// Close releases the underlying connection.
func (s *Store) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer(ctx)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
