package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/orderdesk/internal/database"
	"github.com/example/orderdesk/internal/logger"
	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/repository"
	"github.com/example/orderdesk/internal/services"
	"github.com/example/orderdesk/internal/utils"
)

const testSecret = "test-secret"

func init() {
	utils.PasswordCost = bcrypt.MinCost
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(t time.Time) { c.now = t }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newStore(t *testing.T) *repository.Store {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.Open(sqlite.Open(dsn), gormlogger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	store := repository.NewGormStore(db)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func authConfig() services.AuthConfig {
	return services.AuthConfig{
		Secret:            testSecret,
		TokenTTL:          24 * time.Hour,
		RememberMeTTL:     30 * 24 * time.Hour,
		MinPasswordLength: 6,
	}
}

func seedUser(t *testing.T, store *repository.Store, email string, role models.Role) *services.Identity {
	t.Helper()

	hash, err := utils.HashPassword("secret1")
	require.NoError(t, err)

	user := &models.User{Name: "User " + email, Email: email, PasswordHash: hash, Role: role}
	user.CreatedAt = t0
	user.UpdatedAt = t0
	require.NoError(t, store.Users.Create(context.Background(), user))

	return &services.Identity{UserID: user.ID, Name: user.Name, Role: role}
}

func seedProduct(t *testing.T, store *repository.Store, name, price string) uuid.UUID {
	t.Helper()

	product := &models.Product{
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Status: models.ProductActive,
		Stock:  10,
	}
	product.CreatedAt = t0
	product.UpdatedAt = t0
	require.NoError(t, store.Products.Create(context.Background(), product))
	return product.ID
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func requireKind(t *testing.T, err error, kind services.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, services.KindOf(err), "error: %v", err)
}

var discard = logger.Discard()
