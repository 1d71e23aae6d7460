package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/services"
	"github.com/example/orderdesk/internal/utils"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	return m.Called(email, token).Error(0)
}

func newAuth(t *testing.T) (*services.AuthService, *fakeClock, *mockMailer) {
	store := newStore(t)
	clock := newClock()
	mailer := &mockMailer{}
	auth := services.NewAuthService(store.Users, mailer, authConfig(), discard).WithClock(clock.Now)
	return auth, clock, mailer
}

func TestRegisterAndIssueToken(t *testing.T) {
	auth, _, _ := newAuth(t)
	ctx := context.Background()

	user, token, err := auth.Register(ctx, services.RegisterInput{Name: "Alice", Email: "A@X.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEmpty(t, token)

	_, token, err = auth.IssueToken(ctx, "a@x.com", "secret1", false)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = auth.IssueToken(ctx, "a@x.com", "wrong", false)
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	_, _, err = auth.IssueToken(ctx, "nobody@x.com", "secret1", false)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRegisterValidation(t *testing.T) {
	auth, _, _ := newAuth(t)
	ctx := context.Background()

	_, _, err := auth.Register(ctx, services.RegisterInput{Name: "Bob", Email: "bob@x.com", Password: "12345"})
	requireKind(t, err, services.KindWeakPassword)

	_, _, err = auth.Register(ctx, services.RegisterInput{Name: "", Email: "not-an-email", Password: "secret1"})
	requireKind(t, err, services.KindValidation)
	var se *services.Error
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Fields, "name")
	assert.Contains(t, se.Fields, "email")

	// A short password next to other mistakes is reported with them in one go.
	_, _, err = auth.Register(ctx, services.RegisterInput{Name: "", Email: "not-an-email", Password: "123"})
	requireKind(t, err, services.KindValidation)
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Fields, "name")
	assert.Contains(t, se.Fields, "email")
	assert.Equal(t, "must be at least 6 characters", se.Fields["password"])

	_, _, err = auth.Register(ctx, services.RegisterInput{Name: "Bob", Email: "bob@x.com", Password: "secret1"})
	require.NoError(t, err)
	_, _, err = auth.Register(ctx, services.RegisterInput{Name: "Bob", Email: "BOB@x.com", Password: "secret1"})
	requireKind(t, err, services.KindValidation)
}

func TestIssueTokenAuthenticateRoundTrip(t *testing.T) {
	auth, clock, _ := newAuth(t)
	ctx := context.Background()

	user, _, err := auth.Register(ctx, services.RegisterInput{Name: "Alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, token, err := auth.IssueToken(ctx, "a@x.com", "secret1", false)
	require.NoError(t, err)

	id, err := auth.Authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, user.Role, id.Role)
	assert.Equal(t, "Alice", id.Name)

	// The default window is 24h.
	clock.Advance(25 * time.Hour)
	_, err = auth.Authenticate("Bearer " + token)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}

func TestRememberMeExtendsExpiry(t *testing.T) {
	auth, clock, _ := newAuth(t)
	ctx := context.Background()

	_, _, err := auth.Register(ctx, services.RegisterInput{Name: "Alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, token, err := auth.IssueToken(ctx, "a@x.com", "secret1", true)
	require.NoError(t, err)

	clock.Advance(10 * 24 * time.Hour)
	_, err = auth.Authenticate("Bearer " + token)
	assert.NoError(t, err)
}

func TestAuthenticateRejections(t *testing.T) {
	auth, clock, _ := newAuth(t)

	_, err := auth.Authenticate("")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	_, err = auth.Authenticate("Token abc")
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	_, err = auth.Authenticate("Bearer not-a-jwt")
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	forged, err := utils.GenerateToken("other-secret", uuid.New(), "Mallory", "admin", clock.Now(), time.Hour)
	require.NoError(t, err)
	_, err = auth.Authenticate("Bearer " + forged)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	badRole, err := utils.GenerateToken(testSecret, uuid.New(), "Eve", "root", clock.Now(), time.Hour)
	require.NoError(t, err)
	_, err = auth.Authenticate("Bearer " + badRole)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}

func TestRequireRole(t *testing.T) {
	admin := &services.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	user := &services.Identity{UserID: uuid.New(), Role: models.RoleUser}

	assert.NoError(t, services.RequireRole(admin, models.RoleAdmin))
	assert.ErrorIs(t, services.RequireRole(user, models.RoleAdmin), services.ErrForbidden)
	assert.ErrorIs(t, services.RequireRole(nil, models.RoleAdmin), services.ErrUnauthenticated)
}

func TestPasswordResetFlow(t *testing.T) {
	auth, clock, _ := newAuth(t)
	ctx := context.Background()

	_, _, err := auth.Register(ctx, services.RegisterInput{Name: "Alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	tk, err := auth.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, tk, 64)

	clock.Advance(30 * time.Minute)
	require.NoError(t, auth.ConsumePasswordResetToken(ctx, tk, "newpass"))

	err = auth.ConsumePasswordResetToken(ctx, tk, "newpass2")
	assert.ErrorIs(t, err, services.ErrInvalidOrExpiredToken)

	_, _, err = auth.IssueToken(ctx, "a@x.com", "secret1", false)
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, _, err = auth.IssueToken(ctx, "a@x.com", "newpass", false)
	assert.NoError(t, err)
}

func TestPasswordResetExpiry(t *testing.T) {
	auth, clock, _ := newAuth(t)
	ctx := context.Background()

	_, _, err := auth.Register(ctx, services.RegisterInput{Name: "Alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	tk, err := auth.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)

	// Exactly at the expiry instant the token is already unusable.
	clock.Advance(time.Hour)
	err = auth.ConsumePasswordResetToken(ctx, tk, "newpass")
	assert.ErrorIs(t, err, services.ErrInvalidOrExpiredToken)

	clock.Advance(time.Minute)
	err = auth.ConsumePasswordResetToken(ctx, tk, "newpass")
	assert.ErrorIs(t, err, services.ErrInvalidOrExpiredToken)
}

func TestPasswordResetRules(t *testing.T) {
	auth, _, _ := newAuth(t)
	ctx := context.Background()

	_, err := auth.IssuePasswordResetToken(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, _, err = auth.Register(ctx, services.RegisterInput{Name: "Alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	first, err := auth.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)
	second, err := auth.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// A newer request supersedes the earlier token.
	assert.ErrorIs(t, auth.ConsumePasswordResetToken(ctx, first, "newpass"), services.ErrInvalidOrExpiredToken)

	// A weak password leaves the token usable.
	assert.ErrorIs(t, auth.ConsumePasswordResetToken(ctx, second, "short"), services.ErrWeakPassword)
	assert.NoError(t, auth.ConsumePasswordResetToken(ctx, second, "longenough"))

	assert.ErrorIs(t, auth.ConsumePasswordResetToken(ctx, "", "longenough"), services.ErrInvalidOrExpiredToken)
}

func TestRequestPasswordResetDelivery(t *testing.T) {
	auth, _, mailer := newAuth(t)
	ctx := context.Background()

	_, _, err := auth.Register(ctx, services.RegisterInput{Name: "Alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	var delivered string
	mailer.On("SendPasswordReset", "a@x.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { delivered = args.String(1) }).
		Return(errors.New("smtp down")).Once()

	err = auth.RequestPasswordReset(ctx, "A@x.com")
	requireKind(t, err, services.KindInternal)
	mailer.AssertExpectations(t)

	// The stored token survives the delivery failure.
	require.NotEmpty(t, delivered)
	assert.NoError(t, auth.ConsumePasswordResetToken(ctx, delivered, "newpass"))
}
