package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/repository"
	"github.com/example/orderdesk/internal/services"
)

type recordedEvents struct {
	mu        sync.Mutex
	created   []models.OrderDetail
	finalized []uuid.UUID
}

func (r *recordedEvents) OrderCreated(_ context.Context, order models.OrderDetail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, order)
}

func (r *recordedEvents) OrderFinalized(_ context.Context, id uuid.UUID, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = append(r.finalized, id)
}

type orderFixture struct {
	store  *repository.Store
	orders *services.OrderService
	clock  *fakeClock
	events *recordedEvents
	admin  *services.Identity
	alice  *services.Identity
	bob    *services.Identity
	p1     uuid.UUID
	p2     uuid.UUID
}

func newOrderFixture(t *testing.T) *orderFixture {
	store := newStore(t)
	clock := newClock()
	events := &recordedEvents{}
	return &orderFixture{
		store:  store,
		orders: services.NewOrderService(store, events, discard).WithClock(clock.Now),
		clock:  clock,
		events: events,
		admin:  seedUser(t, store, "admin@x.com", models.RoleAdmin),
		alice:  seedUser(t, store, "a@x.com", models.RoleUser),
		bob:    seedUser(t, store, "b@x.com", models.RoleUser),
		p1:     seedProduct(t, store, "Widget", "10.00"),
		p2:     seedProduct(t, store, "Gadget", "4.50"),
	}
}

func (f *orderFixture) create(t *testing.T, caller *services.Identity, owner *uuid.UUID) uuid.UUID {
	t.Helper()
	id, err := f.orders.CreateOrder(context.Background(), caller, services.CreateOrderInput{
		UserID: owner,
		Items:  []services.LineItemInput{{ProductID: f.p1, Quantity: 1}},
		Total:  dec("10.00"),
	})
	require.NoError(t, err)
	return id
}

func TestAdminCreatesOrderForUser(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	owner := f.alice.UserID
	id, err := f.orders.CreateOrder(ctx, f.admin, services.CreateOrderInput{
		UserID: &owner,
		Items:  []services.LineItemInput{{ProductID: f.p1, Quantity: 2}},
		Total:  dec("20.00"),
	})
	require.NoError(t, err)

	order, err := f.orders.GetOrder(ctx, f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, order.Status)
	assert.True(t, order.Total.Equal(*dec("20")))
	assert.Equal(t, f.alice.UserID, order.Owner.ID)
	assert.Equal(t, "a@x.com", order.Owner.Email)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Widget", order.Items[0].Name)
	assert.True(t, order.Items[0].Price.Equal(*dec("10")))
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "2026-03-02 09:00", order.CreatedAtDisplay)

	_, err = f.orders.GetOrder(ctx, f.alice, id)
	assert.ErrorIs(t, err, services.ErrForbidden)

	mine, total, err := f.orders.ListOrdersForCaller(ctx, f.alice, repository.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0].ID)

	require.Len(t, f.events.created, 1)
	assert.Equal(t, id, f.events.created[0].ID)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		in    services.CreateOrderInput
		field string
	}{
		{
			name:  "empty items",
			in:    services.CreateOrderInput{Items: nil, Total: dec("10.00")},
			field: "items",
		},
		{
			name:  "negative total",
			in:    services.CreateOrderInput{Items: []services.LineItemInput{{ProductID: f.p1, Quantity: 1}}, Total: dec("-5")},
			field: "total",
		},
		{
			name:  "missing total",
			in:    services.CreateOrderInput{Items: []services.LineItemInput{{ProductID: f.p1, Quantity: 1}}},
			field: "total",
		},
		{
			name:  "zero quantity",
			in:    services.CreateOrderInput{Items: []services.LineItemInput{{ProductID: f.p1, Quantity: 0}}, Total: dec("0")},
			field: "items[0].quantity",
		},
		{
			name:  "unknown product",
			in:    services.CreateOrderInput{Items: []services.LineItemInput{{ProductID: f.p1, Quantity: 1}, {ProductID: uuid.New(), Quantity: 1}}, Total: dec("1")},
			field: "items[1].product_id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(ctx, f.alice, tc.in)
			requireKind(t, err, services.KindValidation)

			var se *services.Error
			require.True(t, errors.As(err, &se))
			assert.Contains(t, se.Fields, tc.field)
		})
	}

	_, total, err := f.orders.ListOrders(ctx, f.admin, services.OrderQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateOrderAuthorization(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	in := services.CreateOrderInput{
		Items: []services.LineItemInput{{ProductID: f.p1, Quantity: 1}},
		Total: dec("10.00"),
	}

	_, err := f.orders.CreateOrder(ctx, nil, in)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	other := f.bob.UserID
	in.UserID = &other
	_, err = f.orders.CreateOrder(ctx, f.alice, in)
	assert.ErrorIs(t, err, services.ErrForbidden)

	ghost := uuid.New()
	in.UserID = &ghost
	_, err = f.orders.CreateOrder(ctx, f.admin, in)
	assert.ErrorIs(t, err, services.ErrNotFound)

	// Naming yourself as the owner is allowed.
	self := f.alice.UserID
	in.UserID = &self
	_, err = f.orders.CreateOrder(ctx, f.alice, in)
	assert.NoError(t, err)
}

func TestNonAdminOrderOperationsForbidden(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	own := f.create(t, f.alice, nil)
	status := models.OrderFinalized

	_, _, err := f.orders.ListOrders(ctx, f.alice, services.OrderQuery{})
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = f.orders.GetOrder(ctx, f.alice, own)
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = f.orders.UpdateOrder(ctx, f.alice, own, services.UpdateOrderInput{Status: &status})
	assert.ErrorIs(t, err, services.ErrForbidden)

	assert.ErrorIs(t, f.orders.DeleteOrder(ctx, f.alice, own), services.ErrForbidden)

	// Forbidden is decided before the lookup.
	_, err = f.orders.GetOrder(ctx, f.alice, uuid.New())
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestListOrdersForCallerIsOwnerScoped(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	a1 := f.create(t, f.alice, nil)
	f.clock.Advance(time.Minute)
	b1 := f.create(t, f.bob, nil)
	f.clock.Advance(time.Minute)
	a2 := f.create(t, f.alice, nil)

	mine, total, err := f.orders.ListOrdersForCaller(ctx, f.alice, repository.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, mine, 2)
	assert.Equal(t, a2, mine[0].ID, "newest first")
	assert.Equal(t, a1, mine[1].ID)
	for _, o := range mine {
		assert.Equal(t, f.alice.UserID, o.Owner.ID)
	}

	theirs, _, err := f.orders.ListOrdersForCaller(ctx, f.bob, repository.Page{})
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, b1, theirs[0].ID)

	all, total, err := f.orders.ListOrders(ctx, f.admin, services.OrderQuery{Page: repository.Page{Limit: 2}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 2)

	_, _, err = f.orders.ListOrdersForCaller(ctx, nil, repository.Page{})
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
}

func TestUpdateOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	id := f.create(t, f.alice, nil)
	f.clock.Advance(2 * time.Minute)

	items := []services.LineItemInput{{ProductID: f.p2, Quantity: 3}, {ProductID: f.p1, Quantity: 1}}
	order, err := f.orders.UpdateOrder(ctx, f.admin, id, services.UpdateOrderInput{
		Items: &items,
		Total: dec("23.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, order.Status)
	assert.True(t, order.Total.Equal(*dec("23.5")))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Gadget", order.Items[0].Name)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, "Widget", order.Items[1].Name)
	assert.Equal(t, t0, order.CreatedAt.UTC())
	assert.Equal(t, t0.Add(2*time.Minute), order.UpdatedAt.UTC())

	status := models.OrderFinalized
	order, err = f.orders.UpdateOrder(ctx, f.admin, id, services.UpdateOrderInput{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.OrderFinalized, order.Status)
	assert.Len(t, order.Items, 2, "items untouched")

	empty := []services.LineItemInput{}
	_, err = f.orders.UpdateOrder(ctx, f.admin, id, services.UpdateOrderInput{Items: &empty})
	requireKind(t, err, services.KindValidation)

	_, err = f.orders.UpdateOrder(ctx, f.admin, id, services.UpdateOrderInput{Total: dec("-1")})
	requireKind(t, err, services.KindValidation)

	cancelled := models.OrderStatus("cancelled")
	_, err = f.orders.UpdateOrder(ctx, f.admin, id, services.UpdateOrderInput{Status: &cancelled})
	requireKind(t, err, services.KindValidation)

	_, err = f.orders.UpdateOrder(ctx, f.admin, uuid.New(), services.UpdateOrderInput{Status: &status})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestDeleteOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	id := f.create(t, f.alice, nil)
	require.NoError(t, f.orders.DeleteOrder(ctx, f.admin, id))

	_, err := f.orders.GetOrder(ctx, f.admin, id)
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.ErrorIs(t, f.orders.DeleteOrder(ctx, f.admin, id), services.ErrNotFound)
}

func TestResolveToleratesDeletedReferences(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	id := f.create(t, f.alice, nil)
	require.NoError(t, f.store.Users.Delete(ctx, f.alice.UserID))
	require.NoError(t, f.store.Products.Delete(ctx, f.p1))

	order, err := f.orders.GetOrder(ctx, f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, f.alice.UserID, order.Owner.ID)
	assert.Empty(t, order.Owner.Name)
	require.Len(t, order.Items, 1)
	assert.Equal(t, f.p1, order.Items[0].ProductID)
	assert.Empty(t, order.Items[0].Name)
}

func TestAutoFinalizeSweep(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	id := f.create(t, f.alice, nil)

	f.clock.Set(t0.Add(9 * time.Minute))
	moved, err := f.orders.AutoFinalizeSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)

	f.clock.Set(t0.Add(11 * time.Minute))
	moved, err = f.orders.AutoFinalizeSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	order, err := f.orders.GetOrder(ctx, f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFinalized, order.Status)
	assert.Equal(t, t0.Add(11*time.Minute), order.UpdatedAt.UTC())

	f.clock.Set(t0.Add(12 * time.Minute))
	moved, err = f.orders.AutoFinalizeSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)

	assert.Equal(t, []uuid.UUID{id}, f.events.finalized)
}

func TestAutoFinalizeSweepSelectsExactlyStaleOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	old := f.create(t, f.alice, nil) // t0
	f.clock.Set(t0.Add(5 * time.Minute))
	young := f.create(t, f.bob, nil) // t0+5m
	f.clock.Set(t0.Add(time.Minute))
	done := f.create(t, f.bob, nil) // t0+1m, finalized by hand

	status := models.OrderFinalized
	_, err := f.orders.UpdateOrder(ctx, f.admin, done, services.UpdateOrderInput{Status: &status})
	require.NoError(t, err)

	// Exactly ten minutes old counts as stale.
	f.clock.Set(t0.Add(10 * time.Minute))
	moved, err := f.orders.AutoFinalizeSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.Equal(t, []uuid.UUID{old}, f.events.finalized)

	order, err := f.orders.GetOrder(ctx, f.admin, young)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, order.Status)

	moved, err = f.orders.AutoFinalizeSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved, "second run in the same instant")
}

func TestSweepDoesNotOverwriteConcurrentChange(t *testing.T) {
	store := newStore(t)
	clock := newClock()
	admin := seedUser(t, store, "admin@x.com", models.RoleAdmin)
	p1 := seedProduct(t, store, "Widget", "10.00")

	racing := &racingOrders{OrderRepository: store.Orders}
	racingStore := &repository.Store{Users: store.Users, Products: store.Products, Orders: racing}
	orders := services.NewOrderService(racingStore, nil, discard).WithClock(clock.Now)

	id, err := orders.CreateOrder(context.Background(), admin, services.CreateOrderInput{
		Items: []services.LineItemInput{{ProductID: p1, Quantity: 1}},
		Total: dec("10"),
	})
	require.NoError(t, err)

	// Between selection and transition another writer finalizes the order.
	racing.beforeTransition = func(id uuid.UUID) {
		status := models.OrderFinalized
		require.NoError(t, store.Orders.Update(context.Background(), id, repository.OrderPatch{Status: &status, UpdatedAt: clock.Now()}))
	}

	clock.Advance(15 * time.Minute)
	moved, err := orders.AutoFinalizeSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)

	order, err := orders.GetOrder(context.Background(), admin, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFinalized, order.Status)
}

type racingOrders struct {
	repository.OrderRepository
	beforeTransition func(uuid.UUID)
}

func (r *racingOrders) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, now time.Time) (bool, error) {
	if r.beforeTransition != nil {
		r.beforeTransition(id)
	}
	return r.OrderRepository.TransitionStatus(ctx, id, from, to, now)
}
