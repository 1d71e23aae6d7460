package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/orderdesk/internal/metrics"
	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/repository"
)

// FinalizeAfter is the age at which a processing order is finalized by the sweep.
const FinalizeAfter = 10 * time.Minute

// DisplayTimeLayout formats created_at_display on resolved orders.
const DisplayTimeLayout = "2006-01-02 15:04"

// OrderEvents observes lifecycle changes. Implementations must not block.
type OrderEvents interface {
	OrderCreated(ctx context.Context, order models.OrderDetail)
	OrderFinalized(ctx context.Context, orderID uuid.UUID, at time.Time)
}

// LineItemInput is one requested (product, quantity) pair.
type LineItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// CreateOrderInput is the payload for placing an order. UserID lets an
// admin place an order for someone else; it defaults to the caller.
type CreateOrderInput struct {
	UserID *uuid.UUID       `json:"user_id"`
	Items  []LineItemInput  `json:"items"`
	Total  *decimal.Decimal `json:"total"`
}

// UpdateOrderInput is a partial update; nil fields are left untouched.
type UpdateOrderInput struct {
	Items  *[]LineItemInput    `json:"items"`
	Total  *decimal.Decimal    `json:"total"`
	Status *models.OrderStatus `json:"status"`
}

// OrderQuery filters the admin listing.
type OrderQuery struct {
	Status models.OrderStatus
	Page   repository.Page
}

// OrderService owns the order state machine.
type OrderService struct {
	orders   repository.OrderRepository
	users    repository.UserRepository
	products repository.ProductRepository
	events   OrderEvents
	now      Clock
	log      *slog.Logger
}

// NewOrderService constructs an OrderService.
func NewOrderService(store *repository.Store, events OrderEvents, log *slog.Logger) *OrderService {
	if events == nil {
		events = NoopEvents{}
	}
	return &OrderService{
		orders:   store.Orders,
		users:    store.Users,
		products: store.Products,
		events:   events,
		now:      SystemClock,
		log:      log,
	}
}

// WithClock replaces the time source.
func (s *OrderService) WithClock(c Clock) *OrderService {
	s.now = c
	return s
}

// CreateOrder validates and stores a new processing order and returns its id.
func (s *OrderService) CreateOrder(ctx context.Context, caller *Identity, in CreateOrderInput) (uuid.UUID, error) {
	if caller == nil {
		return uuid.Nil, ErrUnauthenticated
	}

	ownerID := caller.UserID
	if in.UserID != nil && *in.UserID != uuid.Nil && *in.UserID != caller.UserID {
		if err := RequireRole(caller, models.RoleAdmin); err != nil {
			return uuid.Nil, err
		}
		ownerID = *in.UserID
	}

	fields := FieldErrors{}
	if in.Total == nil {
		fields.Add("total", "is required")
	} else {
		checkTotal(*in.Total, fields)
	}
	if err := s.checkItems(ctx, in.Items, fields); err != nil {
		return uuid.Nil, err
	}
	if err := fields.Err(); err != nil {
		return uuid.Nil, err
	}

	if _, err := s.users.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, notFound("user")
		}
		return uuid.Nil, internal("find user", err)
	}

	now := s.now()
	order := &models.Order{
		UserID: ownerID,
		Items:  toOrderItems(in.Items),
		Total:  *in.Total,
		Status: models.OrderProcessing,
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := s.orders.Create(ctx, order); err != nil {
		return uuid.Nil, internal("create order", err)
	}
	metrics.OrdersCreated.Inc()
	s.log.Info("order created", "order_id", order.ID, "user_id", ownerID, "items", len(order.Items))

	if details, err := s.resolve(ctx, []models.Order{*order}); err == nil {
		s.events.OrderCreated(ctx, details[0])
	} else {
		s.log.Warn("order created event skipped", "order_id", order.ID, "error", err)
	}

	return order.ID, nil
}

// GetOrder returns one resolved order. Admin only, regardless of ownership.
func (s *OrderService) GetOrder(ctx context.Context, caller *Identity, id uuid.UUID) (*models.OrderDetail, error) {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// ListOrders returns every order, newest first. Admin only.
func (s *OrderService) ListOrders(ctx context.Context, caller *Identity, q OrderQuery) ([]models.OrderDetail, int64, error) {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, 0, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, FieldErrors{"status": "must be one of: processing, finalized"}.Err()
	}
	return s.list(ctx, repository.OrderFilter{Status: q.Status, Page: q.Page})
}

// ListOrdersForCaller returns the caller's own orders, newest first.
func (s *OrderService) ListOrdersForCaller(ctx context.Context, caller *Identity, page repository.Page) ([]models.OrderDetail, int64, error) {
	if caller == nil {
		return nil, 0, ErrUnauthenticated
	}
	owner := caller.UserID
	return s.list(ctx, repository.OrderFilter{UserID: &owner, Page: page})
}

// UpdateOrder applies an admin patch. Status may be set to any persisted
// state, which bypasses the sweep.
func (s *OrderService) UpdateOrder(ctx context.Context, caller *Identity, id uuid.UUID, in UpdateOrderInput) (*models.OrderDetail, error) {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}

	fields := FieldErrors{}
	patch := repository.OrderPatch{UpdatedAt: s.now()}
	if in.Items != nil {
		if err := s.checkItems(ctx, *in.Items, fields); err != nil {
			return nil, err
		}
		patch.Items = toOrderItems(*in.Items)
	}
	if in.Total != nil {
		checkTotal(*in.Total, fields)
		patch.Total = in.Total
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			fields.Add("status", "must be one of: processing, finalized")
		}
		patch.Status = in.Status
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	if err := s.orders.Update(ctx, id, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("order")
		}
		return nil, internal("update order", err)
	}
	s.log.Info("order updated", "order_id", id, "by", caller.UserID)

	return s.find(ctx, id)
}

// DeleteOrder removes an order permanently. Admin only.
func (s *OrderService) DeleteOrder(ctx context.Context, caller *Identity, id uuid.UUID) error {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("order")
		}
		return internal("delete order", err)
	}
	s.log.Info("order deleted", "order_id", id, "by", caller.UserID)
	return nil
}

// AutoFinalizeSweep finalizes every processing order created at least
// FinalizeAfter ago and returns how many it moved. Each move is conditional
// on the order still being processing, so a concurrent admin update wins.
func (s *OrderService) AutoFinalizeSweep(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.orders.FindStale(ctx, models.OrderProcessing, now.Add(-FinalizeAfter))
	if err != nil {
		return 0, internal("find stale orders", err)
	}

	var (
		moved int
		errs  []error
	)
	for _, id := range ids {
		ok, err := s.orders.TransitionStatus(ctx, id, models.OrderProcessing, models.OrderFinalized, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("finalize %s: %w", id, err))
			continue
		}
		if !ok {
			continue
		}
		moved++
		metrics.OrdersFinalized.Inc()
		s.events.OrderFinalized(ctx, id, now)
	}

	if len(errs) > 0 {
		return moved, internal("finalize orders", errors.Join(errs...))
	}
	return moved, nil
}

func (s *OrderService) find(ctx context.Context, id uuid.UUID) (*models.OrderDetail, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("order")
		}
		return nil, internal("find order", err)
	}
	details, err := s.resolve(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (s *OrderService) list(ctx context.Context, filter repository.OrderFilter) ([]models.OrderDetail, int64, error) {
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, internal("list orders", err)
	}
	details, err := s.resolve(ctx, orders)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

// resolve joins owner and product data into each order. Missing owners or
// products (deleted after the order was placed) resolve to empty values.
func (s *OrderService) resolve(ctx context.Context, orders []models.Order) ([]models.OrderDetail, error) {
	userIDs := make([]uuid.UUID, 0, len(orders))
	var productIDs []uuid.UUID
	for _, o := range orders {
		userIDs = append(userIDs, o.UserID)
		for _, it := range o.Items {
			productIDs = append(productIDs, it.ProductID)
		}
	}

	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, internal("resolve owners", err)
	}
	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, internal("resolve products", err)
	}

	out := make([]models.OrderDetail, len(orders))
	for i, o := range orders {
		owner := users[o.UserID]
		items := make([]models.OrderItemDetail, len(o.Items))
		for j, it := range o.Items {
			p := products[it.ProductID]
			items[j] = models.OrderItemDetail{
				ProductID: it.ProductID,
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  it.Quantity,
			}
		}
		out[i] = models.OrderDetail{
			ID:               o.ID,
			Status:           o.Status,
			Total:            o.Total,
			Owner:            models.OrderOwner{ID: o.UserID, Name: owner.Name, Email: owner.Email},
			Items:            items,
			CreatedAt:        o.CreatedAt,
			CreatedAtDisplay: o.CreatedAt.UTC().Format(DisplayTimeLayout),
			UpdatedAt:        o.UpdatedAt,
		}
	}
	return out, nil
}

// checkItems records item problems in fields. Only store failures are returned.
func (s *OrderService) checkItems(ctx context.Context, items []LineItemInput, fields FieldErrors) error {
	if len(items) == 0 {
		fields.Add("items", "must contain at least one item")
		return nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for i, it := range items {
		if it.ProductID == uuid.Nil {
			fields.Add(fmt.Sprintf("items[%d].product_id", i), "is required")
		} else {
			ids = append(ids, it.ProductID)
		}
		if it.Quantity < 1 {
			fields.Add(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return internal("find products", err)
	}
	for i, it := range items {
		if it.ProductID == uuid.Nil {
			continue
		}
		if _, ok := products[it.ProductID]; !ok {
			fields.Add(fmt.Sprintf("items[%d].product_id", i), "product not found")
		}
	}
	return nil
}

func checkTotal(total decimal.Decimal, fields FieldErrors) {
	if total.IsNegative() {
		fields.Add("total", "must be greater than or equal to 0")
	}
}

func toOrderItems(in []LineItemInput) []models.OrderItem {
	items := make([]models.OrderItem, len(in))
	for i, it := range in {
		items[i] = models.OrderItem{Position: i, ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return items
}
