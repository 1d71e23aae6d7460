package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/orderdesk/internal/models"
)

// NoopEvents discards every event.
type NoopEvents struct{}

func (NoopEvents) OrderCreated(context.Context, models.OrderDetail) {}
func (NoopEvents) OrderFinalized(context.Context, uuid.UUID, time.Time) {}

// MultiEvents fans each event out to all of its members in order.
type MultiEvents []OrderEvents

func (m MultiEvents) OrderCreated(ctx context.Context, order models.OrderDetail) {
	for _, e := range m {
		e.OrderCreated(ctx, order)
	}
}

func (m MultiEvents) OrderFinalized(ctx context.Context, orderID uuid.UUID, at time.Time) {
	for _, e := range m {
		e.OrderFinalized(ctx, orderID, at)
	}
}
