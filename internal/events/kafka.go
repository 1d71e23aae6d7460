// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/example/orderdesk/internal/models"
)

const (
	TypeOrderCreated   = "order.created"
	TypeOrderFinalized = "order.finalized"
)

// Event is the JSON envelope written as the message value.
type Event struct {
	Type       string              `json:"type"`
	OrderID    uuid.UUID           `json:"order_id"`
	OccurredAt time.Time           `json:"occurred_at"`
	Order      *models.OrderDetail `json:"order,omitempty"`
}

// Producer is an asynchronous Kafka writer. Publish never blocks the caller;
// when the buffer is full the event is dropped and logged.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *slog.Logger
}

// NewProducer builds a producer for topic. Call Start before publishing.
func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

// Start runs the write loop until ctx is done, then flushes what is buffered.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.log.Warn("kafka writer close failed", "error", err)
			}
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka publish failed", "topic", p.w.Topic, "key", string(m.Key), "error", err)
	}
}

// WaitClosed blocks until the write loop has flushed and exited.
func (p *Producer) WaitClosed() { <-p.closeCh }

func (p *Producer) publish(ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("encode order event", "type", ev.Type, "error", err)
		return
	}
	msg := kafka.Message{
		Key:     []byte(ev.OrderID.String()),
		Value:   value,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(ev.Type)}},
	}
	select {
	case p.inbox <- msg:
	default:
		p.log.Warn("kafka buffer full, event dropped", "type", ev.Type, "order_id", ev.OrderID)
	}
}

// OrderCreated publishes order.created with the resolved order.
func (p *Producer) OrderCreated(_ context.Context, order models.OrderDetail) {
	p.publish(Event{Type: TypeOrderCreated, OrderID: order.ID, OccurredAt: order.CreatedAt, Order: &order})
}

// OrderFinalized publishes order.finalized.
func (p *Producer) OrderFinalized(_ context.Context, orderID uuid.UUID, at time.Time) {
	p.publish(Event{Type: TypeOrderFinalized, OrderID: orderID, OccurredAt: at})
}
