// Package notify carries order confirmations from checkout to the customer:
// the storefront publishes an order.placed event and the notifier worker
// turns it into an email with the invoice attached.
package notify

import (
	"context"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type eventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Publisher sends committed orders to the order.placed topic.
type Publisher struct {
	producer eventPublisher
	now      func() time.Time
}

func NewPublisher(producer eventPublisher) *Publisher {
	return &Publisher{
		producer: producer,
		now:      time.Now,
	}
}

func (p *Publisher) OrderPlaced(ctx context.Context, order domain.Order) error {
	event := domain.OrderPlacedEvent{
		Order:     order,
		Recipient: order.Shipping.Email,
		Timestamp: p.now().UTC(),
	}
	return p.producer.Publish(ctx, order.ID, event)
}
