package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/invoice"
)

type recordingMailer struct {
	sent []email.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

type recordingProducer struct {
	key   string
	event any
}

func (p *recordingProducer) Publish(_ context.Context, key string, event any) error {
	p.key = key
	p.event = event
	return nil
}

func testOrder() domain.Order {
	return domain.Order{
		ID:            "9b2f6d4a-0000-4000-8000-000000000001",
		UserID:        "u-1",
		Shipping:      domain.ShippingDetails{FirstName: "Ana", Email: "ana@example.com"},
		PaymentMethod: "wallet",
		Subtotal:      decimal.RequireFromString("25.00"),
		Total:         decimal.RequireFromString("25.00"),
		Status:        domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{ProductID: 1, ProductName: "Product A", Quantity: 2, Price: decimal.RequireFromString("10.00")},
			{ProductID: 2, ProductName: "Product B", Quantity: 1, Price: decimal.RequireFromString("5.00")},
		},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newTestHandler(m *recordingMailer) *NotificationHandler {
	return NewNotificationHandler(invoice.NewRenderer("Storefront", "INR"), m, "Storefront", "INR",
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublisher_OrderPlaced(t *testing.T) {
	producer := &recordingProducer{}
	if err := NewPublisher(producer).OrderPlaced(context.Background(), testOrder()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event, ok := producer.event.(domain.OrderPlacedEvent)
	if !ok {
		t.Fatalf("expected OrderPlacedEvent, got %T", producer.event)
	}
	if producer.key != testOrder().ID || event.Recipient != "ana@example.com" {
		t.Errorf("unexpected publish: key=%s recipient=%s", producer.key, event.Recipient)
	}
}

func TestNotificationHandler_Handle(t *testing.T) {
	t.Run("sends confirmation with invoice", func(t *testing.T) {
		m := &recordingMailer{}
		payload, _ := json.Marshal(domain.OrderPlacedEvent{Order: testOrder(), Recipient: "ana@example.com"})

		if err := newTestHandler(m).Handle(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(m.sent) != 1 {
			t.Fatalf("expected one email, got %d", len(m.sent))
		}
		msg := m.sent[0]
		if msg.To != "ana@example.com" {
			t.Errorf("expected recipient ana@example.com, got %s", msg.To)
		}
		if len(msg.Attachments) != 1 || !strings.HasPrefix(string(msg.Attachments[0].Data), "%PDF-") {
			t.Error("expected a PDF invoice attachment")
		}
		if !strings.Contains(msg.Body, "Total: 25.00 INR") {
			t.Errorf("expected total in body, got:\n%s", msg.Body)
		}
	})

	t.Run("send failure is swallowed", func(t *testing.T) {
		m := &recordingMailer{err: errors.New("smtp down")}
		payload, _ := json.Marshal(domain.OrderPlacedEvent{Order: testOrder(), Recipient: "ana@example.com"})

		if err := newTestHandler(m).Handle(context.Background(), payload); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		m := &recordingMailer{}
		if err := newTestHandler(m).Handle(context.Background(), []byte("{")); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		if len(m.sent) != 0 {
			t.Error("expected no email")
		}
	})
}
