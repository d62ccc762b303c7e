package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
)

type invoiceRenderer interface {
	Render(w io.Writer, order *domain.Order) error
}

type mailer interface {
	Send(ctx context.Context, m email.Message) error
}

// NotificationHandler consumes order.placed events. Delivery is at-most-once:
// every failure is logged and swallowed so the message is never redelivered.
type NotificationHandler struct {
	invoices  invoiceRenderer
	mailer    mailer
	storeName string
	currency  string
	logger    *slog.Logger
}

func NewNotificationHandler(invoices invoiceRenderer, mailer mailer, storeName, currency string, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		invoices:  invoices,
		mailer:    mailer,
		storeName: storeName,
		currency:  currency,
		logger:    logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("dropping malformed order placed event", "error", err)
		return nil
	}

	order := event.Order
	if event.Recipient == "" {
		h.logger.Warn("order has no recipient, skipping confirmation", "order_id", order.ID)
		return nil
	}

	h.logger.Info("processing order placed event", "order_id", order.ID, "user_id", order.UserID)

	var pdf bytes.Buffer
	attachments := []email.Attachment{}
	if err := h.invoices.Render(&pdf, &order); err != nil {
		h.logger.Error("failed to render invoice, sending without attachment", "error", err, "order_id", order.ID)
	} else {
		attachments = append(attachments, email.Attachment{Name: "invoice-" + order.ID + ".pdf", Data: pdf.Bytes()})
	}

	msg := email.Message{
		To:          event.Recipient,
		Subject:     fmt.Sprintf("%s order confirmation %s", h.storeName, order.ID),
		Body:        h.body(order),
		Attachments: attachments,
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", order.ID)
		return nil
	}

	h.logger.Info("order confirmation sent", "order_id", order.ID)
	return nil
}

func (h *NotificationHandler) body(order domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", order.Shipping.FirstName)
	fmt.Fprintf(&b, "Thanks for shopping with %s. Your order %s has been placed.\n\n", h.storeName, order.ID)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "  %d x %s  %s %s\n", item.Quantity, item.ProductName, item.Total().StringFixed(2), h.currency)
	}
	if order.CouponCode != "" {
		fmt.Fprintf(&b, "\nCoupon %s: -%d%%\n", order.CouponCode, order.DiscountPercent)
	}
	fmt.Fprintf(&b, "\nTotal: %s %s\n", order.Total.StringFixed(2), h.currency)
	fmt.Fprintf(&b, "Payment: %s\n", order.PaymentMethod)
	return b.String()
}
