package email

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testSender() *Sender {
	return NewSender(Config{Host: "localhost", Port: 2525, From: "orders@storefront.test"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSender_Build(t *testing.T) {
	msg, err := testSender().build(Message{
		To:          "ana@example.com",
		Subject:     "Order confirmation",
		Body:        "Thanks for your order.",
		Attachments: []Attachment{{Name: "invoice.pdf", Data: []byte("%PDF-1.3")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("failed to write message: %v", err)
	}

	raw := buf.String()
	for _, want := range []string{"Subject: Order confirmation", "ana@example.com", "orders@storefront.test", "invoice.pdf"} {
		if !strings.Contains(raw, want) {
			t.Errorf("expected message to contain %q", want)
		}
	}
}

func TestSender_RejectsInvalidRecipient(t *testing.T) {
	err := testSender().Send(context.Background(), Message{To: "not an address", Subject: "x"})
	if err == nil || !strings.Contains(err.Error(), "invalid recipient") {
		t.Errorf("expected invalid recipient error, got %v", err)
	}
}
