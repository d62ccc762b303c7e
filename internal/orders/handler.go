package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

type orderStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	GetForUser(ctx context.Context, id, userID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type invoiceRenderer interface {
	Render(w io.Writer, order *domain.Order) error
}

type Handler struct {
	repo     orderStore
	invoices invoiceRenderer
	logger   *slog.Logger
}

func NewHandler(repo orderStore, invoices invoiceRenderer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		invoices: invoices,
		logger:   logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	orders, err := h.repo.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders), "user_id", user.ID)
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOwnOrder(w, r)
	if !ok {
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleInvoice(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOwnOrder(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.invoices.Render(&buf, order); err != nil {
		h.logger.Error("failed to render invoice", "error", err, "order_id", order.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice-`+order.ID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Error("failed to write invoice", "error", err, "order_id", order.ID)
	}
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to update order status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

// loadOwnOrder writes the error response itself and reports whether the
// caller may continue. Orders of other users are reported as not found.
func (h *Handler) loadOwnOrder(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return nil, false
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return nil, false
	}

	order, err := h.repo.GetForUser(r.Context(), id, user.ID)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return nil, false
	}

	return order, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
