package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type checkouter interface {
	Checkout(ctx context.Context, req Request) (*Result, error)
}

type Handler struct {
	service checkouter
	logger  *slog.Logger
}

func NewHandler(service checkouter, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type checkoutRequest struct {
	domain.ShippingDetails
	PaymentMethod string `json:"payment_method"`
	CouponCode    string `json:"coupon_code"`
}

type checkoutResponse struct {
	OrderID string `json:"order_id"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ProductID int64  `json:"product_id,omitempty"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	var body checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Checkout(r.Context(), Request{
		UserID:         user.ID,
		Shipping:       body.ShippingDetails,
		PaymentMethod:  body.PaymentMethod,
		CouponCode:     body.CouponCode,
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		h.handleError(w, err, user.ID)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	h.writeJSON(w, status, checkoutResponse{OrderID: result.OrderID})
}

func (h *Handler) handleError(w http.ResponseWriter, err error, userID string) {
	var oos *domain.OutOfStockError
	switch {
	case errors.As(err, &oos):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: oos.Error(), ProductID: oos.ProductID})
	case errors.Is(err, ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		h.writeError(w, http.StatusConflict, domain.ErrEmptyCart.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, domain.ErrInsufficientFunds.Error())
	case errors.Is(err, domain.ErrInvalidCoupon):
		h.writeError(w, http.StatusUnprocessableEntity, domain.ErrInvalidCoupon.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "wallet not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.logger.Warn("checkout aborted", "error", err, "user_id", userID)
		h.writeError(w, http.StatusServiceUnavailable, "checkout timed out")
	default:
		h.logger.Error("checkout failed", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}
