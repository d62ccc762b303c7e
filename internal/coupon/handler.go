package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

type couponFinder interface {
	Active(ctx context.Context, code string) (*domain.Coupon, error)
}

type sessionStore interface {
	Apply(ctx context.Context, userID, code string) error
	Clear(ctx context.Context, userID string) error
}

type lineLister interface {
	Lines(ctx context.Context, userID string) ([]domain.CartLine, error)
}

type Handler struct {
	coupons  couponFinder
	sessions sessionStore
	carts    lineLister
	logger   *slog.Logger
}

func NewHandler(coupons couponFinder, sessions sessionStore, carts lineLister, logger *slog.Logger) *Handler {
	return &Handler{
		coupons:  coupons,
		sessions: sessions,
		carts:    carts,
		logger:   logger,
	}
}

type applyRequest struct {
	Code string `json:"code"`
}

// HandleApply validates the code and remembers it for the session. The
// response is the cart priced with the discount.
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coupon, err := h.coupons.Active(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCoupon) {
			h.writeError(w, http.StatusUnprocessableEntity, domain.ErrInvalidCoupon.Error())
			return
		}
		h.logger.Error("failed to look up coupon", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	lines, err := h.carts.Lines(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.sessions.Apply(r.Context(), user.ID, coupon.Code); err != nil {
		h.logger.Error("failed to store session coupon", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("coupon applied", "user_id", user.ID, "code", coupon.Code)
	h.writeJSON(w, http.StatusOK, pricing.Price(lines, coupon))
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	if err := h.sessions.Clear(r.Context(), user.ID); err != nil {
		h.logger.Error("failed to clear session coupon", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
