package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

type balanceReader interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

type Handler struct {
	wallets  balanceReader
	currency string
	logger   *slog.Logger
}

func NewHandler(wallets balanceReader, currency string, logger *slog.Logger) *Handler {
	return &Handler{
		wallets:  wallets,
		currency: currency,
		logger:   logger,
	}
}

type balanceResponse struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	balance, err := h.wallets.Balance(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "wallet not found")
			return
		}
		h.logger.Error("failed to read wallet balance", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, balanceResponse{Balance: balance, Currency: h.currency})
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
