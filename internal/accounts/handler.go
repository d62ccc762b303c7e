package accounts

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const HeaderInternalToken = "X-Internal-Token"

type provisioner interface {
	Provision(ctx context.Context, user domain.User, initialBalance decimal.Decimal) error
}

type Handler struct {
	accounts       provisioner
	initialBalance decimal.Decimal
	token          string
	logger         *slog.Logger
}

// NewHandler builds the provisioning endpoint. Callers must present token in
// X-Internal-Token; with an empty token every request is rejected.
func NewHandler(accounts provisioner, initialBalance decimal.Decimal, token string, logger *slog.Logger) *Handler {
	return &Handler{
		accounts:       accounts,
		initialBalance: initialBalance,
		token:          token,
		logger:         logger,
	}
}

type provisionRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		h.writeError(w, http.StatusForbidden, "user provisioning disabled")
		return
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(HeaderInternalToken)), []byte(h.token)) != 1 {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || !strings.Contains(req.Email, "@") {
		h.writeError(w, http.StatusBadRequest, "id and a valid email are required")
		return
	}

	user := domain.User{ID: req.ID, Email: req.Email, Name: req.Name}
	if err := h.accounts.Provision(r.Context(), user, h.initialBalance); err != nil {
		h.logger.Error("failed to provision user", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("user provisioned", "user_id", user.ID)
	h.writeJSON(w, http.StatusCreated, user)
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
