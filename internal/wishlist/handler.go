package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

type store interface {
	List(ctx context.Context, userID string) ([]domain.WishlistItem, error)
	Add(ctx context.Context, userID string, productID int64) error
	Remove(ctx context.Context, userID string, productID int64) error
}

type Handler struct {
	store  store
	logger *slog.Logger
}

func NewHandler(store store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	h.respondWithList(w, r, user.ID, http.StatusOK)
}

type addRequest struct {
	ProductID int64 `json:"product_id"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.store.Add(r.Context(), user.ID, req.ProductID); err != nil {
		h.handleStoreError(w, err, "failed to add wishlist item")
		return
	}

	h.respondWithList(w, r, user.ID, http.StatusCreated)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	productID, err := strconv.ParseInt(r.PathValue("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.store.Remove(r.Context(), user.ID, productID); err != nil {
		h.handleStoreError(w, err, "failed to remove wishlist item")
		return
	}

	h.respondWithList(w, r, user.ID, http.StatusOK)
}

func (h *Handler) respondWithList(w http.ResponseWriter, r *http.Request, userID string, status int) {
	items, err := h.store.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load wishlist", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, status, items)
}

func (h *Handler) handleStoreError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "product not found")
	default:
		h.logger.Error(msg, "error", err)
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
	h.writeJSON(w, status, map[string]string{"error": message})
}
