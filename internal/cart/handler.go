package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	view, err := h.service.View(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if _, err := h.service.AddItem(r.Context(), user.ID, req.ProductID, quantity); err != nil {
		h.handleServiceError(w, err, "failed to add cart item")
		return
	}

	h.respondWithCart(w, r, user.ID, http.StatusCreated)
}

type updateQuantityRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || itemID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.service.UpdateQuantity(r.Context(), user.ID, itemID, req.Delta); err != nil {
		h.handleServiceError(w, err, "failed to update cart item")
		return
	}

	h.respondWithCart(w, r, user.ID, http.StatusOK)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || itemID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.service.RemoveItem(r.Context(), user.ID, itemID); err != nil {
		h.handleServiceError(w, err, "failed to remove cart item")
		return
	}

	h.respondWithCart(w, r, user.ID, http.StatusOK)
}

func (h *Handler) respondWithCart(w http.ResponseWriter, r *http.Request, userID string, status int) {
	view, err := h.service.View(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, status, view)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "cart item or product not found")
	case errors.Is(err, domain.ErrNotEnoughStock):
		h.writeError(w, http.StatusConflict, domain.ErrNotEnoughStock.Error())
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
