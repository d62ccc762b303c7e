package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Handler struct {
	proxy    *ServiceProxy
	verifier *TokenVerifier
	logger   *slog.Logger
}

func NewHandler(proxy *ServiceProxy, verifier *TokenVerifier, logger *slog.Logger) *Handler {
	return &Handler{
		proxy:    proxy,
		verifier: verifier,
		logger:   logger,
	}
}

// HandlePublic forwards catalog reads without requiring a token.
func (h *Handler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, nil)
}

// HandleAuthenticated verifies the bearer token and forwards the caller's
// identity to the storefront.
func (h *Handler) HandleAuthenticated(w http.ResponseWriter, r *http.Request) {
	token, err := BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	user, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Info("rejected token", "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	h.proxyRequest(w, r, &user)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, user *domain.User) {
	path := r.URL.Path
	resp, err := h.proxy.ForwardRequest(r.Context(), r, path, user)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range []string{"Content-Type", "Content-Disposition"} {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
