package handler

import (
	"log/slog"
	"net/http"

	"github.com/festal-inc/haishin/internal/service"
)

// AuthHandler resolves operator identity before a batch session starts.
type AuthHandler struct {
	service *service.BatchService
	logger  *slog.Logger
}

func NewAuthHandler(service *service.BatchService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{service: service, logger: logger}
}

type authRequest struct {
	Email string `json:"user_email" validate:"required,email"`
}

// Verify handles POST /api/auth. It checks the operator address against
// the company domain and resolves the display identity from the provider
// directory.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	identity, err := h.service.VerifyOperator(r.Context(), req.Email)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, identity)
}
