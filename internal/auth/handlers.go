package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/trivia-live/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for authentication.
type HTTPHandlers struct {
	authSvc *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for auth endpoints.
func NewHTTPHandlers(authSvc *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		authSvc: authSvc,
		logger:  logger,
	}
}

// Routes mounts the auth endpoints.
func (h *HTTPHandlers) Routes(r chi.Router) {
	r.Post("/guest", h.CreateGuest)
	r.With(RequireAuth).Get("/me", h.GetMe)
}

type createGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// CreateGuest handles POST /v1/auth/guest
func (h *HTTPHandlers) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req createGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	user, token, err := h.authSvc.CreateGuest(r.Context(), req.DisplayName)
	switch {
	case errors.Is(err, ErrDisplayNameRequired), errors.Is(err, ErrDisplayNameTooLong):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "display_name")
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("guest creation failed")
		httperrors.RespondInternalError(w, "Could not create guest")
		return
	}

	httperrors.RespondJSON(w, http.StatusCreated, map[string]any{
		"user_id":      user.ID,
		"display_name": user.DisplayName,
		"access_token": token,
		"expires_in":   int64(h.authSvc.tokens.AccessTTL().Seconds()),
	})
}

// GetMe handles GET /v1/auth/me
func (h *HTTPHandlers) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	httperrors.RespondJSON(w, http.StatusOK, map[string]any{
		"user_id":      claims.UserID,
		"display_name": claims.DisplayName,
		"is_guest":     claims.IsGuest,
	})
}
