package leaderboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/trivia-live/pkg/http/errors"
)

const defaultLimit = 10

// HTTPHandler exposes pack leaderboards.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// Routes mounts GET /{packID}?window=weekly&limit=10.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Get("/{packID}", h.HandleGet)
}

// HandleGet responds with the current leaderboard of a pack.
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	packID := chi.URLParam(r, "packID")

	window := r.URL.Query().Get("window")
	if window == "" {
		window = WindowAllTime
	}
	if !ValidWindow(window) {
		httperrors.RespondError(w, http.StatusBadRequest, httperrors.ErrCodeValidationFailed, "unknown leaderboard window")
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	top, err := h.svc.Top(r.Context(), packID, window, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("pack_id", packID).Str("window", window).Msg("leaderboard fetch failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, "leaderboard unavailable")
		return
	}

	httperrors.RespondJSON(w, http.StatusOK, map[string]any{
		"pack_id":      packID,
		"window":       window,
		"top":          top,
		"retrieved_at": time.Now().UTC().Format(time.RFC3339),
	})
}
