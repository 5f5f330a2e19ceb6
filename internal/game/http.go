package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-live/internal/auth"
	httperrors "github.com/gokatarajesh/trivia-live/pkg/http/errors"
)

// SessionDefaults fill in create requests that omit settings.
type SessionDefaults struct {
	MaxParticipants  int
	QuestionCount    int
	TimeLimitSeconds int
}

// HTTPHandlers provides REST endpoints for game sessions.
type HTTPHandlers struct {
	service  *Service
	defaults SessionDefaults
	logger   zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for game endpoints.
func NewHTTPHandlers(service *Service, defaults SessionDefaults, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service:  service,
		defaults: defaults,
		logger:   logger.With().Str("component", "game_http").Logger(),
	}
}

// Routes mounts the session endpoints. Callers must be authenticated.
func (h *HTTPHandlers) Routes(r chi.Router) {
	r.Use(auth.RequireAuth)
	r.Post("/", h.CreateSession)
	r.Post("/join", h.Join)
	r.Get("/code/{code}", h.GetSessionByCode)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Get("/participants", h.ListParticipants)
		r.Post("/start", h.Start)
		r.Get("/questions/{index}", h.GetQuestion)
		r.Post("/answers", h.SubmitAnswer)
		r.Post("/end-question", h.EndQuestion)
		r.Post("/advance", h.Advance)
		r.Post("/cancel", h.Cancel)
		r.Get("/results", h.Results)
	})
}

type createSessionRequest struct {
	PackID           string `json:"pack_id"`
	MaxParticipants  *int   `json:"max_participants,omitempty"`
	QuestionCount    *int   `json:"question_count,omitempty"`
	TimeLimitSeconds *int   `json:"time_limit_seconds,omitempty"`
}

type joinRequest struct {
	JoinCode    string `json:"join_code"`
	DisplayName string `json:"display_name,omitempty"`
}

type submitAnswerRequest struct {
	QuestionIndex *int   `json:"question_index"`
	Answer        string `json:"answer"`
}

type seatResponse struct {
	Session     *Session     `json:"session"`
	Participant *Participant `json:"participant"`
}

type sessionResponse struct {
	Session      *Session      `json:"session"`
	Participants []Participant `json:"participants"`
}

// CreateSession handles POST /v1/games
func (h *HTTPHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.PackID == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "pack_id is required", "pack_id")
		return
	}

	create := CreateSessionRequest{
		HostUserID:       claims.UserID,
		PackID:           req.PackID,
		MaxParticipants:  orDefault(req.MaxParticipants, h.defaults.MaxParticipants),
		QuestionCount:    orDefault(req.QuestionCount, h.defaults.QuestionCount),
		TimeLimitSeconds: orDefault(req.TimeLimitSeconds, h.defaults.TimeLimitSeconds),
	}
	if create.MaxParticipants < 1 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "max_participants must be at least 1", "max_participants")
		return
	}

	session, host, err := h.service.CreateSession(r.Context(), create)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusCreated, seatResponse{Session: session, Participant: host})
}

// Join handles POST /v1/games/join
func (h *HTTPHandlers) Join(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.JoinCode == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "join_code is required", "join_code")
		return
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = claims.DisplayName
	}

	session, participant, err := h.service.Join(r.Context(), req.JoinCode, claims.UserID, displayName)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, seatResponse{Session: session, Participant: participant})
}

// GetSessionByCode handles GET /v1/games/code/{code}
func (h *HTTPHandlers) GetSessionByCode(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	session, err := h.service.SessionByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, session)
}

// GetSession handles GET /v1/games/{sessionID}
func (h *HTTPHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	participants, err := h.service.Participants(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, sessionResponse{Session: session, Participants: participants})
}

// ListParticipants handles GET /v1/games/{sessionID}/participants
func (h *HTTPHandlers) ListParticipants(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	participants, err := h.service.Participants(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

// Start handles POST /v1/games/{sessionID}/start
func (h *HTTPHandlers) Start(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	session, err := h.service.Start(r.Context(), chi.URLParam(r, "sessionID"), claims.UserID)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, session)
}

// GetQuestion handles GET /v1/games/{sessionID}/questions/{index}
func (h *HTTPHandlers) GetQuestion(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "index must be a non-negative integer", "index")
		return
	}

	payload, err := h.service.PresentQuestion(r.Context(), chi.URLParam(r, "sessionID"), index, claims.UserID)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, payload)
}

// SubmitAnswer handles POST /v1/games/{sessionID}/answers
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.QuestionIndex == nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "question_index is required", "question_index")
		return
	}

	outcome, err := h.service.SubmitAnswerAsUser(r.Context(), sessionID, claims.UserID, *req.QuestionIndex, req.Answer)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, outcome)
}

// EndQuestion handles POST /v1/games/{sessionID}/end-question
func (h *HTTPHandlers) EndQuestion(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	gq, err := h.service.EndCurrentQuestion(r.Context(), chi.URLParam(r, "sessionID"), claims.UserID)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, gq)
}

// Advance handles POST /v1/games/{sessionID}/advance
func (h *HTTPHandlers) Advance(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	result, err := h.service.Advance(r.Context(), chi.URLParam(r, "sessionID"), claims.UserID)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, result)
}

// Cancel handles POST /v1/games/{sessionID}/cancel
func (h *HTTPHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	session, err := h.service.Cancel(r.Context(), chi.URLParam(r, "sessionID"), claims.UserID)
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, session)
}

// Results handles GET /v1/games/{sessionID}/results
func (h *HTTPHandlers) Results(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	results, err := h.service.Results(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err, claims.UserID)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, results)
}

func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, err error, userID string) {
	status, code := ErrorStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("game request failed")
		message = "Game service is temporarily unavailable"
	}
	httperrors.RespondError(w, status, code, message)
}

// ErrorStatus maps an engine error to an HTTP status and error code.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNoQuestions):
		return http.StatusConflict, httperrors.ErrCodePackHasNoQuestions
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, httperrors.ErrCodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden, httperrors.ErrCodeNotHost
	case errors.Is(err, ErrCapacityExceeded):
		return http.StatusConflict, httperrors.ErrCodeSessionFull
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, httperrors.ErrCodeAlreadyAnswered
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict, httperrors.ErrCodeInvalidState
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, httperrors.ErrCodeValidationFailed
	case errors.Is(err, ErrDependency):
		return http.StatusBadGateway, httperrors.ErrCodeUpstreamError
	default:
		return http.StatusInternalServerError, httperrors.ErrCodeInternalError
	}
}

func orDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
