package game

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-live/internal/auth"
	httperrors "github.com/gokatarajesh/trivia-live/pkg/http/errors"
	ws "github.com/gokatarajesh/trivia-live/pkg/http/ws"
)

// WSHandler attaches participants' WebSocket connections to the session hub and
// serves in-game commands over them.
type WSHandler struct {
	service  *Service
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler creates a session WebSocket handler.
func NewWSHandler(service *Service, hub *ws.Hub, upgrader websocket.Upgrader, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		hub:      hub,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "game_ws").Logger(),
	}
}

// HandleWebSocket handles GET /ws/games/{sessionID}?token=...
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	participant, err := h.service.ParticipantForUser(r.Context(), sessionID, claims.UserID)
	if err != nil {
		status, code := ErrorStatus(err)
		httperrors.RespondError(w, status, code, "Not a participant of this session")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.serve(conn, sessionID, claims.UserID, participant.ID)
}

func (h *WSHandler) serve(conn *websocket.Conn, sessionID, userID, participantID string) {
	logger := h.logger.With().Str("session_id", sessionID).Str("user_id", userID).Logger()
	wsConn := ws.NewConnection(conn, logger)
	h.hub.Register(sessionID, userID, wsConn)

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), wsConn, sessionID, userID, participantID, msg)
	})

	h.hub.Unregister(sessionID, userID, wsConn)
}

func (h *WSHandler) handleMessage(ctx context.Context, conn *ws.Connection, sessionID, userID, participantID string, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeSubmitAnswer:
		var req ws.SubmitAnswerPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return h.sendError(conn, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
		}
		outcome, err := h.service.SubmitAnswer(ctx, SubmitAnswerRequest{
			SessionID:     sessionID,
			ParticipantID: participantID,
			QuestionIndex: req.QuestionIndex,
			Answer:        req.Answer,
		})
		if err != nil {
			return h.sendServiceError(conn, msg.RequestID, err)
		}
		return h.send(conn, msg.RequestID, ws.TypeAnswerResult, outcome)

	case ws.TypeEndQuestion:
		// the outcome reaches every client as a question_ended event
		if _, err := h.service.EndCurrentQuestion(ctx, sessionID, userID); err != nil {
			return h.sendServiceError(conn, msg.RequestID, err)
		}
		return nil

	case ws.TypeAdvance:
		// the outcome reaches every client as a question_started or game_completed event
		if _, err := h.service.Advance(ctx, sessionID, userID); err != nil {
			return h.sendServiceError(conn, msg.RequestID, err)
		}
		return nil

	case ws.TypeRequestResults:
		results, err := h.service.Results(ctx, sessionID)
		if err != nil {
			return h.sendServiceError(conn, msg.RequestID, err)
		}
		return h.send(conn, msg.RequestID, ws.TypeResults, results)

	case ws.TypePing:
		return h.send(conn, msg.RequestID, ws.TypePong, struct{}{})

	default:
		return h.sendError(conn, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *WSHandler) send(conn *ws.Connection, requestID, msgType string, payload any) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	msg.RequestID = requestID
	return conn.Send(msg)
}

func (h *WSHandler) sendServiceError(conn *ws.Connection, requestID string, err error) error {
	_, code := ErrorStatus(err)
	return h.sendError(conn, requestID, code, err.Error())
}

func (h *WSHandler) sendError(conn *ws.Connection, requestID, code, message string) error {
	return h.send(conn, requestID, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}
