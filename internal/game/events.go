package game

import (
	"context"
	"time"
)

// Event types pushed to a session's connected clients.
const (
	EventParticipantJoined = "participant_joined"
	EventGameStarted       = "game_started"
	EventAnswerSubmitted   = "answer_submitted"
	EventQuestionEnded     = "question_ended"
	EventQuestionStarted   = "question_started"
	EventGameCompleted     = "game_completed"
	EventGameCancelled     = "game_cancelled"
)

// Event is a state change addressed to every client of one session.
type Event struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"game_session_id"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events to a session's clients on a best-effort basis.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, evt Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, Event) error { return nil }

// AnswerSubmittedPayload tells clients someone answered without revealing correctness.
type AnswerSubmittedPayload struct {
	ParticipantID string `json:"participant_id"`
	QuestionIndex int    `json:"question_index"`
}

// QuestionEndedPayload reveals the answer once a question closes.
type QuestionEndedPayload struct {
	QuestionIndex int    `json:"question_index"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}
