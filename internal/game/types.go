package game

import (
	"time"
)

// Status is the lifecycle state of a game session.
type Status string

// Session lifecycle states.
const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// DefaultDisplayName is used when the host profile lookup yields nothing.
const DefaultDisplayName = "Host"

// Session represents one live game instance built from a pack.
type Session struct {
	ID                   string    `json:"id"`
	JoinCode             string    `json:"join_code"`
	HostUserID           string    `json:"host_user_id"`
	PackID               string    `json:"pack_id"`
	Status               Status    `json:"status"`
	MaxParticipants      int       `json:"max_participants"`
	QuestionCount        int       `json:"question_count"`
	TimeLimitSeconds     int       `json:"time_limit_seconds"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Participant is one user's seat in one session.
type Participant struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"game_session_id"`
	UserID         string    `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	Score          int       `json:"score"`
	IsHost         bool      `json:"is_host"`
	JoinedAt       time.Time `json:"joined_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// GameQuestion is the per-session ledger row for one question occurrence.
// Answers and Scores are keyed by participant id.
type GameQuestion struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"game_session_id"`
	QuestionID string            `json:"question_id"`
	Index      int               `json:"question_index"`
	StartedAt  *time.Time        `json:"start_time,omitempty"`
	EndedAt    *time.Time        `json:"end_time,omitempty"`
	Answers    map[string]string `json:"participant_answers"`
	Scores     map[string]int    `json:"participant_scores"`
}

// Open reports whether the question currently accepts answers.
func (q *GameQuestion) Open() bool {
	return q.StartedAt != nil && q.EndedAt == nil
}

// Answered reports whether participantID already has an answer recorded.
func (q *GameQuestion) Answered(participantID string) bool {
	_, ok := q.Answers[participantID]
	return ok
}

// Question is the canonical, pack-scoped question owned by the question store.
type Question struct {
	ID            string `json:"id"`
	PackID        string `json:"pack_id"`
	Text          string `json:"text"`
	CorrectAnswer string `json:"correct_answer"`
}

// CreateSessionRequest carries the host's settings for a new session.
type CreateSessionRequest struct {
	HostUserID       string
	PackID           string
	MaxParticipants  int
	QuestionCount    int
	TimeLimitSeconds int
}

// SubmitAnswerRequest identifies one answer for the current question.
type SubmitAnswerRequest struct {
	SessionID     string
	ParticipantID string
	QuestionIndex int
	Answer        string
}

// AnswerOutcome is returned to the submitting participant.
type AnswerOutcome struct {
	IsCorrect     bool   `json:"is_correct"`
	CorrectAnswer string `json:"correct_answer"`
	ScoreAwarded  int    `json:"score_awarded"`
	TotalScore    int    `json:"total_score"`
}

// QuestionPayload is a question ready for presentation. Options holds the correct
// answer and the distractors shuffled together.
type QuestionPayload struct {
	SessionID        string     `json:"game_session_id"`
	GameQuestionID   string     `json:"game_question_id"`
	QuestionID       string     `json:"question_id"`
	Index            int        `json:"question_index"`
	QuestionCount    int        `json:"question_count"`
	Text             string     `json:"text"`
	Options          []string   `json:"options"`
	CorrectAnswer    string     `json:"correct_answer,omitempty"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	StartedAt        *time.Time `json:"start_time,omitempty"`
}

// Public returns a copy safe to show to players.
func (p QuestionPayload) Public() QuestionPayload {
	p.CorrectAnswer = ""
	return p
}

// AdvanceResult is either the next question or a completion signal. Next is nil
// when the session moved on but the new question could not be loaded; clients fetch
// it with PresentQuestion.
type AdvanceResult struct {
	Session   *Session         `json:"session"`
	Completed bool             `json:"completed"`
	Next      *QuestionPayload `json:"next,omitempty"`
}

// Results aggregates a session's ledger at read time.
type Results struct {
	Session      *Session            `json:"session"`
	Final        bool                `json:"final"`
	Participants []ParticipantResult `json:"participants"`
	Questions    []QuestionSummary   `json:"questions"`
}

// ParticipantResult is one ranked row of the results table.
type ParticipantResult struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	Score         int    `json:"score"`
	IsHost        bool   `json:"is_host"`
	CorrectCount  int    `json:"correct_count"`
}

// QuestionSummary aggregates one question's answers.
type QuestionSummary struct {
	Index           int     `json:"question_index"`
	QuestionID      string  `json:"question_id"`
	AnswerCount     int     `json:"answer_count"`
	CorrectCount    int     `json:"correct_count"`
	CorrectPercent  float64 `json:"correct_percent"`
	AnsweredPercent float64 `json:"answered_percent"`
}
