package game

import (
	"context"
	"time"
)

// QuestionSource provides read-only access to canonical questions and their distractors.
type QuestionSource interface {
	ListByPack(ctx context.Context, packID string) ([]Question, error)
	Get(ctx context.Context, questionID string) (*Question, error)
	IncorrectAnswers(ctx context.Context, questionID string) ([]string, error)
}

// Prefetcher is optionally implemented by a QuestionSource that can warm its cache
// for a session's question sequence.
type Prefetcher interface {
	Prefetch(ctx context.Context, questionIDs []string) error
}

// ResultsRecorder receives the final results of every completed session.
type ResultsRecorder interface {
	RecordResults(ctx context.Context, results *Results) error
}

// HistoryStore is the append-only per-user answer log plus per-user-per-pack play counts.
type HistoryStore interface {
	SeenQuestionIDs(ctx context.Context, userIDs, questionIDs []string) (map[string]struct{}, error)
	RecordAnswerEvent(ctx context.Context, userID, questionID string, correct bool) error
	IncrementPlayCount(ctx context.Context, userID, packID string) error
}

// IdentityLookup resolves profile display names. An empty name means unknown.
type IdentityLookup interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// ActivateParams describes the all-or-nothing transition of a session to active.
type ActivateParams struct {
	SessionID     string
	QuestionCount int
	Questions     []GameQuestion
	StartedAt     time.Time
}

// SessionStore persists sessions. Mutating calls are compare-and-set: they return
// ErrInvalidState when the expected prior state no longer holds.
type SessionStore interface {
	// CreateSession stores the session and its host participant atomically.
	// A join code collision yields ErrConflict.
	CreateSession(ctx context.Context, session *Session, host *Participant) error
	JoinCodeInUse(ctx context.Context, code string) (bool, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	GetSessionByCode(ctx context.Context, code string) (*Session, error)
	ActivateSession(ctx context.Context, params ActivateParams) (*Session, error)
	AdvanceSession(ctx context.Context, sessionID string, fromIndex int, at time.Time) (*Session, error)
	CompleteSession(ctx context.Context, sessionID string, fromIndex int, at time.Time) (*Session, error)
	CancelSession(ctx context.Context, sessionID string, at time.Time) (*Session, error)
}

// ParticipantStore persists participants.
type ParticipantStore interface {
	// AddParticipant enforces capacity (ErrCapacityExceeded), pending status
	// (ErrInvalidState) and (session, user) uniqueness (ErrConflict).
	AddParticipant(ctx context.Context, p *Participant, maxParticipants int) error
	GetParticipant(ctx context.Context, participantID string) (*Participant, error)
	GetParticipantByUser(ctx context.Context, sessionID, userID string) (*Participant, error)
	ListParticipants(ctx context.Context, sessionID string) ([]Participant, error)
	CountParticipants(ctx context.Context, sessionID string) (int, error)
	UpdateDisplayName(ctx context.Context, participantID, displayName string) error
}

// AnswerRecord is one scored submission.
type AnswerRecord struct {
	GameQuestionID string
	ParticipantID  string
	Answer         string
	Score          int
	At             time.Time
}

// GameQuestionStore persists the per-question ledger.
type GameQuestionStore interface {
	GetGameQuestion(ctx context.Context, sessionID string, index int) (*GameQuestion, error)
	ListGameQuestions(ctx context.Context, sessionID string) ([]GameQuestion, error)
	// RecordAnswer stores the answer with its score and adds the score to the
	// participant's total in one step, returning the new total. It succeeds only
	// while the question is open and current in an active session (ErrInvalidState
	// otherwise); a second answer by the same participant yields ErrConflict.
	RecordAnswer(ctx context.Context, rec AnswerRecord) (int, error)
	// EndQuestion sets the end time if the question is open; it is a no-op otherwise.
	EndQuestion(ctx context.Context, gameQuestionID string, at time.Time) error
}

// Store bundles the three game stores a single backend provides.
type Store interface {
	SessionStore
	ParticipantStore
	GameQuestionStore
}
