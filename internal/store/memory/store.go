// Package memory keeps every engine store in process memory. It backs local
// development (STORE_DRIVER=memory) and the engine tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

// Store implements game.Store under a single mutex. Values are copied in and out so
// callers never share memory with the store.
type Store struct {
	mu sync.Mutex

	sessions         map[string]*game.Session
	participants     map[string]*game.Participant
	sessionSeats     map[string][]string // session id -> participant ids in join order
	gameQuestions    map[string]*game.GameQuestion
	sessionQuestions map[string][]string // session id -> game question ids by index
}

var _ game.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions:         make(map[string]*game.Session),
		participants:     make(map[string]*game.Participant),
		sessionSeats:     make(map[string][]string),
		gameQuestions:    make(map[string]*game.GameQuestion),
		sessionQuestions: make(map[string][]string),
	}
}

// CreateSession implements game.SessionStore.
func (s *Store) CreateSession(_ context.Context, session *game.Session, host *game.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s: %w", session.ID, game.ErrConflict)
	}
	if s.codeInUseLocked(session.JoinCode) {
		return fmt.Errorf("join code %s: %w", session.JoinCode, game.ErrConflict)
	}

	sc := *session
	s.sessions[sc.ID] = &sc
	hc := *host
	s.participants[hc.ID] = &hc
	s.sessionSeats[sc.ID] = []string{hc.ID}
	return nil
}

// JoinCodeInUse implements game.SessionStore.
func (s *Store) JoinCodeInUse(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codeInUseLocked(code), nil
}

func (s *Store) codeInUseLocked(code string) bool {
	for _, sess := range s.sessions {
		if sess.JoinCode == code && !sess.Status.Terminal() {
			return true
		}
	}
	return false
}

// GetSession implements game.SessionStore.
func (s *Store) GetSession(_ context.Context, sessionID string) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, game.ErrNotFound)
	}
	out := *sess
	return &out, nil
}

// GetSessionByCode implements game.SessionStore. The most recently created session
// carrying the code wins.
func (s *Store) GetSessionByCode(_ context.Context, code string) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *game.Session
	for _, sess := range s.sessions {
		if sess.JoinCode != code {
			continue
		}
		if found == nil || sess.CreatedAt.After(found.CreatedAt) {
			found = sess
		}
	}
	if found == nil {
		return nil, fmt.Errorf("join code %s: %w", code, game.ErrNotFound)
	}
	out := *found
	return &out, nil
}

// ActivateSession implements game.SessionStore.
func (s *Store) ActivateSession(_ context.Context, params game.ActivateParams) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[params.SessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", params.SessionID, game.ErrNotFound)
	}
	if sess.Status != game.StatusPending {
		return nil, fmt.Errorf("activate session %s from %s: %w", sess.ID, sess.Status, game.ErrInvalidState)
	}
	if len(params.Questions) == 0 {
		return nil, fmt.Errorf("activate session %s without questions: %w", sess.ID, game.ErrInvalidState)
	}

	ids := make([]string, len(params.Questions))
	for i, gq := range params.Questions {
		row := cloneGameQuestion(&gq)
		row.SessionID = sess.ID
		row.Index = i
		if i == 0 {
			started := params.StartedAt
			row.StartedAt = &started
		}
		s.gameQuestions[row.ID] = row
		ids[i] = row.ID
	}
	s.sessionQuestions[sess.ID] = ids

	sess.Status = game.StatusActive
	sess.QuestionCount = params.QuestionCount
	sess.CurrentQuestionIndex = 0
	sess.UpdatedAt = params.StartedAt

	out := *sess
	return &out, nil
}

// AdvanceSession implements game.SessionStore.
func (s *Store) AdvanceSession(_ context.Context, sessionID string, fromIndex int, at time.Time) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.activeAtLocked(sessionID, fromIndex)
	if err != nil {
		return nil, err
	}
	next := fromIndex + 1
	ids := s.sessionQuestions[sessionID]
	if next >= len(ids) {
		return nil, fmt.Errorf("advance session %s past question %d: %w", sessionID, fromIndex, game.ErrInvalidState)
	}

	s.closeLocked(ids[fromIndex], at)
	started := at
	s.gameQuestions[ids[next]].StartedAt = &started

	sess.CurrentQuestionIndex = next
	sess.UpdatedAt = at
	out := *sess
	return &out, nil
}

// CompleteSession implements game.SessionStore.
func (s *Store) CompleteSession(_ context.Context, sessionID string, fromIndex int, at time.Time) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.activeAtLocked(sessionID, fromIndex)
	if err != nil {
		return nil, err
	}
	if ids := s.sessionQuestions[sessionID]; fromIndex < len(ids) {
		s.closeLocked(ids[fromIndex], at)
	}

	sess.Status = game.StatusCompleted
	sess.UpdatedAt = at
	out := *sess
	return &out, nil
}

// CancelSession implements game.SessionStore.
func (s *Store) CancelSession(_ context.Context, sessionID string, at time.Time) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, game.ErrNotFound)
	}
	if sess.Status.Terminal() {
		return nil, fmt.Errorf("cancel session %s from %s: %w", sessionID, sess.Status, game.ErrInvalidState)
	}
	sess.Status = game.StatusCancelled
	sess.UpdatedAt = at
	out := *sess
	return &out, nil
}

func (s *Store) activeAtLocked(sessionID string, index int) (*game.Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, game.ErrNotFound)
	}
	if sess.Status != game.StatusActive || sess.CurrentQuestionIndex != index {
		return nil, fmt.Errorf("session %s is %s at question %d, expected active at %d: %w",
			sessionID, sess.Status, sess.CurrentQuestionIndex, index, game.ErrInvalidState)
	}
	return sess, nil
}

func (s *Store) closeLocked(gameQuestionID string, at time.Time) {
	gq := s.gameQuestions[gameQuestionID]
	if gq == nil || gq.StartedAt == nil || gq.EndedAt != nil {
		return
	}
	ended := at
	gq.EndedAt = &ended
}

// AddParticipant implements game.ParticipantStore.
func (s *Store) AddParticipant(_ context.Context, p *game.Participant, maxParticipants int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[p.SessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", p.SessionID, game.ErrNotFound)
	}
	if sess.Status != game.StatusPending {
		return fmt.Errorf("join session %s in %s: %w", sess.ID, sess.Status, game.ErrInvalidState)
	}
	seats := s.sessionSeats[sess.ID]
	for _, id := range seats {
		if s.participants[id].UserID == p.UserID {
			return fmt.Errorf("user %s already in %s: %w", p.UserID, sess.ID, game.ErrConflict)
		}
	}
	if len(seats) >= maxParticipants {
		return fmt.Errorf("session %s holds %d: %w", sess.ID, len(seats), game.ErrCapacityExceeded)
	}

	pc := *p
	s.participants[pc.ID] = &pc
	s.sessionSeats[sess.ID] = append(seats, pc.ID)
	return nil
}

// GetParticipant implements game.ParticipantStore.
func (s *Store) GetParticipant(_ context.Context, participantID string) (*game.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("participant %s: %w", participantID, game.ErrNotFound)
	}
	out := *p
	return &out, nil
}

// GetParticipantByUser implements game.ParticipantStore.
func (s *Store) GetParticipantByUser(_ context.Context, sessionID, userID string) (*game.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.sessionSeats[sessionID] {
		if p := s.participants[id]; p.UserID == userID {
			out := *p
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user %s in session %s: %w", userID, sessionID, game.ErrNotFound)
}

// ListParticipants implements game.ParticipantStore.
func (s *Store) ListParticipants(_ context.Context, sessionID string) ([]game.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats := s.sessionSeats[sessionID]
	out := make([]game.Participant, 0, len(seats))
	for _, id := range seats {
		out = append(out, *s.participants[id])
	}
	return out, nil
}

// CountParticipants implements game.ParticipantStore.
func (s *Store) CountParticipants(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessionSeats[sessionID]), nil
}

// UpdateDisplayName implements game.ParticipantStore.
func (s *Store) UpdateDisplayName(_ context.Context, participantID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return fmt.Errorf("participant %s: %w", participantID, game.ErrNotFound)
	}
	p.DisplayName = displayName
	return nil
}

// GetGameQuestion implements game.GameQuestionStore.
func (s *Store) GetGameQuestion(_ context.Context, sessionID string, index int) (*game.GameQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sessionQuestions[sessionID]
	if index < 0 || index >= len(ids) {
		return nil, fmt.Errorf("question %d of session %s: %w", index, sessionID, game.ErrNotFound)
	}
	return cloneGameQuestion(s.gameQuestions[ids[index]]), nil
}

// ListGameQuestions implements game.GameQuestionStore.
func (s *Store) ListGameQuestions(_ context.Context, sessionID string) ([]game.GameQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sessionQuestions[sessionID]
	out := make([]game.GameQuestion, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneGameQuestion(s.gameQuestions[id]))
	}
	return out, nil
}

// RecordAnswer implements game.GameQuestionStore.
func (s *Store) RecordAnswer(_ context.Context, rec game.AnswerRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gq, ok := s.gameQuestions[rec.GameQuestionID]
	if !ok {
		return 0, fmt.Errorf("game question %s: %w", rec.GameQuestionID, game.ErrNotFound)
	}
	p, ok := s.participants[rec.ParticipantID]
	if !ok || p.SessionID != gq.SessionID {
		return 0, fmt.Errorf("participant %s in session %s: %w", rec.ParticipantID, gq.SessionID, game.ErrNotFound)
	}
	session := s.sessions[gq.SessionID]
	if session.Status != game.StatusActive || session.CurrentQuestionIndex != gq.Index || !gq.Open() {
		return 0, fmt.Errorf("answer to question %d of session %s (%s at %d): %w",
			gq.Index, session.ID, session.Status, session.CurrentQuestionIndex, game.ErrInvalidState)
	}
	if _, dup := gq.Answers[rec.ParticipantID]; dup {
		return 0, fmt.Errorf("participant %s answered %s: %w", rec.ParticipantID, rec.GameQuestionID, game.ErrConflict)
	}

	gq.Answers[rec.ParticipantID] = rec.Answer
	gq.Scores[rec.ParticipantID] = rec.Score
	p.Score += rec.Score
	p.LastActivityAt = rec.At
	return p.Score, nil
}

// EndQuestion implements game.GameQuestionStore.
func (s *Store) EndQuestion(_ context.Context, gameQuestionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.gameQuestions[gameQuestionID]; !ok {
		return fmt.Errorf("game question %s: %w", gameQuestionID, game.ErrNotFound)
	}
	s.closeLocked(gameQuestionID, at)
	return nil
}

func cloneGameQuestion(gq *game.GameQuestion) *game.GameQuestion {
	out := *gq
	out.Answers = make(map[string]string, len(gq.Answers))
	for k, v := range gq.Answers {
		out.Answers[k] = v
	}
	out.Scores = make(map[string]int, len(gq.Scores))
	for k, v := range gq.Scores {
		out.Scores[k] = v
	}
	if gq.StartedAt != nil {
		t := *gq.StartedAt
		out.StartedAt = &t
	}
	if gq.EndedAt != nil {
		t := *gq.EndedAt
		out.EndedAt = &t
	}
	return &out
}
