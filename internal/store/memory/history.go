package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

// AnswerEvent is one entry of the per-user answer log.
type AnswerEvent struct {
	UserID     string
	QuestionID string
	Correct    bool
	AnsweredAt time.Time
}

// History implements game.HistoryStore. The answer log is append-only.
type History struct {
	mu         sync.Mutex
	events     []AnswerEvent
	seen       map[string]map[string]struct{} // user id -> question ids
	playCounts map[string]map[string]int      // user id -> pack id -> count
}

var _ game.HistoryStore = (*History)(nil)

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		seen:       make(map[string]map[string]struct{}),
		playCounts: make(map[string]map[string]int),
	}
}

// SeenQuestionIDs implements game.HistoryStore.
func (h *History) SeenQuestionIDs(_ context.Context, userIDs, questionIDs []string) (map[string]struct{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]struct{})
	for _, qid := range questionIDs {
		for _, uid := range userIDs {
			if _, ok := h.seen[uid][qid]; ok {
				out[qid] = struct{}{}
				break
			}
		}
	}
	return out, nil
}

// RecordAnswerEvent implements game.HistoryStore.
func (h *History) RecordAnswerEvent(_ context.Context, userID, questionID string, correct bool) error {
	if userID == "" || questionID == "" {
		return fmt.Errorf("answer event needs user and question: %w", game.ErrInvalidInput)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, AnswerEvent{
		UserID:     userID,
		QuestionID: questionID,
		Correct:    correct,
		AnsweredAt: time.Now().UTC(),
	})
	if h.seen[userID] == nil {
		h.seen[userID] = make(map[string]struct{})
	}
	h.seen[userID][questionID] = struct{}{}
	return nil
}

// IncrementPlayCount implements game.HistoryStore.
func (h *History) IncrementPlayCount(_ context.Context, userID, packID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.playCounts[userID] == nil {
		h.playCounts[userID] = make(map[string]int)
	}
	h.playCounts[userID][packID]++
	return nil
}

// PlayCount returns how many sessions of packID userID has started.
func (h *History) PlayCount(userID, packID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playCounts[userID][packID]
}

// Events returns a copy of the answer log.
func (h *History) Events() []AnswerEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]AnswerEvent(nil), h.events...)
}

// Directory implements game.IdentityLookup from seeded profiles.
type Directory struct {
	mu    sync.RWMutex
	names map[string]string
}

var _ game.IdentityLookup = (*Directory)(nil)

// NewDirectory creates a directory from seed users.
func NewDirectory(users ...SeedUser) *Directory {
	d := &Directory{names: make(map[string]string, len(users))}
	for _, u := range users {
		d.names[u.ID] = u.DisplayName
	}
	return d
}

// Set records a display name.
func (d *Directory) Set(userID, displayName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[userID] = displayName
}

// DisplayName implements game.IdentityLookup.
func (d *Directory) DisplayName(_ context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name, ok := d.names[userID]
	if !ok {
		return "", fmt.Errorf("user %s: %w", userID, game.ErrNotFound)
	}
	return name, nil
}

// CreateGuest registers a guest profile. A second guest with the same id yields
// game.ErrConflict.
func (d *Directory) CreateGuest(_ context.Context, userID, displayName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.names[userID]; ok {
		return fmt.Errorf("user %s: %w", userID, game.ErrConflict)
	}
	d.names[userID] = displayName
	return nil
}
