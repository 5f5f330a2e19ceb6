package game

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"
)

// HistoryPolicy decides what happens when the seen-question lookup fails.
type HistoryPolicy string

const (
	// HistoryPolicyDegrade treats every question as unseen and logs a warning.
	HistoryPolicyDegrade HistoryPolicy = "degrade"
	// HistoryPolicyFail aborts selection with a dependency error.
	HistoryPolicyFail HistoryPolicy = "fail"
)

// ParseHistoryPolicy maps a config value to a policy, defaulting to degrade.
func ParseHistoryPolicy(v string) (HistoryPolicy, error) {
	switch HistoryPolicy(v) {
	case "", HistoryPolicyDegrade:
		return HistoryPolicyDegrade, nil
	case HistoryPolicyFail:
		return HistoryPolicyFail, nil
	default:
		return "", fmt.Errorf("unknown history policy %q", v)
	}
}

// Selector picks the fixed question sequence for a session, preferring questions
// no participant has answered before.
type Selector struct {
	questions QuestionSource
	history   HistoryStore
	policy    HistoryPolicy
	shuffle   func(n int, swap func(i, j int))
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewSelector creates a question selector.
func NewSelector(questions QuestionSource, history HistoryStore, policy HistoryPolicy, metrics *Metrics, logger zerolog.Logger) *Selector {
	if policy == "" {
		policy = HistoryPolicyDegrade
	}
	return &Selector{
		questions: questions,
		history:   history,
		policy:    policy,
		shuffle:   rand.Shuffle,
		metrics:   metrics,
		logger:    logger.With().Str("component", "question_selector").Logger(),
	}
}

// Select returns up to targetCount questions from the pack in random order. An empty
// result means the pack has no questions.
func (s *Selector) Select(ctx context.Context, packID string, targetCount int, userIDs []string) ([]Question, error) {
	if targetCount < 1 {
		return nil, newError("select questions", ErrInvalidInput, "target count %d", targetCount)
	}
	if len(userIDs) == 0 {
		return nil, newError("select questions", ErrInvalidInput, "no participants")
	}

	pool, err := s.questions.ListByPack(ctx, packID)
	if err != nil {
		return nil, storeError("select questions", err, "list pack %s", packID)
	}
	if len(pool) == 0 {
		return nil, nil
	}

	count := min(targetCount, len(pool))

	ids := make([]string, len(pool))
	for i, q := range pool {
		ids[i] = q.ID
	}
	seen, err := s.history.SeenQuestionIDs(ctx, userIDs, ids)
	if err != nil {
		if s.policy == HistoryPolicyFail {
			return nil, storeError("select questions", err, "seen lookup for pack %s", packID)
		}
		s.logger.Warn().Err(err).Str("pack_id", packID).Msg("seen lookup failed; treating all questions as unseen")
		s.metrics.sideEffectFailed("seen_lookup")
		seen = nil
	}

	var unseen, seenPool []Question
	for _, q := range pool {
		if _, ok := seen[q.ID]; ok {
			seenPool = append(seenPool, q)
		} else {
			unseen = append(unseen, q)
		}
	}

	s.shuffleQuestions(unseen)
	selected := make([]Question, 0, count)
	selected = append(selected, unseen[:min(count, len(unseen))]...)
	if remaining := count - len(selected); remaining > 0 {
		s.shuffleQuestions(seenPool)
		selected = append(selected, seenPool[:remaining]...)
	}
	s.shuffleQuestions(selected)

	s.metrics.observeSeenRatio(len(seenPool), len(pool))
	s.logger.Debug().
		Str("pack_id", packID).
		Int("requested", targetCount).
		Int("selected", len(selected)).
		Int("unseen_available", len(unseen)).
		Msg("questions selected")

	return selected, nil
}

func (s *Selector) shuffleQuestions(qs []Question) {
	s.shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}
