package question

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

const prefetchConcurrency = 4

// Source serves questions to the game engine, reading through the cache. Cache
// failures are logged and bypassed; repository failures are returned.
type Source struct {
	repo   Repository
	cache  PackCache
	logger zerolog.Logger
}

var _ game.QuestionSource = (*Source)(nil)

// NewSource creates a question source. cache may be nil.
func NewSource(repo Repository, cache PackCache, logger zerolog.Logger) *Source {
	return &Source{
		repo:   repo,
		cache:  cache,
		logger: logger.With().Str("component", "question_source").Logger(),
	}
}

// ListByPack implements game.QuestionSource.
func (s *Source) ListByPack(ctx context.Context, packID string) ([]game.Question, error) {
	if s.cache != nil {
		qs, found, err := s.cache.GetPack(ctx, packID)
		if err != nil {
			s.logger.Warn().Err(err).Str("pack_id", packID).Msg("pack cache read failed")
		} else if found {
			return qs, nil
		}
	}

	qs, err := s.repo.ListByPack(ctx, packID)
	if err != nil {
		return nil, fmt.Errorf("list pack %s: %w", packID, err)
	}

	// empty packs are not cached so newly added questions show up at once
	if s.cache != nil && len(qs) > 0 {
		if err := s.cache.SetPack(ctx, packID, qs); err != nil {
			s.logger.Warn().Err(err).Str("pack_id", packID).Msg("pack cache write failed")
		}
	}
	return qs, nil
}

// Get implements game.QuestionSource.
func (s *Source) Get(ctx context.Context, questionID string) (*game.Question, error) {
	if s.cache != nil {
		q, found, err := s.cache.GetQuestion(ctx, questionID)
		if err != nil {
			s.logger.Warn().Err(err).Str("question_id", questionID).Msg("question cache read failed")
		} else if found {
			return q, nil
		}
	}

	q, err := s.repo.Get(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("get question %s: %w", questionID, err)
	}

	if s.cache != nil {
		if err := s.cache.SetQuestion(ctx, *q); err != nil {
			s.logger.Warn().Err(err).Str("question_id", questionID).Msg("question cache write failed")
		}
	}
	return q, nil
}

// IncorrectAnswers implements game.QuestionSource.
func (s *Source) IncorrectAnswers(ctx context.Context, questionID string) ([]string, error) {
	if s.cache != nil {
		answers, found, err := s.cache.GetIncorrect(ctx, questionID)
		if err != nil {
			s.logger.Warn().Err(err).Str("question_id", questionID).Msg("distractor cache read failed")
		} else if found {
			return answers, nil
		}
	}

	answers, err := s.repo.IncorrectAnswers(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("incorrect answers for %s: %w", questionID, err)
	}

	if s.cache != nil {
		if err := s.cache.SetIncorrect(ctx, questionID, answers); err != nil {
			s.logger.Warn().Err(err).Str("question_id", questionID).Msg("distractor cache write failed")
		}
	}
	return answers, nil
}

// Prefetch warms the cache with the questions and distractors of a session's
// sequence so later presentations do not hit the database.
func (s *Source) Prefetch(ctx context.Context, questionIDs []string) error {
	if s.cache == nil {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)
	for _, id := range questionIDs {
		id := id
		g.Go(func() error {
			if _, err := s.Get(gctx, id); err != nil {
				return err
			}
			_, err := s.IncorrectAnswers(gctx, id)
			return err
		})
	}
	return g.Wait()
}
