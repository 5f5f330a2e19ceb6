package question

import (
	"context"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

// Repository is the durable question store (Postgres in production).
type Repository interface {
	ListByPack(ctx context.Context, packID string) ([]game.Question, error)
	Get(ctx context.Context, questionID string) (*game.Question, error)
	IncorrectAnswers(ctx context.Context, questionID string) ([]string, error)
}

// PackCache caches pack listings, questions and distractor sets. A miss returns
// found == false with a nil error.
type PackCache interface {
	GetPack(ctx context.Context, packID string) (qs []game.Question, found bool, err error)
	SetPack(ctx context.Context, packID string, qs []game.Question) error
	GetQuestion(ctx context.Context, questionID string) (q *game.Question, found bool, err error)
	SetQuestion(ctx context.Context, q game.Question) error
	GetIncorrect(ctx context.Context, questionID string) (answers []string, found bool, err error)
	SetIncorrect(ctx context.Context, questionID string, answers []string) error
}
