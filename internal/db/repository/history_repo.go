package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

// HistoryRepository keeps the append-only answer log and per-pack play counts.
type HistoryRepository struct {
	db  DBTX
	now func() time.Time
}

var _ game.HistoryStore = (*HistoryRepository)(nil)

func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// SeenQuestionIDs returns which of questionIDs any of userIDs has answered before.
func (r *HistoryRepository) SeenQuestionIDs(ctx context.Context, userIDs, questionIDs []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	if len(userIDs) == 0 || len(questionIDs) == 0 {
		return seen, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT question_id FROM user_question_history
		WHERE user_id = ANY($1) AND question_id = ANY($2)`, userIDs, questionIDs)
	if err != nil {
		return nil, mapError(err, "load seen questions")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err, "scan seen questions")
	}
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}

// RecordAnswerEvent appends one answer to the user's log.
func (r *HistoryRepository) RecordAnswerEvent(ctx context.Context, userID, questionID string, correct bool) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_question_history (user_id, question_id, answered_correctly, answered_at)
		VALUES ($1, $2, $3, $4)`, userID, questionID, correct, r.now())
	return mapError(err, "record answer of %s to %s", userID, questionID)
}

// IncrementPlayCount bumps the user's play count for a pack.
func (r *HistoryRepository) IncrementPlayCount(ctx context.Context, userID, packID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_pack_history (user_id, pack_id, play_count, last_played_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, pack_id)
		DO UPDATE SET play_count = user_pack_history.play_count + 1, last_played_at = EXCLUDED.last_played_at`,
		userID, packID, r.now())
	return mapError(err, "count play of %s on %s", userID, packID)
}
