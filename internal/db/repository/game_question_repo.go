package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

const gameQuestionColumns = `id, game_session_id, question_id, question_index, start_time, end_time`

func scanGameQuestion(row pgx.Row) (*game.GameQuestion, error) {
	gq := game.GameQuestion{
		Answers: make(map[string]string),
		Scores:  make(map[string]int),
	}
	if err := row.Scan(&gq.ID, &gq.SessionID, &gq.QuestionID, &gq.Index, &gq.StartedAt, &gq.EndedAt); err != nil {
		return nil, err
	}
	return &gq, nil
}

// GetGameQuestion implements game.GameQuestionStore.
func (r *GameRepository) GetGameQuestion(ctx context.Context, sessionID string, index int) (*game.GameQuestion, error) {
	gq, err := scanGameQuestion(r.db.QueryRow(ctx, `
		SELECT `+gameQuestionColumns+` FROM game_questions
		WHERE game_session_id = $1 AND question_index = $2`, sessionID, index))
	if err != nil {
		return nil, mapError(err, "question %d of session %s", index, sessionID)
	}

	byID := map[string]*game.GameQuestion{gq.ID: gq}
	if err := r.loadAnswers(ctx, `WHERE game_question_id = $1`, gq.ID, byID); err != nil {
		return nil, err
	}
	return gq, nil
}

// ListGameQuestions implements game.GameQuestionStore, ordered by index.
func (r *GameRepository) ListGameQuestions(ctx context.Context, sessionID string) ([]game.GameQuestion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+gameQuestionColumns+` FROM game_questions
		WHERE game_session_id = $1
		ORDER BY question_index`, sessionID)
	if err != nil {
		return nil, mapError(err, "list ledger of %s", sessionID)
	}

	var ledger []*game.GameQuestion
	byID := make(map[string]*game.GameQuestion)
	for rows.Next() {
		gq, err := scanGameQuestion(rows)
		if err != nil {
			rows.Close()
			return nil, mapError(err, "scan ledger of %s", sessionID)
		}
		ledger = append(ledger, gq)
		byID[gq.ID] = gq
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list ledger of %s", sessionID)
	}
	if len(ledger) == 0 {
		return []game.GameQuestion{}, nil
	}

	err = r.loadAnswers(ctx, `
		JOIN game_questions gq ON gq.id = a.game_question_id
		WHERE gq.game_session_id = $1`, sessionID, byID)
	if err != nil {
		return nil, err
	}

	out := make([]game.GameQuestion, len(ledger))
	for i, gq := range ledger {
		out[i] = *gq
	}
	return out, nil
}

// loadAnswers fills Answers and Scores of the ledger rows in byID.
func (r *GameRepository) loadAnswers(ctx context.Context, where string, arg string, byID map[string]*game.GameQuestion) error {
	rows, err := r.db.Query(ctx, `
		SELECT a.game_question_id, a.participant_id, a.answer, a.score
		FROM game_question_answers a `+where, arg)
	if err != nil {
		return mapError(err, "load answers")
	}
	defer rows.Close()

	for rows.Next() {
		var gqID, participantID, answer string
		var score *int
		if err := rows.Scan(&gqID, &participantID, &answer, &score); err != nil {
			return mapError(err, "scan answer")
		}
		gq, ok := byID[gqID]
		if !ok {
			continue
		}
		gq.Answers[participantID] = answer
		if score != nil {
			gq.Scores[participantID] = *score
		}
	}
	return mapError(rows.Err(), "load answers")
}

// RecordAnswer implements game.GameQuestionStore. The insert only selects a row while
// the question is open and current; the share lock on the session row orders it
// against a concurrent advance or completion.
func (r *GameRepository) RecordAnswer(ctx context.Context, rec game.AnswerRecord) (int, error) {
	var total int
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO game_question_answers (game_question_id, participant_id, answer, score, answered_at)
			SELECT gq.id, $2, $3, $4, $5
			FROM game_questions gq
			JOIN game_sessions s ON s.id = gq.game_session_id
			WHERE gq.id = $1
				AND gq.start_time IS NOT NULL AND gq.end_time IS NULL
				AND s.status = 'active' AND s.current_question_index = gq.question_index
			FOR SHARE OF s`,
			rec.GameQuestionID, rec.ParticipantID, rec.Answer, rec.Score, rec.At)
		if err != nil {
			return mapError(err, "participant %s answer to %s", rec.ParticipantID, rec.GameQuestionID)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("answer to %s: question is not open: %w", rec.GameQuestionID, game.ErrInvalidState)
		}

		err = tx.QueryRow(ctx, `
			UPDATE game_participants
			SET score = score + $2, last_activity_at = $3
			WHERE id = $1
			RETURNING score`, rec.ParticipantID, rec.Score, rec.At).Scan(&total)
		if err != nil {
			return mapError(err, "add score to participant %s", rec.ParticipantID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// EndQuestion implements game.GameQuestionStore.
func (r *GameRepository) EndQuestion(ctx context.Context, gameQuestionID string, at time.Time) error {
	var exists bool
	err := r.db.QueryRow(ctx, `
		WITH closed AS (
			UPDATE game_questions SET end_time = $2
			WHERE id = $1 AND start_time IS NOT NULL AND end_time IS NULL
		)
		SELECT EXISTS (SELECT 1 FROM game_questions WHERE id = $1)`, gameQuestionID, at).Scan(&exists)
	if err != nil {
		return mapError(err, "end question %s", gameQuestionID)
	}
	if !exists {
		return fmt.Errorf("game question %s: %w", gameQuestionID, game.ErrNotFound)
	}
	return nil
}

func endQuestion(ctx context.Context, q DBTX, sessionID string, index int, at time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE game_questions SET end_time = $3
		WHERE game_session_id = $1 AND question_index = $2
			AND start_time IS NOT NULL AND end_time IS NULL`, sessionID, index, at)
	if err != nil {
		return mapError(err, "close question %d of session %s", index, sessionID)
	}
	return nil
}
