package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

// GameRepository implements game.Store. Every multi-row transition runs in one
// transaction and uses the session row as its compare-and-set anchor.
type GameRepository struct {
	db TxBeginner
}

var _ game.Store = (*GameRepository)(nil)

// NewGameRepository wraps a pool (or any TxBeginner).
func NewGameRepository(db TxBeginner) *GameRepository {
	return &GameRepository{db: db}
}

const sessionColumns = `id, join_code, host_user_id, pack_id, status, max_participants,
	question_count, time_limit_seconds, current_question_index, created_at, updated_at`

func scanSession(row pgx.Row) (*game.Session, error) {
	var s game.Session
	var status string
	err := row.Scan(&s.ID, &s.JoinCode, &s.HostUserID, &s.PackID, &status, &s.MaxParticipants,
		&s.QuestionCount, &s.TimeLimitSeconds, &s.CurrentQuestionIndex, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = game.Status(status)
	return &s, nil
}

// CreateSession implements game.SessionStore.
func (r *GameRepository) CreateSession(ctx context.Context, session *game.Session, host *game.Participant) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO game_sessions (`+sessionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			session.ID, session.JoinCode, session.HostUserID, session.PackID, string(session.Status),
			session.MaxParticipants, session.QuestionCount, session.TimeLimitSeconds,
			session.CurrentQuestionIndex, session.CreatedAt, session.UpdatedAt)
		if err != nil {
			return mapError(err, "insert session %s", session.ID)
		}
		if err := insertParticipant(ctx, tx, host); err != nil {
			return err
		}
		return nil
	})
}

// JoinCodeInUse implements game.SessionStore.
func (r *GameRepository) JoinCodeInUse(ctx context.Context, code string) (bool, error) {
	var inUse bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM game_sessions
			WHERE join_code = $1 AND status IN ('pending', 'active')
		)`, code).Scan(&inUse)
	if err != nil {
		return false, mapError(err, "check join code %s", code)
	}
	return inUse, nil
}

// GetSession implements game.SessionStore.
func (r *GameRepository) GetSession(ctx context.Context, sessionID string) (*game.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, sessionID))
	if err != nil {
		return nil, mapError(err, "session %s", sessionID)
	}
	return s, nil
}

// GetSessionByCode implements game.SessionStore.
func (r *GameRepository) GetSessionByCode(ctx context.Context, code string) (*game.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE join_code = $1
		ORDER BY created_at DESC
		LIMIT 1`, code))
	if err != nil {
		return nil, mapError(err, "join code %s", code)
	}
	return s, nil
}

// ActivateSession implements game.SessionStore. The status flip and every ledger
// row land together or not at all.
func (r *GameRepository) ActivateSession(ctx context.Context, params game.ActivateParams) (*game.Session, error) {
	if len(params.Questions) == 0 {
		return nil, fmt.Errorf("activate session %s without questions: %w", params.SessionID, game.ErrInvalidState)
	}

	var out *game.Session
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx, `
			UPDATE game_sessions
			SET status = 'active', question_count = $2, current_question_index = 0, updated_at = $3
			WHERE id = $1 AND status = 'pending'
			RETURNING `+sessionColumns,
			params.SessionID, params.QuestionCount, params.StartedAt))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return r.transitionError(ctx, tx, params.SessionID, "activate", -1)
			}
			return mapError(err, "activate session %s", params.SessionID)
		}

		batch := &pgx.Batch{}
		for i, gq := range params.Questions {
			var started *time.Time
			if i == 0 {
				at := params.StartedAt
				started = &at
			}
			batch.Queue(`
				INSERT INTO game_questions (id, game_session_id, question_id, question_index, start_time)
				VALUES ($1, $2, $3, $4, $5)`,
				gq.ID, params.SessionID, gq.QuestionID, i, started)
		}
		br := tx.SendBatch(ctx, batch)
		for range params.Questions {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return mapError(err, "insert ledger for session %s", params.SessionID)
			}
		}
		if err := br.Close(); err != nil {
			return mapError(err, "insert ledger for session %s", params.SessionID)
		}

		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdvanceSession implements game.SessionStore.
func (r *GameRepository) AdvanceSession(ctx context.Context, sessionID string, fromIndex int, at time.Time) (*game.Session, error) {
	var out *game.Session
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		s, err := r.moveFrom(ctx, tx, sessionID, fromIndex, at, `current_question_index = current_question_index + 1`)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE game_questions SET start_time = $3
			WHERE game_session_id = $1 AND question_index = $2`,
			sessionID, fromIndex+1, at)
		if err != nil {
			return mapError(err, "open question %d of session %s", fromIndex+1, sessionID)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("advance session %s past question %d: %w", sessionID, fromIndex, game.ErrInvalidState)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteSession implements game.SessionStore.
func (r *GameRepository) CompleteSession(ctx context.Context, sessionID string, fromIndex int, at time.Time) (*game.Session, error) {
	var out *game.Session
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		s, err := r.moveFrom(ctx, tx, sessionID, fromIndex, at, `status = 'completed'`)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// moveFrom applies set to an active session sitting at fromIndex and closes that
// question. It is the shared CAS of advance and complete.
func (r *GameRepository) moveFrom(ctx context.Context, tx pgx.Tx, sessionID string, fromIndex int, at time.Time, set string) (*game.Session, error) {
	s, err := scanSession(tx.QueryRow(ctx, `
		UPDATE game_sessions SET `+set+`, updated_at = $3
		WHERE id = $1 AND status = 'active' AND current_question_index = $2
		RETURNING `+sessionColumns,
		sessionID, fromIndex, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.transitionError(ctx, tx, sessionID, "move", fromIndex)
		}
		return nil, mapError(err, "move session %s", sessionID)
	}
	if err := endQuestion(ctx, tx, sessionID, fromIndex, at); err != nil {
		return nil, err
	}
	return s, nil
}

// CancelSession implements game.SessionStore.
func (r *GameRepository) CancelSession(ctx context.Context, sessionID string, at time.Time) (*game.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, `
		UPDATE game_sessions SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'active')
		RETURNING `+sessionColumns,
		sessionID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.transitionError(ctx, r.db, sessionID, "cancel", -1)
		}
		return nil, mapError(err, "cancel session %s", sessionID)
	}
	return s, nil
}

// transitionError explains a CAS miss: the session is either gone or elsewhere.
func (r *GameRepository) transitionError(ctx context.Context, q DBTX, sessionID, op string, expectedIndex int) error {
	var status string
	var index int
	err := q.QueryRow(ctx,
		`SELECT status, current_question_index FROM game_sessions WHERE id = $1`, sessionID).
		Scan(&status, &index)
	if err != nil {
		return mapError(err, "session %s", sessionID)
	}
	if expectedIndex >= 0 {
		return fmt.Errorf("%s session %s is %s at question %d, expected active at %d: %w",
			op, sessionID, status, index, expectedIndex, game.ErrInvalidState)
	}
	return fmt.Errorf("%s session %s from %s: %w", op, sessionID, status, game.ErrInvalidState)
}
