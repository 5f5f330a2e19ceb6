package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

const participantColumns = `id, game_session_id, user_id, display_name, score, is_host, joined_at, last_activity_at`

func scanParticipant(row pgx.Row) (*game.Participant, error) {
	var p game.Participant
	err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.DisplayName, &p.Score, &p.IsHost, &p.JoinedAt, &p.LastActivityAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func insertParticipant(ctx context.Context, q DBTX, p *game.Participant) error {
	_, err := q.Exec(ctx, `
		INSERT INTO game_participants (`+participantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.SessionID, p.UserID, p.DisplayName, p.Score, p.IsHost, p.JoinedAt, p.LastActivityAt)
	if err != nil {
		return mapError(err, "insert participant %s for user %s", p.ID, p.UserID)
	}
	return nil
}

// AddParticipant implements game.ParticipantStore. The session row is locked so
// concurrent joins see each other's seats.
func (r *GameRepository) AddParticipant(ctx context.Context, p *game.Participant, maxParticipants int) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM game_sessions WHERE id = $1 FOR UPDATE`, p.SessionID).Scan(&status)
		if err != nil {
			return mapError(err, "session %s", p.SessionID)
		}
		if game.Status(status) != game.StatusPending {
			return fmt.Errorf("join session %s in %s: %w", p.SessionID, status, game.ErrInvalidState)
		}

		var seated bool
		var count int
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(BOOL_OR(user_id = $2), FALSE), COUNT(*)
			FROM game_participants WHERE game_session_id = $1`,
			p.SessionID, p.UserID).Scan(&seated, &count)
		if err != nil {
			return mapError(err, "count participants of %s", p.SessionID)
		}
		if seated {
			return fmt.Errorf("user %s already in %s: %w", p.UserID, p.SessionID, game.ErrConflict)
		}
		if count >= maxParticipants {
			return fmt.Errorf("session %s holds %d: %w", p.SessionID, count, game.ErrCapacityExceeded)
		}
		return insertParticipant(ctx, tx, p)
	})
}

// GetParticipant implements game.ParticipantStore.
func (r *GameRepository) GetParticipant(ctx context.Context, participantID string) (*game.Participant, error) {
	p, err := scanParticipant(r.db.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM game_participants WHERE id = $1`, participantID))
	if err != nil {
		return nil, mapError(err, "participant %s", participantID)
	}
	return p, nil
}

// GetParticipantByUser implements game.ParticipantStore.
func (r *GameRepository) GetParticipantByUser(ctx context.Context, sessionID, userID string) (*game.Participant, error) {
	p, err := scanParticipant(r.db.QueryRow(ctx, `
		SELECT `+participantColumns+` FROM game_participants
		WHERE game_session_id = $1 AND user_id = $2`, sessionID, userID))
	if err != nil {
		return nil, mapError(err, "user %s in session %s", userID, sessionID)
	}
	return p, nil
}

// ListParticipants implements game.ParticipantStore. Rows come back in join order.
func (r *GameRepository) ListParticipants(ctx context.Context, sessionID string) ([]game.Participant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+participantColumns+` FROM game_participants
		WHERE game_session_id = $1
		ORDER BY seq`, sessionID)
	if err != nil {
		return nil, mapError(err, "list participants of %s", sessionID)
	}
	defer rows.Close()

	var out []game.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, mapError(err, "scan participant of %s", sessionID)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list participants of %s", sessionID)
	}
	return out, nil
}

// CountParticipants implements game.ParticipantStore.
func (r *GameRepository) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM game_participants WHERE game_session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, mapError(err, "count participants of %s", sessionID)
	}
	return n, nil
}

// UpdateDisplayName implements game.ParticipantStore.
func (r *GameRepository) UpdateDisplayName(ctx context.Context, participantID, displayName string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE game_participants SET display_name = $2 WHERE id = $1`, participantID, displayName)
	if err != nil {
		return mapError(err, "rename participant %s", participantID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("participant %s: %w", participantID, game.ErrNotFound)
	}
	return nil
}
