package repository

import (
	"context"
	"time"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

// UserRepository resolves profile names and stores guest identities.
type UserRepository struct {
	db DBTX
}

var _ game.IdentityLookup = (*UserRepository)(nil)

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// DisplayName returns the user's profile name.
func (r *UserRepository) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `SELECT display_name FROM users WHERE id = $1`, userID).Scan(&name)
	if err != nil {
		return "", mapError(err, "user %s", userID)
	}
	return name, nil
}

// CreateGuest inserts a guest profile.
func (r *UserRepository) CreateGuest(ctx context.Context, userID, displayName string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, display_name, is_guest, created_at)
		VALUES ($1, $2, TRUE, $3)`, userID, displayName, time.Now().UTC())
	return mapError(err, "create guest %s", userID)
}
