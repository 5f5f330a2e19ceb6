package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-live/internal/auth/jwt"
)

var (
	ErrDisplayNameRequired = errors.New("display name is required")
	ErrDisplayNameTooLong  = errors.New("display name must be at most 32 characters")
)

const maxDisplayNameLength = 32

// User represents an authenticated player.
type User struct {
	ID          string
	DisplayName string
	IsGuest     bool
}

// GuestStore persists guest profiles so display names resolve later.
type GuestStore interface {
	CreateGuest(ctx context.Context, userID, displayName string) error
}

// Service issues and validates player identities.
type Service struct {
	guests GuestStore
	tokens *jwt.Manager
	logger zerolog.Logger
}

// NewService creates an auth service.
func NewService(guests GuestStore, tokens *jwt.Manager, logger zerolog.Logger) *Service {
	return &Service{
		guests: guests,
		tokens: tokens,
		logger: logger.With().Str("component", "auth_service").Logger(),
	}
}

// CreateGuest registers an ephemeral player and returns their access token.
func (s *Service) CreateGuest(ctx context.Context, displayName string) (*User, string, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, "", ErrDisplayNameRequired
	}
	if len([]rune(displayName)) > maxDisplayNameLength {
		return nil, "", ErrDisplayNameTooLong
	}

	user := &User{ID: uuid.NewString(), DisplayName: displayName, IsGuest: true}
	if err := s.guests.CreateGuest(ctx, user.ID, user.DisplayName); err != nil {
		return nil, "", fmt.Errorf("create guest: %w", err)
	}

	token, err := s.tokens.GenerateAccessToken(jwt.User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		IsGuest:     true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("guest created")
	return user, token, nil
}

// ValidateToken validates a token and returns claims.
func (s *Service) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return s.tokens.ValidateAccessToken(tokenString)
}
