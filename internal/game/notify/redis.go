// Package notify fans game events out across API instances through Redis Pub/Sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-live/internal/game"
	ws "github.com/gokatarajesh/trivia-live/pkg/http/ws"
)

const defaultChannel = "game:events"

// envelope is the wire form of a game.Event on the channel.
type envelope struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"game_session_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RedisPublisher publishes events on a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

var _ game.Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = defaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish implements game.Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, sessionID string, evt game.Event) error {
	evt.SessionID = sessionID
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", evt.Type, err)
	}
	return nil
}

// SessionBroadcaster delivers a message to every local connection of a session.
type SessionBroadcaster interface {
	BroadcastToSession(sessionID string, msg ws.Message) int
}

// Broadcaster listens for game events on Redis and forwards them to the local hub.
type Broadcaster struct {
	redis   *redis.Client
	hub     SessionBroadcaster
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster creates a Pub/Sub powered event broadcaster.
func NewBroadcaster(client *redis.Client, hub SessionBroadcaster, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = defaultChannel
	}
	return &Broadcaster{
		redis:   client,
		hub:     hub,
		channel: channel,
		logger:  logger.With().Str("component", "event_broadcaster").Logger(),
	}
}

// Run subscribes to the event channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info().Str("channel", b.channel).Msg("subscribed to game events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode game event")
		return
	}
	if env.SessionID == "" {
		b.logger.Warn().Str("type", env.Type).Msg("game event without session id")
		return
	}

	msg, err := game.EventMessage(game.Event{
		Type:       env.Type,
		SessionID:  env.SessionID,
		Payload:    env.Payload,
		OccurredAt: env.OccurredAt,
	})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to build game event message")
		return
	}

	delivered := b.hub.BroadcastToSession(env.SessionID, msg)
	b.logger.Debug().
		Str("session_id", env.SessionID).
		Str("type", env.Type).
		Int("delivered", delivered).
		Msg("game event forwarded")
}
