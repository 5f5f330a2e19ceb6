package question

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

const defaultCacheTTL = 5 * time.Minute

// Cache provides Redis-backed question caching to offload the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ PackCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func packKey(packID string) string { return "questionpack:" + packID }
func questionKey(questionID string) string { return "question:" + questionID }
func incorrectKey(questionID string) string { return "question:" + questionID + ":incorrect" }

func (c *Cache) GetPack(ctx context.Context, packID string) ([]game.Question, bool, error) {
	var qs []game.Question
	found, err := c.get(ctx, packKey(packID), &qs)
	return qs, found, err
}

func (c *Cache) SetPack(ctx context.Context, packID string, qs []game.Question) error {
	return c.set(ctx, packKey(packID), qs)
}

func (c *Cache) GetQuestion(ctx context.Context, questionID string) (*game.Question, bool, error) {
	var q game.Question
	found, err := c.get(ctx, questionKey(questionID), &q)
	if !found || err != nil {
		return nil, found, err
	}
	return &q, true, nil
}

func (c *Cache) SetQuestion(ctx context.Context, q game.Question) error {
	return c.set(ctx, questionKey(q.ID), q)
}

func (c *Cache) GetIncorrect(ctx context.Context, questionID string) ([]string, bool, error) {
	var answers []string
	found, err := c.get(ctx, incorrectKey(questionID), &answers)
	return answers, found, err
}

func (c *Cache) SetIncorrect(ctx context.Context, questionID string, answers []string) error {
	return c.set(ctx, incorrectKey(questionID), answers)
}

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
