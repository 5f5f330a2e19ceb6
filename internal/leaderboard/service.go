// Package leaderboard keeps per-pack standings across completed sessions in Redis.
package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

// Supported leaderboard windows.
const (
	WindowWeekly  = "weekly"
	WindowAllTime = "all_time"
)

var windows = []string{WindowWeekly, WindowAllTime}

// Entry is one row of a pack leaderboard.
type Entry struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	DisplayName   string  `json:"display_name"`
	Score         int     `json:"score"`
	Wins          int     `json:"wins"`
	Games         int     `json:"games"`
	Accuracy      float64 `json:"accuracy"`
	CorrectTotal  int     `json:"-"`
	QuestionTotal int     `json:"-"`
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN      int
	KeyPrefix string
	// WeeklyTTL bounds how long a weekly board outlives its week.
	WeeklyTTL time.Duration
}

// Service aggregates final session results into Redis sorted sets.
type Service struct {
	redis     *redis.Client
	logger    zerolog.Logger
	topN      int
	prefix    string
	weeklyTTL time.Duration
	now       func() time.Time
}

var _ game.ResultsRecorder = (*Service)(nil)

// NewService constructs a leaderboard service instance.
func NewService(client *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	ttl := opts.WeeklyTTL
	if ttl <= 0 {
		ttl = 8 * 24 * time.Hour
	}
	return &Service{
		redis:     client,
		logger:    logger.With().Str("component", "leaderboard").Logger(),
		topN:      topN,
		prefix:    prefix,
		weeklyTTL: ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordResults implements game.ResultsRecorder. Snapshots of unfinished sessions
// are ignored; every top-ranked participant counts a win.
func (s *Service) RecordResults(ctx context.Context, res *game.Results) error {
	if res == nil || !res.Final || len(res.Participants) == 0 {
		return nil
	}
	packID := res.Session.PackID
	questionCount := len(res.Questions)
	topScore := res.Participants[0].Score

	pipe := s.redis.TxPipeline()
	for _, window := range windows {
		zKey := s.boardKey(packID, window, res.Session.UpdatedAt)
		for _, p := range res.Participants {
			metaKey := s.metaKey(zKey, p.UserID)
			won := 0
			if p.Score == topScore {
				won = 1
			}
			pipe.ZIncrBy(ctx, zKey, float64(p.Score), p.UserID)
			pipe.HIncrBy(ctx, metaKey, "wins", int64(won))
			pipe.HIncrBy(ctx, metaKey, "games", 1)
			pipe.HIncrBy(ctx, metaKey, "correct", int64(p.CorrectCount))
			pipe.HIncrBy(ctx, metaKey, "questions", int64(questionCount))
			pipe.HSet(ctx, metaKey, "display_name", p.DisplayName)
			if window == WindowWeekly {
				pipe.Expire(ctx, metaKey, s.weeklyTTL)
			}
		}
		if window == WindowWeekly {
			pipe.Expire(ctx, zKey, s.weeklyTTL)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard for pack %s: %w", packID, err)
	}
	s.logger.Debug().
		Str("session_id", res.Session.ID).
		Str("pack_id", packID).
		Int("participants", len(res.Participants)).
		Msg("leaderboard updated")
	return nil
}

// Top returns the best entries of a pack for the current window.
func (s *Service) Top(ctx context.Context, packID, window string, limit int) ([]Entry, error) {
	if !ValidWindow(window) {
		return nil, fmt.Errorf("leaderboard window %q: %w", window, game.ErrInvalidInput)
	}
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	zKey := s.boardKey(packID, window, s.now())
	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		userID, _ := z.Member.(string)
		entry, err := s.readMeta(ctx, zKey, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to read leaderboard metadata")
			entry = &Entry{UserID: userID}
		}
		entry.Rank = i + 1
		entry.Score = int(z.Score)
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (s *Service) readMeta(ctx context.Context, zKey, userID string) (*Entry, error) {
	data, err := s.redis.HGetAll(ctx, s.metaKey(zKey, userID)).Result()
	if err != nil {
		return nil, err
	}
	entry := &Entry{
		UserID:        userID,
		DisplayName:   data["display_name"],
		Wins:          parseInt(data["wins"]),
		Games:         parseInt(data["games"]),
		CorrectTotal:  parseInt(data["correct"]),
		QuestionTotal: parseInt(data["questions"]),
	}
	if entry.QuestionTotal > 0 {
		entry.Accuracy = float64(entry.CorrectTotal) / float64(entry.QuestionTotal)
	}
	return entry, nil
}

// boardKey names the sorted set of a pack window. Weekly boards roll over on ISO weeks.
func (s *Service) boardKey(packID, window string, at time.Time) string {
	if window == WindowWeekly {
		year, week := at.ISOWeek()
		return fmt.Sprintf("%s:pack:%s:%s:%d-W%02d", s.prefix, packID, window, year, week)
	}
	return fmt.Sprintf("%s:pack:%s:%s", s.prefix, packID, window)
}

func (s *Service) metaKey(zKey, userID string) string {
	return zKey + ":meta:" + userID
}

// ValidWindow reports whether window names a supported leaderboard.
func ValidWindow(window string) bool {
	return window == WindowWeekly || window == WindowAllTime
}

func parseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
