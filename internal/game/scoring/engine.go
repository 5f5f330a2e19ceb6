package scoring

import (
	"math"
	"time"
)

// ScoringConfig holds configurable scoring constants.
type ScoringConfig struct {
	MaxScore int // default: 1000, awarded for an instant correct answer
	MinScore int // default: 100, floor for any correct answer
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MaxScore: 1000,
		MinScore: 100,
	}
}

// Engine computes server-side scores with configurable constants.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine with the provided config. Zero values fall back
// to the defaults and MinScore never exceeds MaxScore.
func NewEngine(config ScoringConfig) *Engine {
	defaults := DefaultScoringConfig()
	if config.MaxScore <= 0 {
		config.MaxScore = defaults.MaxScore
	}
	if config.MinScore <= 0 {
		config.MinScore = defaults.MinScore
	}
	if config.MinScore > config.MaxScore {
		config.MinScore = config.MaxScore
	}
	return &Engine{config: config}
}

// Config returns the effective constants.
func (e *Engine) Config() ScoringConfig {
	return e.config
}

// Score computes points for a single answer.
// Formula: round(max * (1 - elapsed/limit)), floored at the minimum.
// - incorrect: always 0
// - no time limit, missing start time or a start time in the future: minimum
func (e *Engine) Score(isCorrect bool, startedAt *time.Time, now time.Time, timeLimitSeconds int) int {
	if !isCorrect {
		return 0
	}
	if timeLimitSeconds <= 0 || startedAt == nil || startedAt.IsZero() {
		return e.config.MinScore
	}

	elapsed := now.Sub(*startedAt)
	if elapsed < 0 {
		return e.config.MinScore
	}

	remaining := 1 - elapsed.Seconds()/float64(timeLimitSeconds)
	if remaining < 0 {
		remaining = 0
	}

	points := int(math.Round(float64(e.config.MaxScore) * remaining))
	if points < e.config.MinScore {
		points = e.config.MinScore
	}
	return points
}
