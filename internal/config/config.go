package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"trivia-live"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	StoreDriver      string `env:"STORE_DRIVER" envDefault:"postgres"`
	QuestionSeedFile string `env:"QUESTION_SEED_FILE"`

	Postgres Postgres
	Redis    Redis
	Security Security
	Game     Game
	Scoring  Scoring
	Events   Events
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER"`
	Password string `env:"PG_PASSWORD"`
	Database string `env:"PG_DATABASE"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders the pgx connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode, p.MaxConns)
}

// Redis holds cache + pub/sub configuration. An empty Addr disables Redis.
type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"12h"`
}

// Game groups session defaults.
type Game struct {
	DefaultMaxParticipants  int    `env:"GAME_DEFAULT_MAX_PARTICIPANTS" envDefault:"8"`
	DefaultQuestionCount    int    `env:"GAME_DEFAULT_QUESTION_COUNT" envDefault:"10"`
	DefaultTimeLimitSeconds int    `env:"GAME_DEFAULT_TIME_LIMIT_SECONDS" envDefault:"30"`
	JoinCodeLength          int    `env:"GAME_JOIN_CODE_LENGTH" envDefault:"6"`
	HistoryPolicy           string `env:"GAME_HISTORY_POLICY" envDefault:"degrade"`
}

// Scoring holds the score bounds for a correct answer.
type Scoring struct {
	MaxScore int `env:"SCORING_MAX_SCORE" envDefault:"1000"`
	MinScore int `env:"SCORING_MIN_SCORE" envDefault:"100"`
}

// Events configures the cross-instance notification fan-out.
type Events struct {
	Channel          string        `env:"EVENTS_CHANNEL" envDefault:"game:events"`
	QuestionCacheTTL time.Duration `env:"QUESTION_CACHE_TTL" envDefault:"5m"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: false}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.Postgres.User == "" || c.Postgres.Database == "" {
			return fmt.Errorf("config: PG_USER and PG_DATABASE are required with STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.Scoring.MinScore > c.Scoring.MaxScore {
		return fmt.Errorf("config: SCORING_MIN_SCORE %d exceeds SCORING_MAX_SCORE %d", c.Scoring.MinScore, c.Scoring.MaxScore)
	}
	return nil
}
