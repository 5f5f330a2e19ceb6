package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/trivia-live/db"
	"github.com/gokatarajesh/trivia-live/internal/config"
	"github.com/gokatarajesh/trivia-live/internal/db/repository"
	"github.com/gokatarajesh/trivia-live/internal/store/memory"
)

func main() {
	var (
		command  = flag.String("command", "up", "Migration command: up, down, status or seed")
		seedFile = flag.String("seed", "configs/questions.yaml", "YAML question seed used by -command=seed")
	)
	flag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", "migrator").Logger()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load("configs/.env")
	}

	var pg config.Postgres
	if err := env.Parse(&pg); err != nil {
		log.Fatal().Err(err).Msg("failed to parse postgres config")
	}
	if pg.User == "" || pg.Database == "" {
		log.Fatal().Msg("PG_USER and PG_DATABASE environment variables are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *command == "seed" {
		if err := seed(ctx, pg, *seedFile); err != nil {
			log.Fatal().Err(err).Str("file", *seedFile).Msg("failed to seed questions")
		}
		log.Info().Str("file", *seedFile).Msg("questions seeded")
		return
	}

	sqlDB, err := sql.Open("pgx", pg.DSN())
	if err != nil {
		log.Fatal().Err(err).Str("host", pg.Host).Int("port", pg.Port).Msg("failed to open database connection")
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Str("host", pg.Host).Int("port", pg.Port).Str("database", pg.Database).Msg("connected to database")

	goose.SetBaseFS(db.Migrations)
	goose.SetTableName("goose_db_version")
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal().Err(err).Msg("failed to set goose dialect")
	}

	switch *command {
	case "up":
		if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations up")
		}
		log.Info().Msg("migrations applied successfully")
	case "down":
		if err := goose.DownContext(ctx, sqlDB, "migrations"); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations down")
		}
		log.Info().Msg("migrations rolled back successfully")
	case "status":
		if err := goose.StatusContext(ctx, sqlDB, "migrations"); err != nil {
			log.Fatal().Err(err).Msg("failed to get migration status")
		}
	default:
		log.Fatal().Str("command", *command).Msg("unknown command. Use: up, down, status or seed")
	}
}

func seed(ctx context.Context, pg config.Postgres, path string) error {
	s, err := memory.LoadSeedFile(path)
	if err != nil {
		return err
	}
	pool, err := pgxpool.New(ctx, pg.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	packs := make([]repository.PackImport, 0, len(s.Packs))
	for _, p := range s.Packs {
		pi := repository.PackImport{ID: p.ID, Name: p.Name}
		for _, q := range p.Questions {
			pi.Questions = append(pi.Questions, repository.QuestionImport{
				ID:               q.ID,
				Text:             q.Text,
				CorrectAnswer:    q.CorrectAnswer,
				IncorrectAnswers: q.IncorrectAnswers,
			})
		}
		packs = append(packs, pi)
	}
	return repository.ImportPacks(ctx, pool, packs)
}
