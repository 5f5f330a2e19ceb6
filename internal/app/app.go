package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/trivia-live/internal/auth"
	"github.com/gokatarajesh/trivia-live/internal/auth/jwt"
	"github.com/gokatarajesh/trivia-live/internal/config"
	"github.com/gokatarajesh/trivia-live/internal/db/repository"
	"github.com/gokatarajesh/trivia-live/internal/game"
	"github.com/gokatarajesh/trivia-live/internal/game/notify"
	"github.com/gokatarajesh/trivia-live/internal/game/scoring"
	"github.com/gokatarajesh/trivia-live/internal/leaderboard"
	"github.com/gokatarajesh/trivia-live/internal/logging"
	"github.com/gokatarajesh/trivia-live/internal/question"
	"github.com/gokatarajesh/trivia-live/internal/server"
	"github.com/gokatarajesh/trivia-live/internal/store/memory"
	ws "github.com/gokatarajesh/trivia-live/pkg/http/ws"
)

// Application aggregates shared infrastructure (stores, cache, hub, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool        *pgxpool.Pool
	redis       *redis.Client
	hub         *ws.Hub
	broadcaster *notify.Broadcaster
	http        *http.Server
}

// backend is the set of stores one STORE_DRIVER provides.
type backend struct {
	store     game.Store
	questions question.Repository
	history   game.HistoryStore
	identity  game.IdentityLookup
	guests    auth.GuestStore
}

// New bootstraps logger, stores, Redis, the game engine and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Str("store_driver", cfg.StoreDriver).Msg("starting application bootstrap")

	a := &Application{cfg: cfg, logger: logger}

	be, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	deps := map[string]server.Pinger{}
	if a.pool != nil {
		deps["postgres"] = a.pool
	}

	var cache question.PackCache
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		cache = question.NewCache(a.redis, cfg.Events.QuestionCacheTTL)
		deps["redis"] = server.RedisPinger(a.redis)
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; question cache and cross-instance events disabled")
	}

	a.hub = ws.NewHub(logger)

	var publisher game.Publisher = game.NewHubPublisher(a.hub)
	var recorder game.ResultsRecorder
	var boards *leaderboard.Service
	if a.redis != nil {
		publisher = notify.NewRedisPublisher(a.redis, cfg.Events.Channel)
		a.broadcaster = notify.NewBroadcaster(a.redis, a.hub, cfg.Events.Channel, logger)
		boards = leaderboard.NewService(a.redis, logger, leaderboard.ServiceOptions{})
		recorder = boards
	}

	policy, err := game.ParseHistoryPolicy(cfg.Game.HistoryPolicy)
	if err != nil {
		return nil, err
	}

	source := question.NewSource(be.questions, cache, logger)
	gameSvc := game.NewService(be.store, source, be.history, be.identity, publisher, game.ServiceOptions{
		ScoringConfig: scoring.ScoringConfig{
			MaxScore: cfg.Scoring.MaxScore,
			MinScore: cfg.Scoring.MinScore,
		},
		HistoryPolicy:  policy,
		JoinCodeLength: cfg.Game.JoinCodeLength,
		Metrics:        game.NewMetrics(prometheus.DefaultRegisterer),
		Recorder:       recorder,
	}, logger)

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret:    []byte(cfg.Security.JWTSecret),
		AccessTTL: cfg.Security.TokenTTL,
		Issuer:    cfg.Name,
	})
	authSvc := auth.NewService(be.guests, tokens, logger)

	gameHTTP := game.NewHTTPHandlers(gameSvc, game.SessionDefaults{
		MaxParticipants:  cfg.Game.DefaultMaxParticipants,
		QuestionCount:    cfg.Game.DefaultQuestionCount,
		TimeLimitSeconds: cfg.Game.DefaultTimeLimitSeconds,
	}, logger)
	gameWS := game.NewWSHandler(gameSvc, a.hub, server.WSUpgrader, logger)

	routes := server.Routes{
		Auth:         auth.AuthMiddleware(authSvc, logger),
		AuthAPI:      auth.NewHTTPHandlers(authSvc, logger).Routes,
		GamesAPI:     gameHTTP.Routes,
		GameSocket:   gameWS.HandleWebSocket,
		Dependencies: deps,
	}
	if boards != nil {
		routes.LeaderboardAPI = leaderboard.NewHTTPHandler(boards, logger).Routes
	}
	router := server.NewRouter(routes, logger)
	a.http = server.NewHTTPServer(cfg.HTTPAddr, router)

	return a, nil
}

func (a *Application) openBackend(ctx context.Context) (*backend, error) {
	switch a.cfg.StoreDriver {
	case config.StoreDriverMemory:
		bank := memory.NewQuestionBank()
		directory := memory.NewDirectory()
		if path := a.cfg.QuestionSeedFile; path != "" {
			seed, err := memory.LoadSeedFile(path)
			if err != nil {
				return nil, err
			}
			bank.Load(seed)
			directory = memory.NewDirectory(seed.Users...)
			a.logger.Info().Str("file", path).Int("packs", len(seed.Packs)).Msg("question seed loaded")
		}
		return &backend{
			store:     memory.NewStore(),
			questions: bank,
			history:   memory.NewHistory(),
			identity:  directory,
			guests:    directory,
		}, nil

	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, a.cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		users := repository.NewUserRepository(pool)
		return &backend{
			store:     repository.NewGameRepository(pool),
			questions: repository.NewQuestionRepository(pool),
			history:   repository.NewHistoryRepository(pool),
			identity:  users,
			guests:    users,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.cfg.StoreDriver)
}

// Run serves HTTP and the event broadcaster until a signal arrives or one of them fails.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.broadcaster != nil {
		g.Go(func() error {
			if err := a.broadcaster.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("event broadcaster: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
		defer cancel()
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("http shutdown error")
		}
		a.hub.CloseAll()
		return nil
	})

	err := g.Wait()
	a.close()
	a.logger.Info().Msg("shutdown complete")
	return err
}

func (a *Application) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}
}
