package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-live/internal/logging"
	httperrors "github.com/gokatarajesh/trivia-live/pkg/http/errors"
)

const pingTimeout = 2 * time.Second

// WSUpgrader handles WebSocket upgrades for game sessions.
var WSUpgrader = websocket.Upgrader{
	// TODO: restrict origins once the web client's domains are fixed
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedisPinger wraps a go-redis client.
func RedisPinger(client *redis.Client) Pinger {
	return PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
}

// Routes is everything the router mounts. Nil members are skipped.
type Routes struct {
	// Auth extracts bearer claims for every /v1 and /ws request.
	Auth func(http.Handler) http.Handler
	// AuthAPI is mounted under /v1/auth.
	AuthAPI func(r chi.Router)
	// GamesAPI is mounted under /v1/games.
	GamesAPI func(r chi.Router)
	// LeaderboardAPI is mounted under /v1/leaderboards.
	LeaderboardAPI func(r chi.Router)
	// GameSocket serves /ws/games/{sessionID}.
	GameSocket http.HandlerFunc
	// Metrics defaults to the global Prometheus handler.
	Metrics http.Handler
	// Dependencies are pinged by /v1/ping, keyed by name.
	Dependencies map[string]Pinger
}

// NewRouter builds the API router.
func NewRouter(routes Routes, logger zerolog.Logger) http.Handler {
	logger = logger.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			reqLogger := logger.With().Str("request_id", middleware.GetReqID(req.Context())).Logger()
			next.ServeHTTP(w, req.WithContext(logging.IntoContext(req.Context(), reqLogger)))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httperrors.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	metrics := routes.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics)

	r.Get("/v1/ping", func(w http.ResponseWriter, req *http.Request) {
		if name, err := pingDependencies(req.Context(), routes.Dependencies); err != nil {
			logger := logging.FromContext(req.Context())
			logger.Error().Err(err).Str("dependency", name).Msg("dependency ping failed")
			httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, name+" unreachable")
			return
		}
		httperrors.RespondJSON(w, http.StatusOK, map[string]bool{"pong": true})
	})

	r.Group(func(r chi.Router) {
		if routes.Auth != nil {
			r.Use(routes.Auth)
		}
		if routes.AuthAPI != nil {
			r.Route("/v1/auth", routes.AuthAPI)
		}
		if routes.GamesAPI != nil {
			r.Route("/v1/games", routes.GamesAPI)
		}
		if routes.LeaderboardAPI != nil {
			r.Route("/v1/leaderboards", routes.LeaderboardAPI)
		}
		if routes.GameSocket != nil {
			r.Get("/ws/games/{sessionID}", routes.GameSocket)
		}
	})

	return r
}

// NewHTTPServer wraps the router in an http.Server.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func pingDependencies(ctx context.Context, deps map[string]Pinger) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	for name, dep := range deps {
		if err := dep.Ping(ctx); err != nil {
			return name, err
		}
	}
	return "", nil
}
