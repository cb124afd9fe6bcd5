package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"math-rush-service/internal/app"
	"math-rush-service/internal/config"
	"math-rush-service/internal/infra/memory"
	"math-rush-service/internal/infra/postgres"
	redisinfra "math-rush-service/internal/infra/redis"
	"math-rush-service/internal/question"
	transport "math-rush-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the math race server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var (
		sessions app.SessionStore
		stats    app.StatsStore
		board    app.LeaderboardSource
	)
	if pool != nil {
		store := postgres.NewUserStore(pool)
		sessions, stats, board = store, store, store
	} else {
		store := memory.NewUserStore()
		sessions, stats, board = store, store, store
	}

	sessionTTL := config.TTLDuration(cfg.Redis.SessionTTL, 10*time.Minute)
	boardTTL := config.TTLDuration(cfg.Leaderboard.TTL, 5*time.Second)
	if redisClient != nil {
		sessions = redisinfra.NewSessionCache(redisClient, sessions, sessionTTL)
		board = redisinfra.NewLeaderboardCache(redisClient, board, boardTTL)
	} else {
		board = memory.NewLeaderboardCache(board, boardTTL)
	}

	hub := transport.NewHub()
	coordinator := app.NewCoordinator(app.Config{
		BufferWindow:    config.TTLDuration(cfg.Game.BufferWindow, 100*time.Millisecond),
		NextRoundDelay:  config.TTLDuration(cfg.Game.NextRoundDelay, 3*time.Second),
		LeaderboardSize: cfg.Leaderboard.Size,
	}, clockwork.NewRealClock(), question.NewGenerator(), sessions, stats, board, hub)
	coordinator.Start()

	wsHandler := transport.NewWSHandler(coordinator, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", finalPort).Msg("starting math rush service")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			// Failing to bind the listening transport is the one fatal
			// startup condition.
			log.Error().Err(err).Msg("server failed to start")
			return err
		}
		return nil
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
