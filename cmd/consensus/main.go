package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/Consensus/internal/api"
	"github.com/MikeSquared-Agency/Consensus/internal/config"
	"github.com/MikeSquared-Agency/Consensus/internal/constraints"
	"github.com/MikeSquared-Agency/Consensus/internal/fairness"
	"github.com/MikeSquared-Agency/Consensus/internal/hermes"
	"github.com/MikeSquared-Agency/Consensus/internal/ingest"
	"github.com/MikeSquared-Agency/Consensus/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("failed to load env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Engine
	heuristics, err := constraints.LoadHeuristics(cfg.Engine.HeuristicsFile)
	if err != nil {
		logger.Error("failed to load heuristics", "error", err)
		os.Exit(1)
	}
	defaultMode, _ := fairness.ParseMode(cfg.Engine.DefaultMode)
	selector := fairness.NewSelector(
		fairness.NewScorer(constraints.NewMatcher(heuristics)),
		cfg.Engine.Parallelism,
		logger,
	)

	// Preference ingestion
	consumer := ingest.New(db, hermesClient, logger)
	if err := consumer.SetupSubscriptions(); err != nil {
		logger.Error("failed to subscribe to preference batches", "error", err)
		os.Exit(1)
	}

	// API server
	router := api.NewRouter(db, hermesClient, selector, api.Options{
		AdminToken:    cfg.Server.AdminToken,
		RateLimit:     cfg.Server.RateLimit,
		DefaultMode:   defaultMode,
		MaxCandidates: cfg.Engine.MaxCandidates,
	}, logger)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// openStore picks Postgres or memory for persistence and adds the Redis
// profile cache when an address is configured.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var s store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("connected to database")
		s = pg
	} else {
		logger.Warn("no database configured, profiles are kept in memory")
		s = store.NewMemoryStore()
	}

	if cfg.Redis.Addr == "" {
		return s, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, profile cache disabled", "addr", cfg.Redis.Addr, "error", err)
		_ = rdb.Close()
		return s, nil
	}
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	return store.NewCachedStore(s, store.NewRedisCache(rdb), cfg.CacheTTL(), logger), nil
}
