// Package main provides the chess server binary: a TCP listener that
// authenticates players, manages the roster, and runs game sessions.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/rsoares/xadrez/internal/config"
	"github.com/rsoares/xadrez/internal/game"
	"github.com/rsoares/xadrez/internal/observability"
	"github.com/rsoares/xadrez/internal/server"
	"github.com/rsoares/xadrez/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting chess server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_connections", cfg.Server.MaxConnections),
	)

	// Connect to PostgreSQL for accounts and stats
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	users := postgres.NewUserRepository(pool.DB())

	registry := server.NewRegistry(logger)
	games := game.NewManager(cfg.Server.InviteTTL)
	gameHandler := server.NewGameHandler(registry, games, game.CoordinateValidator{}, users, logger)
	inviteHandler := server.NewInviteHandler(registry, games, logger)

	router := server.NewRouter(logger)
	server.NewAuthHandler(users, registry, logger).Register(router)
	server.NewRosterHandler(registry).Register(router)
	inviteHandler.Register(router)
	gameHandler.Register(router)

	heartbeat := server.NewHeartbeat(cfg.Heartbeat, logger)
	srv := server.NewServer(cfg.Server, registry, router, heartbeat, gameHandler, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("tcp", &server.FuncService{
		StartFn: srv.ListenAndServe,
		StopFn: func() {
			srv.Stop()
			registry.CloseAll()
		},
	})

	expiryCtx, cancelExpiry := context.WithCancel(ctx)
	lifecycle.Add("invite-expiry", &server.FuncService{
		StartFn: func() error {
			inviteHandler.RunExpiry(expiryCtx)
			return nil
		},
		StopFn: cancelExpiry,
	})

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("chess server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
