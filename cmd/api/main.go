package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/team-tickets/internal/api/http"
	"github.com/spec-kit/team-tickets/internal/api/http/handlers"
	"github.com/spec-kit/team-tickets/internal/clock"
	"github.com/spec-kit/team-tickets/internal/config"
	"github.com/spec-kit/team-tickets/internal/events"
	"github.com/spec-kit/team-tickets/internal/observability"
	"github.com/spec-kit/team-tickets/internal/persistence"
	"github.com/spec-kit/team-tickets/internal/repository"
	"github.com/spec-kit/team-tickets/internal/service"
	"github.com/spec-kit/team-tickets/internal/worker"
)

func main() {
	envFile := pflag.String("env-file", "", "dotenv file to load before reading the environment")
	seedFile := pflag.String("seed-file", "", "YAML file with the team members to seed (overrides SEED_MEMBERS_FILE)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *seedFile != "" {
		cfg.Seed.MembersFile = *seedFile
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.Store
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.PoolHandle())
	} else {
		logger.Info("POSTGRES_DSN not provided; using in-memory store")
		store = repository.NewMemoryStore()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var cache service.TicketCache = service.NopTicketCache{}
	if redis.Enabled() {
		cache = service.NewRedisTicketCache(redis.Client, cfg.App.Name+":", cfg.Cache.TicketTTL())
	}

	members, err := persistence.LoadMemberSeed(cfg.Seed.MembersFile)
	if err != nil {
		logger.Fatal("failed to load member seed", zap.Error(err))
	}
	if _, err := persistence.SeedMembers(ctx, store, members, logger); err != nil {
		logger.Fatal("failed to seed members", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Cache:      cache,
		Dispatcher: dispatcher,
		Clock:      clock.Real(),
		Logger:     logger,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Tickets: handlers.NewTicketsHandler(ticketService),
		Members: handlers.NewMembersHandler(ticketService),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
