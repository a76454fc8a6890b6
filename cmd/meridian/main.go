package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/events"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	publisher := events.NewRedisPublisher(redisClient)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo)

	journalsRepo := journals.NewRepository(pool)
	journalsService := journals.NewService(journalsRepo, journals.NewValidator(accountsRepo), publisher, logger)

	fiscalRepo := fiscal.NewRepository(pool)
	fiscalService := fiscal.NewService(fiscalRepo, cfg.RetainedEarningsCode, publisher, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		JournalsHandler: journals.NewHandler(logger, journalsService),
		FiscalHandler:   fiscal.NewHandler(logger, fiscalService),
		AccountsHandler: accounts.NewHandler(logger, accountsService),
	})

	if err := app.RunServer(ctx, logger, cfg, router); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
