package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/saransh1220/novel-notify/db/migrations"
	"github.com/saransh1220/novel-notify/internal/gateway"
	"github.com/saransh1220/novel-notify/internal/gateway/middleware"
	"github.com/saransh1220/novel-notify/internal/modules/notification"
	"github.com/saransh1220/novel-notify/internal/shared/infrastructure/config"
	"github.com/saransh1220/novel-notify/internal/shared/infrastructure/database"
	"github.com/saransh1220/novel-notify/pkg/migration"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func migrationConfig(cfg config.Config, logger *slog.Logger) migration.Config {
	mc := migration.Config{
		MigrationsPath: cfg.Migrations.Path,
		DatabaseURL:    cfg.Database.URL(),
		Logger:         logger,
	}
	if mc.MigrationsPath == "" {
		mc.Source = migrations.FS
	}
	return mc
}

func connectRedis(cfg config.Config, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		logger.Info("Redis fan-out disabled, delivering to local channels only")
		return nil, nil
	}
	client, err := database.NewRedis(cfg.Redis.RedisConfig)
	if err != nil {
		return nil, err
	}
	logger.Info("Redis connected", "addr", cfg.Redis.Addr())
	return client, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("Connecting to database", "host", cfg.Database.Host, "name", cfg.Database.DBName)
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Migrations.AutoRun {
		if err := migration.AutoMigrate(migrationConfig(cfg, logger)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient, err := connectRedis(cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	notificationModule := notification.NewModule(db, redisClient, cfg.Stream.Heartbeat, logger)
	defer notificationModule.Shutdown()

	handler := gateway.NewHandler(gateway.RouterConfig{
		AuthMiddleware:      middleware.NewAuthMiddleware(cfg.JWT.Secret),
		NotificationHandler: notificationModule.HTTPHandler(),
		AllowedOrigins:      cfg.Server.AllowedOrigins,
	})
	server := gateway.NewServer(cfg.Server.Port, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		err := notificationModule.RunSubscriber(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("notification subscriber: %w", err)
		}
		return nil
	})

	return g.Wait()
}
