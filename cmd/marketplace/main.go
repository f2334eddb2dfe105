package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/config"
	"food-marketplace/internal/connections/database"
	"food-marketplace/internal/microservices/notificator"
	"food-marketplace/internal/microservices/order"
)

const modes = "order-service | notification-subscriber | migrate"

func main() {
	mode := pflag.String("mode", "", modes)
	cfgPath := pflag.String("config", "", "path to YAML config (default: config.yaml if present)")
	port := pflag.Int("port", 0, "order-service: http port, overrides the config")
	store := pflag.String("store", "", "order-service: postgres | memory, overrides the config")
	pflag.Parse()

	lg := logger.New("bootstrap")

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		lg.Error("config_load_failed", err, nil)
		os.Exit(1)
	}
	cfg.ApplyFlags(*store, *port)
	if err := cfg.Validate(); err != nil {
		lg.Error("config_invalid", err, nil)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "order-service":
		svcLog := logger.New("order-service")
		svcLog.SetLevel(logger.ParseLevel(cfg.Log.Level))
		err = order.Run(ctx, cfg, svcLog)
	case "notification-subscriber":
		subLog := logger.New("notification-subscriber")
		subLog.SetLevel(logger.ParseLevel(cfg.Log.Level))
		subLog.Info("service_started", nil)
		err = notificator.Start(ctx, cfg.RabbitMQ, subLog)
	case "migrate":
		err = migrate(ctx, cfg)
		if err == nil {
			lg.Info("migrations_applied", map[string]any{"database": cfg.Database.Database})
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: "+modes)
		os.Exit(2)
	}
	if err != nil {
		lg.Error("fatal", err, map[string]any{"mode": *mode})
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		found, err := config.FindConfig()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		path = found
	}
	// validated by the caller once the flags are applied
	return config.Load(path)
}

func migrate(ctx context.Context, cfg *config.Config) error {
	pool, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	return database.Migrate(ctx, pool)
}
