// Package app wires storage, the sports-data client, notifiers and the
// result processor from service config. Every binary builds on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Vodeneev/vodeneevgames/internal/notify"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/health/handlers"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/sportsdata"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/storage"
	"github.com/Vodeneev/vodeneevgames/internal/processor"
)

type App struct {
	Config    *config.Config
	Store     storage.Storage
	Redis     *storage.RedisClient // nil when redis.addr is empty
	Data      *sportsdata.Client
	Telegram  *notify.TelegramNotifier // nil when telegram is not configured
	Processor *processor.Processor
}

// OpenStorage returns the store selected by storage.driver
func OpenStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		s, err := storage.NewPostgresStorage(&cfg.Postgres)
		if err != nil {
			return nil, err
		}
		slog.Info("PostgreSQL storage initialized")
		return s, nil
	case "memory":
		slog.Warn("Using in-memory storage, state is lost on restart")
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// New builds every component. Redis and Telegram are optional; failing to
// reach a configured Redis is an error, failing to start Telegram is not.
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	store, err := OpenStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.Store = store

	var cache sportsdata.Cache
	var locker processor.Locker
	if cfg.Redis.Addr != "" {
		rc, err := storage.NewRedisClient(&cfg.Redis)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.Redis = rc
		cache, locker = rc, rc
		slog.Info("Redis cache and processing lock enabled", "addr", cfg.Redis.Addr)
	}

	a.Data = sportsdata.NewClient(&cfg.SportsData, cache)

	notifiers := notify.Multi{notify.NewLogNotifier(nil)}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			slog.Warn("Failed to initialize Telegram notifier, continuing without it", "error", err)
		} else {
			a.Telegram = tg
			notifiers = append(notifiers, tg)
		}
	}

	a.Processor = processor.New(store, a.Data, notifiers, locker, processor.OptionsFromConfig(cfg))
	return a, nil
}

// RegisterHealthChecks exposes store and cache reachability on /health
func (a *App) RegisterHealthChecks() {
	if p, ok := a.Store.(interface{ Ping(context.Context) error }); ok {
		handlers.SetHealthCheck("storage", p.Ping)
	}
	if a.Redis != nil {
		handlers.SetHealthCheck("redis", a.Redis.Ping)
	}
}

// Close flushes queued notifications and closes connections
func (a *App) Close() error {
	if a.Telegram != nil {
		a.Telegram.Stop()
	}
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
