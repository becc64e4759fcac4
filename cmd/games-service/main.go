package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Vodeneev/vodeneevgames/internal/api"
	"github.com/Vodeneev/vodeneevgames/internal/app"
	pkgconfig "github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/health"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/logging"
)

const (
	defaultConfigPath = "configs/production.yaml"
)

type config struct {
	configPath string
	port       int
	runFor     time.Duration
}

func main() {
	if err := run(); err != nil {
		slog.Error("Games service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	slog.Info("Starting games service...")

	cfg := parseFlags()

	slog.Info("Loading config", "path", cfg.configPath)
	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.port > 0 {
		addr, err := health.AddrFor(cfg.port)
		if err != nil {
			return err
		}
		appConfig.Server.Addr = addr
	}
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	_, closer, err := logging.SetupLogger(&appConfig.Logging, "games-service")
	if err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	} else {
		defer closer.Close()
		slog.Info("Logging initialized", "service", "games-service")
	}

	a, err := app.New(appConfig)
	if err != nil {
		return err
	}
	defer a.Close()
	a.RegisterHealthChecks()

	ctx, cancel := createContext(cfg.runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	srv := api.NewServer(a.Store, a.Data)
	router := health.NewRouter(srv.Register, a.Processor.RegisterHTTP)

	go func() {
		if err := a.Processor.Start(ctx); err != nil {
			slog.Error("Failed to start processor", "error", err)
			cancel()
		}
	}()

	if err := health.Run(ctx, appConfig.Server, "games-service", router); err != nil {
		cancel()
		return err
	}
	slog.Info("Games service stopped gracefully")
	return nil
}

func parseFlags() config {
	var cfg config
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}
	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file")
	flag.IntVar(&cfg.port, "port", 0, "Override server.addr with :port")
	flag.DurationVar(&cfg.runFor, "run-for", 0, "Auto-stop after duration. 0 = run until SIGINT/SIGTERM")
	flag.Parse()
	return cfg
}

func createContext(runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(context.Background(), runFor)
	}
	return context.WithCancel(context.Background())
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			signal.Stop(sigChan)
		}
	}()
}
