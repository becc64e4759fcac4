// process-results runs the result pipeline once and prints the run report as JSON.
// It is meant to be called by cron when the service runs without the async loop.
//
//	CONFIG_PATH=configs/production.yaml ./process-results
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Vodeneev/vodeneevgames/internal/app"
	pkgconfig "github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/logging"
	"github.com/Vodeneev/vodeneevgames/internal/processor"
)

// Exit codes: 0 all instances processed, 1 run failed, 2 some instances failed, 3 another run holds the lock
const (
	exitFailed     = 1
	exitPartial    = 2
	exitInProgress = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/production.yaml"
	}
	configPath := flag.String("config", defaultConfig, "Path to config file")
	flag.Parse()

	cfg, err := pkgconfig.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("Failed to load config", "path", *configPath, "error", err)
		return exitFailed
	}
	// The report goes to stdout; logs go to stderr so the output stays parseable.
	cfg.Processor.AsyncEnabled = false
	if _, closer, err := logging.SetupLoggerTo(&cfg.Logging, "process-results", os.Stderr); err == nil {
		defer closer.Close()
	}

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return exitFailed
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := a.Processor.ProcessAll(ctx)
	if errors.Is(err, processor.ErrRunInProgress) {
		slog.Warn("Another processing run is in progress, nothing to do")
		return exitInProgress
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(report); encErr != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", encErr)
	}

	switch {
	case err != nil:
		slog.Error("Processing run failed", "error", err)
		return exitFailed
	case report.Failed() > 0:
		return exitPartial
	default:
		return 0
	}
}
