// clean-db truncates game tables, e.g. to reset a staging database.
// Usage: set POSTGRES_DSN (same as for games-service), then run:
//
//	go run ./cmd/clean-db -yes
//	# only some tables
//	./clean-db -yes -tables=fixtures,payouts
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Vodeneev/vodeneevgames/internal/app"
	pkgconfig "github.com/Vodeneev/vodeneevgames/internal/pkg/config"
)

func main() {
	_ = godotenv.Load()

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/production.yaml"
	}
	configPath := flag.String("config", defaultConfig, "Path to config file")
	only := flag.String("tables", "", "Comma-separated tables to truncate (default: all game tables)")
	yes := flag.Bool("yes", false, "Confirm truncation")
	flag.Parse()

	cfg, err := pkgconfig.Load(*configPath)
	if err != nil {
		// Running with only POSTGRES_DSN set is fine.
		cfg = pkgconfig.Default()
		cfg.ApplyEnv()
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	store, err := app.OpenStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	tables := store.Tables()
	if *only != "" {
		known := make(map[string]bool, len(tables))
		for _, t := range tables {
			known[t] = true
		}
		tables = tables[:0:0]
		for _, t := range strings.Split(*only, ",") {
			t = strings.TrimSpace(t)
			if !known[t] {
				log.Fatalf("Unknown table %q (known: %s)", t, strings.Join(store.Tables(), ", "))
			}
			tables = append(tables, t)
		}
	}

	if !*yes {
		log.Printf("Would truncate: %s", strings.Join(tables, ", "))
		log.Fatal("Refusing to run without -yes")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := 0
	for _, table := range tables {
		if err := store.CleanTable(ctx, table); err != nil {
			log.Printf("Warning: truncate %s: %v", table, err)
			failed++
			continue
		}
		log.Printf("Truncated %s", table)
	}
	if failed > 0 {
		log.Fatalf("%d of %d tables failed", failed, len(tables))
	}
	log.Println("Done. Game tables cleared.")
}
