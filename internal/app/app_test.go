package app

import (
	"testing"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/storage"
)

func TestNew_MemoryDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Store.(*storage.MemoryStorage); !ok {
		t.Errorf("store = %T, want *storage.MemoryStorage", a.Store)
	}
	if a.Redis != nil || a.Telegram != nil {
		t.Errorf("optional components should be off: redis=%v telegram=%v", a.Redis, a.Telegram)
	}
	if a.Processor == nil || a.Data == nil {
		t.Fatal("processor and data client must be built")
	}
	a.RegisterHealthChecks()
}

func TestOpenStorage_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "sqlite"
	if _, err := OpenStorage(cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
