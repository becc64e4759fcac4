package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/performance"
)

// CheckFunc reports whether a dependency (database, cache) is reachable
type CheckFunc func(ctx context.Context) error

var (
	checksMu sync.RWMutex
	checks   = map[string]CheckFunc{}
)

// SetHealthCheck registers a named dependency check used by /health
func SetHealthCheck(name string, fn CheckFunc) {
	checksMu.Lock()
	defer checksMu.Unlock()
	if fn == nil {
		delete(checks, name)
		return
	}
	checks[name] = fn
}

// HandlePing handles /ping endpoint
func HandlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong\n"))
}

// HandleHealth handles /health endpoint; 503 when any registered check fails
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checksMu.RLock()
	defer checksMu.RUnlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for name, fn := range checks {
		if err := fn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "unhealthy: %s: %v\n", name, err)
			return
		}
	}
	_, _ = w.Write([]byte("ok\n"))
}

// HandleMetrics handles /metrics endpoint
func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := performance.GetTracker().GetMetrics()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(metrics); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode metrics: %v", err), http.StatusInternalServerError)
		return
	}
}
