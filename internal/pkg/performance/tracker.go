package performance

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

const maxRecentRuns = 100

// Tracker tracks metrics of result-processing runs
type Tracker struct {
	mu sync.RWMutex

	// Overall metrics
	TotalRuns          int
	FailedRuns         int
	InstancesProcessed int
	InstancesFailed    int
	InstancesSettled   int

	// Timing metrics
	TotalDuration time.Duration
	FetchDuration time.Duration
	ApplyDuration time.Duration

	LastRunAt time.Time

	// Most recent runs, oldest first
	Runs []RunTiming
}

// RunTiming is the summary of one processing run
type RunTiming struct {
	RunID     string
	StartedAt time.Time
	Instances int
	Failed    int
	Settled   int
	Fetch     time.Duration
	Apply     time.Duration
	Total     time.Duration
	Error     string
}

var globalTracker = &Tracker{Runs: make([]RunTiming, 0, maxRecentRuns)}

// GetTracker returns the global performance tracker
func GetTracker() *Tracker {
	return globalTracker
}

// Reset resets all metrics
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalRuns = 0
	t.FailedRuns = 0
	t.InstancesProcessed = 0
	t.InstancesFailed = 0
	t.InstancesSettled = 0
	t.TotalDuration = 0
	t.FetchDuration = 0
	t.ApplyDuration = 0
	t.LastRunAt = time.Time{}
	t.Runs = t.Runs[:0]
}

// RecordRun records a complete processing run
func (t *Tracker) RecordRun(run RunTiming) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalRuns++
	if run.Error != "" {
		t.FailedRuns++
	}
	t.InstancesProcessed += run.Instances
	t.InstancesFailed += run.Failed
	t.InstancesSettled += run.Settled
	t.TotalDuration += run.Total
	t.FetchDuration += run.Fetch
	t.ApplyDuration += run.Apply
	t.LastRunAt = run.StartedAt

	if len(t.Runs) >= maxRecentRuns {
		copy(t.Runs, t.Runs[1:])
		t.Runs = t.Runs[:len(t.Runs)-1]
	}
	t.Runs = append(t.Runs, run)
}

// PrintSummary logs a performance summary
func (t *Tracker) PrintSummary() {
	m := t.GetMetrics()
	if m.Overall.TotalRuns == 0 {
		slog.Info("No performance data collected yet")
		return
	}
	slog.Info("Processing performance summary",
		"total_runs", m.Overall.TotalRuns,
		"failed_runs", m.Overall.FailedRuns,
		"instances_processed", m.Overall.InstancesProcessed,
		"instances_failed", m.Overall.InstancesFailed,
		"instances_settled", m.Overall.InstancesSettled,
		"avg_total", m.Timing.AvgTotal,
		"avg_fetch", m.Timing.AvgFetch,
		"avg_apply", m.Timing.AvgApply,
		"fetch_percent", m.Timing.FetchPercent)
}

// MetricsResponse represents the JSON response structure for /metrics endpoint
type MetricsResponse struct {
	Overall struct {
		TotalRuns          int    `json:"total_runs"`
		FailedRuns         int    `json:"failed_runs"`
		InstancesProcessed int    `json:"instances_processed"`
		InstancesFailed    int    `json:"instances_failed"`
		InstancesSettled   int    `json:"instances_settled"`
		LastRunAt          string `json:"last_run_at,omitempty"`
	} `json:"overall"`

	Timing struct {
		AvgTotal     string  `json:"avg_total"`
		AvgFetch     string  `json:"avg_fetch"`
		AvgApply     string  `json:"avg_apply"`
		FetchPercent float64 `json:"fetch_percent"`
		ApplyPercent float64 `json:"apply_percent"`
	} `json:"timing"`

	SlowestRuns []RunSummary `json:"slowest_runs"`
}

// RunSummary is one run as rendered on /metrics
type RunSummary struct {
	RunID     string `json:"run_id"`
	StartedAt string `json:"started_at"`
	Instances int    `json:"instances"`
	Failed    int    `json:"failed"`
	Duration  string `json:"duration"`
	Error     string `json:"error,omitempty"`
}

// GetMetrics returns structured metrics for JSON API
func (t *Tracker) GetMetrics() MetricsResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var resp MetricsResponse
	resp.Overall.TotalRuns = t.TotalRuns
	resp.Overall.FailedRuns = t.FailedRuns
	resp.Overall.InstancesProcessed = t.InstancesProcessed
	resp.Overall.InstancesFailed = t.InstancesFailed
	resp.Overall.InstancesSettled = t.InstancesSettled
	if !t.LastRunAt.IsZero() {
		resp.Overall.LastRunAt = t.LastRunAt.UTC().Format(time.RFC3339)
	}

	if t.TotalRuns > 0 {
		runs := time.Duration(t.TotalRuns)
		resp.Timing.AvgTotal = (t.TotalDuration / runs).String()
		resp.Timing.AvgFetch = (t.FetchDuration / runs).String()
		resp.Timing.AvgApply = (t.ApplyDuration / runs).String()
		if t.TotalDuration > 0 {
			resp.Timing.FetchPercent = float64(t.FetchDuration) / float64(t.TotalDuration) * 100
			resp.Timing.ApplyPercent = float64(t.ApplyDuration) / float64(t.TotalDuration) * 100
		}
	}

	// Top 5 slowest of the recent runs
	slowest := append([]RunTiming(nil), t.Runs...)
	sort.SliceStable(slowest, func(i, j int) bool { return slowest[i].Total > slowest[j].Total })
	if len(slowest) > 5 {
		slowest = slowest[:5]
	}
	resp.SlowestRuns = make([]RunSummary, 0, len(slowest))
	for _, r := range slowest {
		resp.SlowestRuns = append(resp.SlowestRuns, RunSummary{
			RunID:     r.RunID,
			StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
			Instances: r.Instances,
			Failed:    r.Failed,
			Duration:  r.Total.String(),
			Error:     r.Error,
		})
	}
	return resp
}
