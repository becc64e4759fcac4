package sportsdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

const matchesBody = `{
  "matches": [
    {"id": 1, "utcDate": "2026-10-10T14:00:00Z", "status": "FINISHED", "matchday": 8,
     "homeTeam": {"name": "Arsenal FC"}, "awayTeam": {"name": "Chelsea FC"},
     "score": {"winner": "HOME_TEAM", "fullTime": {"home": 2, "away": 1}}},
    {"id": 2, "utcDate": "2026-10-10T16:30:00Z", "status": "POSTPONED", "matchday": 8,
     "homeTeam": {"name": "Everton FC"}, "awayTeam": {"name": "Fulham FC"},
     "score": {"fullTime": {"home": null, "away": null}}},
    {"id": 3, "utcDate": "2026-10-11T15:00:00Z", "status": "TIMED", "matchday": 8,
     "homeTeam": {"name": "Liverpool FC"}, "awayTeam": {"name": "Brentford FC"},
     "score": {"fullTime": {"home": null, "away": null}}}
  ]
}`

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func newTestClient(t *testing.T, h http.HandlerFunc, cache Cache) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&config.SportsDataConfig{
		BaseURL:         srv.URL + "/",
		APIKey:          "secret",
		Timeout:         time.Second,
		LiveCacheTTL:    time.Minute,
		SettledCacheTTL: time.Hour,
	}, cache)
}

func TestFixtures_MapsProviderMatches(t *testing.T) {
	var gotPath, gotQuery, gotToken string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotToken = r.URL.Path, r.URL.RawQuery, r.Header.Get("X-Auth-Token")
		w.Write([]byte(matchesBody))
	}, nil)

	fixtures, err := c.Fixtures(context.Background(), "PL", 2026, 8)
	if err != nil {
		t.Fatalf("Fixtures: %v", err)
	}
	if gotPath != "/competitions/PL/matches" || gotQuery != "matchday=8&season=2026" || gotToken != "secret" {
		t.Errorf("request = %s?%s token %q", gotPath, gotQuery, gotToken)
	}

	statuses := make([]models.FixtureStatus, 0, len(fixtures))
	for _, f := range fixtures {
		statuses = append(statuses, f.Status)
	}
	want := []models.FixtureStatus{models.FixtureFinished, models.FixturePostponed, models.FixtureScheduled}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
	first := fixtures[0]
	if first.Round != 8 || first.Competition != "PL" || first.Season != 2026 || *first.HomeGoals != 2 || *first.AwayGoals != 1 {
		t.Errorf("unexpected first fixture %+v", first)
	}
	if fixtures[1].HomeGoals != nil {
		t.Error("postponed fixture must not carry a score")
	}
}

func TestFixtures_RateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, nil)
	_, err := c.Fixtures(context.Background(), "PL", 2026, 0)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
}

func TestFixtures_UnexpectedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}, nil)
	if _, err := c.Fixtures(context.Background(), "PL", 2026, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestFixtures_ErrorKeepsBodyPrefix(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream failure " + strings.Repeat("x", 10000)))
	}, nil)
	_, err := c.Fixtures(context.Background(), "PL", 2026, 0)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "500") || !strings.Contains(msg, "upstream failure") {
		t.Errorf("error = %q, want status and body prefix", msg)
	}
	if len(msg) > 400 {
		t.Errorf("error length = %d, want the body cut to a prefix", len(msg))
	}
}

func TestFixtures_UsesCache(t *testing.T) {
	calls := 0
	cache := newMemCache()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(matchesBody))
	}, cache)

	for i := 0; i < 2; i++ {
		if _, err := c.Fixtures(context.Background(), "PL", 2026, 8); err != nil {
			t.Fatalf("Fixtures: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("provider calls = %d, want 1", calls)
	}
	for _, ttl := range cache.ttls {
		// Fixture 3 is still scheduled, so the round is live.
		if ttl != time.Minute {
			t.Errorf("ttl = %v, want live ttl", ttl)
		}
	}
}

func TestStandings_TotalTable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"standings": [
		  {"type": "HOME", "table": [{"position": 1, "team": {"name": "Chelsea FC"}}]},
		  {"type": "TOTAL", "table": [
		    {"position": 1, "team": {"name": "Arsenal FC"}, "playedGames": 8, "points": 20, "goalsFor": 18, "goalDifference": 12},
		    {"position": 2, "team": {"name": "Liverpool FC"}, "playedGames": 8, "points": 18, "goalsFor": 16, "goalDifference": 9}
		  ]}
		]}`))
	}, nil)
	st, err := c.Standings(context.Background(), "PL", 2026)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	want := []models.Standing{
		{Competition: "PL", Season: 2026, Position: 1, TeamName: "Arsenal FC", Played: 8, Points: 20, GoalDifference: 12, GoalsFor: 18},
		{Competition: "PL", Season: 2026, Position: 2, TeamName: "Liverpool FC", Played: 8, Points: 18, GoalDifference: 9, GoalsFor: 16},
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("standings mismatch (-want +got):\n%s", diff)
	}
}

func TestTeams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"teams": [{"name": "Arsenal FC"}, {"name": "Chelsea FC"}]}`))
	}, nil)
	teams, err := c.Teams(context.Background(), "PL", 2026)
	if err != nil {
		t.Fatalf("Teams: %v", err)
	}
	if diff := cmp.Diff([]string{"Arsenal FC", "Chelsea FC"}, teams); diff != "" {
		t.Errorf("teams mismatch (-want +got):\n%s", diff)
	}
}

func TestThrottle_RespectsContext(t *testing.T) {
	c := &Client{minInterval: time.Hour, lastRequest: time.Now()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.throttle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("throttle error = %v, want context.Canceled", err)
	}
}

func TestMapStatus(t *testing.T) {
	tests := map[string]models.FixtureStatus{
		"SCHEDULED": models.FixtureScheduled,
		"TIMED":     models.FixtureScheduled,
		"IN_PLAY":   models.FixtureLive,
		"PAUSED":    models.FixtureLive,
		"FINISHED":  models.FixtureFinished,
		"AWARDED":   models.FixtureFinished,
		"SUSPENDED": models.FixturePostponed,
		"CANCELLED": models.FixtureCancelled,
	}
	for in, want := range tests {
		if got := mapStatus(in); got != want {
			t.Errorf("mapStatus(%q) = %s, want %s", in, got, want)
		}
	}
}
