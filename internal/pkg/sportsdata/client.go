// Package sportsdata fetches fixtures, results and standings from the
// football-data.org v4 API.
package sportsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/validation"
)

// ErrRateLimited is returned when the provider answers 429
var ErrRateLimited = errors.New("sports data rate limit exceeded")

const (
	maxResponseSize = 8 << 20
	errorBodyPrefix = 200
)

// Cache stores raw provider responses. storage.RedisClient implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Client talks to the sports-data provider
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	minInterval time.Duration
	mu          sync.Mutex
	lastRequest time.Time

	cache      Cache
	liveTTL    time.Duration
	settledTTL time.Duration
}

// NewClient creates a client; cache may be nil
func NewClient(cfg *config.SportsDataConfig, cache Cache) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		minInterval: cfg.MinInterval,
		cache:       cache,
		liveTTL:     cfg.LiveCacheTTL,
		settledTTL:  cfg.SettledCacheTTL,
	}
}

// Fixtures returns matches of a competition season. matchday 0 fetches the whole season.
func (c *Client) Fixtures(ctx context.Context, competition string, season, matchday int) ([]models.Fixture, error) {
	q := url.Values{}
	q.Set("season", strconv.Itoa(season))
	if matchday > 0 {
		q.Set("matchday", strconv.Itoa(matchday))
	}
	path := fmt.Sprintf("/competitions/%s/matches", url.PathEscape(competition))

	var resp matchesResponse
	ttl := func(body []byte) time.Duration {
		var probe matchesResponse
		if err := json.Unmarshal(body, &probe); err != nil {
			return c.liveTTL
		}
		fixtures := make([]models.Fixture, 0, len(probe.Matches))
		for _, m := range probe.Matches {
			fixtures = append(fixtures, m.toFixture(competition, season))
		}
		if models.RoundComplete(fixtures) {
			return c.settledTTL
		}
		return c.liveTTL
	}
	if err := c.getJSON(ctx, path, q, ttl, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch fixtures for %s %d: %w", competition, season, err)
	}

	out := make([]models.Fixture, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		out = append(out, m.toFixture(competition, season))
	}
	out, dropped := validation.CleanFixtures(out)
	for _, err := range dropped {
		slog.Warn("sportsdata: dropping fixture", "competition", competition, "season", season, "error", err)
	}
	return out, nil
}

// Standings returns the current total table of a competition season
func (c *Client) Standings(ctx context.Context, competition string, season int) ([]models.Standing, error) {
	q := url.Values{}
	q.Set("season", strconv.Itoa(season))
	path := fmt.Sprintf("/competitions/%s/standings", url.PathEscape(competition))

	var resp standingsResponse
	if err := c.getJSON(ctx, path, q, c.fixedTTL(c.liveTTL), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch standings for %s %d: %w", competition, season, err)
	}
	return resp.toStandings(competition, season), nil
}

// Teams returns the team names taking part in a competition season
func (c *Client) Teams(ctx context.Context, competition string, season int) ([]string, error) {
	q := url.Values{}
	q.Set("season", strconv.Itoa(season))
	path := fmt.Sprintf("/competitions/%s/teams", url.PathEscape(competition))

	var resp teamsResponse
	if err := c.getJSON(ctx, path, q, c.fixedTTL(c.settledTTL), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch teams for %s %d: %w", competition, season, err)
	}
	out := make([]string, 0, len(resp.Teams))
	for _, t := range resp.Teams {
		out = append(out, t.Name)
	}
	return validation.SanitizeTeams(out), nil
}

func (c *Client) fixedTTL(d time.Duration) func([]byte) time.Duration {
	return func([]byte) time.Duration { return d }
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, ttl func([]byte) time.Duration, dst any) error {
	if c == nil {
		return fmt.Errorf("sports data client is not configured")
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	if c.cache != nil {
		if body, ok, err := c.cache.Get(ctx, cacheKey(u)); err != nil {
			slog.Warn("sports data cache read failed", "url", u, "error", err)
		} else if ok {
			if err := json.Unmarshal(body, dst); err == nil {
				return nil
			}
		}
	}

	body, err := c.fetch(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if c.cache != nil {
		if d := ttl(body); d > 0 {
			if err := c.cache.Set(ctx, cacheKey(u), body, d); err != nil {
				slog.Warn("sports data cache write failed", "url", u, "error", err)
			}
		}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Auth-Token", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	slog.Debug("sports data request", "url", u, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		prefix, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPrefix))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(prefix)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseSize)
	}
	return body, nil
}

// throttle keeps at least minInterval between two outgoing requests
func (c *Client) throttle(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	wait := time.Until(c.lastRequest.Add(c.minInterval))
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func cacheKey(u string) string {
	return "sportsdata:" + u
}
