package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleHealth_FailingCheck(t *testing.T) {
	SetHealthCheck("postgres", func(context.Context) error { return errors.New("connection refused") })
	t.Cleanup(func() { SetHealthCheck("postgres", nil) })

	rec := httptest.NewRecorder()
	HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "postgres: connection refused") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleHealth_OK(t *testing.T) {
	SetHealthCheck("redis", func(context.Context) error { return nil })
	t.Cleanup(func() { SetHealthCheck("redis", nil) })

	rec := httptest.NewRecorder()
	HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}
