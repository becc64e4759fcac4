package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestNewRouter(t *testing.T) {
	r := NewRouter(func(r *mux.Router) {
		r.HandleFunc("/extra", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("extra")) })
	})

	tests := []struct {
		path string
		want string
	}{
		{"/ping", "pong\n"},
		{"/health", "ok\n"},
		{"/extra", "extra"},
		{"/metrics", `"total_runs"`},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", tt.path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("%s: body = %q, want %q", tt.path, rec.Body.String(), tt.want)
		}
	}
}

func TestAddrFor(t *testing.T) {
	if addr, err := AddrFor(8080); err != nil || addr != ":8080" {
		t.Errorf("AddrFor(8080) = %q, %v", addr, err)
	}
	if _, err := AddrFor(0); err == nil {
		t.Error("expected error for port 0")
	}
}
