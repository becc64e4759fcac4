// Package api is the JSON surface used by the web client and the ops bot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/Vodeneev/vodeneevgames/internal/games"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/storage"
)

// DataSource provides competition data the store may not have yet.
// sportsdata.Client implements it.
type DataSource interface {
	Fixtures(ctx context.Context, competition string, season, matchday int) ([]models.Fixture, error)
	Teams(ctx context.Context, competition string, season int) ([]string, error)
}

type Server struct {
	store     storage.Storage
	data      DataSource
	validator *validator.Validate
	now       func() time.Time
}

func NewServer(store storage.Storage, data DataSource) *Server {
	return &Server{
		store:     store,
		data:      data,
		validator: validator.New(),
		now:       time.Now,
	}
}

// Register mounts the API under /api
func (s *Server) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/instances", s.handleListInstances).Methods(http.MethodGet)
	api.HandleFunc("/instances", s.handleCreateInstance).Methods(http.MethodPost)
	api.HandleFunc("/instances/{id:[0-9]+}", s.handleGetInstance).Methods(http.MethodGet)
	api.HandleFunc("/instances/{id:[0-9]+}/entries", s.handleListEntries).Methods(http.MethodGet)
	api.HandleFunc("/instances/{id:[0-9]+}/entries", s.handleCreateEntry).Methods(http.MethodPost)
	api.HandleFunc("/instances/{id:[0-9]+}/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)

	api.HandleFunc("/entries/{id:[0-9]+}/picks", s.handleSubmitPick).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id:[0-9]+}/predictions", s.handleSubmitPredictions).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id:[0-9]+}/table", s.handleSubmitTable).Methods(http.MethodPost)
}

// statusError carries an HTTP status through the handler helpers
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func errorf(status int, format string, args ...any) error {
	return &statusError{status: status, msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *statusError
	var ve validator.ValidationErrors
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &se):
		status = se.status
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict), errors.Is(err, games.ErrLocked):
		status = http.StatusConflict
	case errors.Is(err, games.ErrInvalidPick):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		slog.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode reads a JSON body into dst and validates it
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errorf(http.StatusBadRequest, "invalid request body: %v", err)
	}
	if err := s.validator.StructCtx(r.Context(), dst); err != nil {
		return err
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errorf(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
