package processor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterHTTP registers pipeline endpoints onto r
func (p *Processor) RegisterHTTP(r *mux.Router) {
	r.HandleFunc("/process", p.handleProcess).Methods(http.MethodPost)
	r.HandleFunc("/process/status", p.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/async/start", p.handleStartAsync).Methods(http.MethodPost)
	r.HandleFunc("/async/stop", p.handleStopAsync).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleProcess runs the pipeline once and returns its report
func (p *Processor) handleProcess(w http.ResponseWriter, r *http.Request) {
	// Detached from the request so a client disconnect does not abort half a run.
	report, err := p.ProcessAll(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, ErrRunInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "report": report})
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (p *Processor) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.Status())
}

// handleStopAsync stops asynchronous processing
func (p *Processor) handleStopAsync(w http.ResponseWriter, r *http.Request) {
	if !p.IsAsyncRunning() {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "already_stopped",
			"message": "Async processing is not running",
		})
		return
	}

	p.StopAsync()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "stopped",
		"message": "Async processing stopped successfully",
	})
}

// handleStartAsync starts asynchronous processing
func (p *Processor) handleStartAsync(w http.ResponseWriter, r *http.Request) {
	if p.IsAsyncRunning() {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "already_running",
			"message": "Async processing is already running",
		})
		return
	}

	if err := p.StartAsync(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "failed to start async processing",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "started",
		"message": "Async processing started successfully",
	})
}
