// Package api provides the HTTP surface of the relay: routing, webhook
// dispatch and execution history endpoints. Routing failures are data, so
// handlers answer 200 with a structured result; only malformed HTTP input
// gets a 4xx.
package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/atelierhq/relay"
	"github.com/atelierhq/relay/internal/webhook"
	relayerrors "github.com/atelierhq/relay/pkg/errors"
)

const maxBodyBytes = 1 << 20 // 1MiB

// Handler handles HTTP requests for the relay.
type Handler struct {
	client     *relay.Client
	dispatcher *webhook.Dispatcher
	logger     *slog.Logger
}

// NewHandler creates a new API handler. The dispatcher may be nil when
// webhook dispatch is not configured.
func NewHandler(client *relay.Client, dispatcher *webhook.Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Register wires all endpoints onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/route", h.Route)
	mux.HandleFunc("POST /v1/dispatch/{module}", h.Dispatch)
	mux.HandleFunc("GET /v1/executions", h.ListExecutions)
	mux.HandleFunc("DELETE /v1/executions", h.ClearExecutions)
	mux.HandleFunc("GET /health/live", h.HealthCheck)
	mux.HandleFunc("GET /health/ready", h.ReadyCheck)
}

// Route handles POST /v1/route requests.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	var req relay.Request
	if !h.decode(w, r, &req) {
		return
	}

	res := h.client.Route(r.Context(), req)
	h.writeJSON(w, http.StatusOK, res)
}

// Dispatch handles POST /v1/dispatch/{module} requests.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		h.writeError(w, http.StatusNotFound, "webhook dispatch is not configured")
		return
	}

	module := r.PathValue("module")
	if module == "" {
		h.writeError(w, http.StatusBadRequest, "module is required")
		return
	}

	var payload webhook.Payload
	if !h.decode(w, r, &payload) {
		return
	}

	res := h.dispatcher.Dispatch(r.Context(), module, payload)
	h.writeJSON(w, http.StatusOK, res)
}

// ListExecutions handles GET /v1/executions requests. An optional ?type=
// query keeps only records of that request type.
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	records := h.client.History(r.URL.Query().Get("type"))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// ClearExecutions handles DELETE /v1/executions requests.
func (h *Handler) ClearExecutions(w http.ResponseWriter, r *http.Request) {
	h.client.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles liveness probes.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyCheck handles readiness probes. It verifies the cache backend is
// reachable; an unreachable backend answers 503 so traffic is held back.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness probe failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads and unmarshals the request body, answering 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{
		"error": &relayerrors.RouteError{
			StatusCode: status,
			Kind:       relayerrors.KindMalformed,
			Message:    msg,
		},
	})
}
