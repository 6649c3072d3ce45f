// Package trigger implements the pipeline's external HTTP surface: the
// cycle-trigger endpoint and the health endpoint. It has no router
// framework dependency, registering routes directly on a stdlib mux.
package trigger

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"newsloom/internal/handler/http/respond"
	"newsloom/internal/observability/logging"
)

// Runner is the one method trigger depends on, so tests substitute a fake
// instead of wiring a real orchestrator.Service.
type Runner interface {
	Run(ctx context.Context) Result
}

// Result mirrors orchestrator.Result's shape without importing the
// orchestrator package, keeping this handler's only dependency direction
// inward (handler -> usecase), never the reverse.
type Result struct {
	Outcome    string
	Message    string
	Stats      Stats
	StartedAt  time.Time
	FinishedAt time.Time
}

// Stats mirrors orchestrator.Stats field-for-field.
type Stats struct {
	Fetched     int
	New         int
	Scored      int
	Rejected    int
	Clustered   int
	Synthesized int
	Published   int
	Revised     int
	Errors      int
}

// statsPayload is the JSON shape of Stats within the trigger response.
type statsPayload struct {
	Fetched     int `json:"fetched"`
	New         int `json:"new"`
	Scored      int `json:"scored"`
	Rejected    int `json:"rejected"`
	Clustered   int `json:"clustered"`
	Synthesized int `json:"synthesized"`
	Published   int `json:"published"`
	Revised     int `json:"revised"`
	Errors      int `json:"errors"`
}

// triggerResponse matches spec.md §6's trigger response exactly:
// {success, message, stats, timestamp}.
type triggerResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Stats     statsPayload `json:"stats"`
	Timestamp string       `json:"timestamp"`
}

// healthResponse matches spec.md §6's health response exactly:
// {status: "healthy", timestamp}.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Handler serves the trigger and health endpoints over one Runner.
type Handler struct {
	runner Runner
	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// NewHandler builds a Handler for the given Runner.
func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner, Now: time.Now}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Trigger runs exactly one cycle and reports its outcome. Accepts GET or
// POST, per spec.md §6; any other method is rejected. HTTP 200 covers both
// a completed cycle and a skipped one (another cycle already holds the
// lock) — only an outright failed cycle returns 500.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		respond.JSON(w, http.StatusMethodNotAllowed, triggerResponse{
			Success:   false,
			Message:   "method not allowed",
			Timestamp: h.now().UTC().Format(time.RFC3339),
		})
		return
	}

	log := logging.WithRequestID(r.Context(), slog.Default())
	log.Info("cycle triggered")

	result := h.runner.Run(r.Context())

	code := http.StatusOK
	if result.Outcome == "failed" {
		code = http.StatusInternalServerError
	}
	log.Info("cycle trigger finished", slog.String("outcome", result.Outcome), slog.Int("http_status", code))

	respond.JSON(w, code, triggerResponse{
		Success: result.Outcome != "failed",
		Message: result.Message,
		Stats: statsPayload{
			Fetched:     result.Stats.Fetched,
			New:         result.Stats.New,
			Scored:      result.Stats.Scored,
			Rejected:    result.Stats.Rejected,
			Clustered:   result.Stats.Clustered,
			Synthesized: result.Stats.Synthesized,
			Published:   result.Stats.Published,
			Revised:     result.Stats.Revised,
			Errors:      result.Stats.Errors,
		},
		Timestamp: result.FinishedAt.UTC().Format(time.RFC3339),
	})
}

// Health always returns 200 with {status: "healthy", timestamp}: this
// endpoint reports process liveness, not cycle outcome, so it never
// reflects a failed cycle.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Routes registers the handler's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/trigger", h.Trigger)
	mux.HandleFunc("/health", h.Health)
}
