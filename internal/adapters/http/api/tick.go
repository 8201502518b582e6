package api

import (
	"context"
	"fmt"
	"net/http"

	service "github.com/okian/waypoint/internal/app"
	"github.com/okian/waypoint/internal/engine"
)

// TickDependencies defines the interface for tick evaluation.
type TickDependencies interface {
	Tick(ctx context.Context, event string, tick int64, players []engine.Player) (service.TickReport, error)
}

// TickHandler handles tick requests.
type TickHandler struct {
	deps TickDependencies
}

// NewTickHandler creates a new tick handler.
func NewTickHandler(deps TickDependencies) *TickHandler {
	return &TickHandler{deps: deps}
}

type tickRequest struct {
	Tick    *int64          `json:"tick"`
	Players []engine.Player `json:"players"`
}

// HandleTick handles POST /events/{event}/tick. The report is returned even
// when a transition could not be persisted; the status is then 500.
func (h *TickHandler) HandleTick(w http.ResponseWriter, r *http.Request) {
	var req tickRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Tick == nil {
		writeError(w, fmt.Errorf("%w: missing tick", ErrBadRequest))
		return
	}

	report, err := h.deps.Tick(r.Context(), r.PathValue("event"), *req.Tick, req.Players)
	if err != nil {
		status, code := classify(err)
		writeJSON(w, status, response{OK: false, Message: err.Error(), Code: code, Data: report})
		return
	}
	writeJSON(w, http.StatusOK, response{
		OK:      true,
		Message: fmt.Sprintf("Evaluated %d players", report.Players),
		Data:    report,
	})
}
