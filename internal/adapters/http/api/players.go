package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/internal/domain/ranking"
)

const defaultRankLimit = 10

// PlayerDependencies defines the player commands and the ranking query.
type PlayerDependencies interface {
	Join(ctx context.Context, event, variant string, player uuid.UUID) (model.Feedback, error)
	Leave(ctx context.Context, event, variant string, player uuid.UUID) (model.Feedback, error)
	Status(ctx context.Context, event, variant string, player uuid.UUID) (model.Progress, model.Feedback, error)
	Respawn(ctx context.Context, event, variant string, player uuid.UUID) (geom.Point, model.Feedback, error)
	Reset(ctx context.Context, event string, player uuid.UUID, variant string) (model.Feedback, error)
	Rank(ctx context.Context, event, variant string, limit int) ([]ranking.Standing, model.Feedback, error)
}

// PlayersHandler handles player commands.
type PlayersHandler struct {
	deps PlayerDependencies
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps PlayerDependencies) *PlayersHandler {
	return &PlayersHandler{deps: deps}
}

// HandleJoin handles POST .../players/{player}/join.
func (h *PlayersHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	h.participation(w, r, h.deps.Join)
}

// HandleLeave handles POST .../players/{player}/leave.
func (h *PlayersHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	h.participation(w, r, h.deps.Leave)
}

func (h *PlayersHandler) participation(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, event, variant string, player uuid.UUID) (model.Feedback, error),
) {
	player, err := pathPlayer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	fb, err := fn(r.Context(), r.PathValue("event"), r.PathValue("variant"), player)
	writeResult(w, fb, err, nil)
}

// HandleStatus handles GET .../players/{player}.
func (h *PlayersHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	player, err := pathPlayer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, fb, err := h.deps.Status(r.Context(), r.PathValue("event"), r.PathValue("variant"), player)
	writeResult(w, fb, err, rec)
}

// HandleRespawn handles GET .../players/{player}/respawn.
func (h *PlayersHandler) HandleRespawn(w http.ResponseWriter, r *http.Request) {
	player, err := pathPlayer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pt, fb, err := h.deps.Respawn(r.Context(), r.PathValue("event"), r.PathValue("variant"), player)
	writeResult(w, fb, err, pt)
}

// HandleReset handles DELETE /events/{event}/players/{player}?variant=.
// Without a variant every record of the player is removed.
func (h *PlayersHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	player, err := pathPlayer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	fb, err := h.deps.Reset(r.Context(), r.PathValue("event"), player, r.URL.Query().Get("variant"))
	writeResult(w, fb, err, nil)
}

// HandleRank handles GET /events/{event}/variants/{variant}/rank?limit=N.
func (h *PlayersHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	limit := defaultRankLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: limit: %w", ErrBadRequest, err))
			return
		}
		limit = n
	}
	standings, fb, err := h.deps.Rank(r.Context(), r.PathValue("event"), r.PathValue("variant"), limit)
	writeResult(w, fb, err, standings)
}
