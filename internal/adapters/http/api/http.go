// Package api exposes the waypoint commands over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/waypoint/internal/adapters/repository"
	service "github.com/okian/waypoint/internal/app"
	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/internal/domain/ranking"
	"github.com/okian/waypoint/internal/engine"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Tick(ctx context.Context, event string, tick int64, players []engine.Player) (service.TickReport, error)

	Join(ctx context.Context, event, variant string, player uuid.UUID) (model.Feedback, error)
	Leave(ctx context.Context, event, variant string, player uuid.UUID) (model.Feedback, error)
	Status(ctx context.Context, event, variant string, player uuid.UUID) (model.Progress, model.Feedback, error)
	Respawn(ctx context.Context, event, variant string, player uuid.UUID) (geom.Point, model.Feedback, error)
	Reset(ctx context.Context, event string, player uuid.UUID, variant string) (model.Feedback, error)
	Rank(ctx context.Context, event, variant string, limit int) ([]ranking.Standing, model.Feedback, error)

	ListVariants(ctx context.Context, event string) ([]model.Variant, error)
	CreateVariant(ctx context.Context, event, name string, bounds geom.Box) (model.Feedback, error)
	DeleteVariant(ctx context.Context, event, name string) (model.Feedback, error)
	PatchVariant(ctx context.Context, event, name, field, value string) (model.Variant, model.Feedback, error)
	AddCheckpoint(ctx context.Context, event, variant string, index int, typ model.PortalType, zone geom.Box) (model.Feedback, error)
	RemoveCheckpoint(ctx context.Context, event, variant string, index int) (model.Feedback, error)
	PatchCheckpoint(ctx context.Context, event, variant string, index int, field, value string) (model.Checkpoint, model.Feedback, error)
}

var _ Dependencies = (*service.Service)(nil)

// Server wires HTTP routes for the command API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	tickHandler     *TickHandler
	variantsHandler *VariantsHandler
	playersHandler  *PlayersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		tickHandler:     NewTickHandler(deps),
		variantsHandler: NewVariantsHandler(deps),
		playersHandler:  NewPlayersHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /healthz", s.healthHandler.HandleHealth},
		{"GET /stats", s.statsHandler.HandleStats},
		{"POST /events/{event}/tick", s.tickHandler.HandleTick},

		{"GET /events/{event}/variants", s.variantsHandler.HandleList},
		{"POST /events/{event}/variants", s.variantsHandler.HandleCreate},
		{"DELETE /events/{event}/variants/{variant}", s.variantsHandler.HandleDelete},
		{"PATCH /events/{event}/variants/{variant}", s.variantsHandler.HandlePatch},
		{"POST /events/{event}/variants/{variant}/checkpoints", s.variantsHandler.HandleAddCheckpoint},
		{"DELETE /events/{event}/variants/{variant}/checkpoints/{index}", s.variantsHandler.HandleRemoveCheckpoint},
		{"PATCH /events/{event}/variants/{variant}/checkpoints/{index}", s.variantsHandler.HandlePatchCheckpoint},

		{"GET /events/{event}/variants/{variant}/rank", s.playersHandler.HandleRank},
		{"POST /events/{event}/variants/{variant}/players/{player}/join", s.playersHandler.HandleJoin},
		{"POST /events/{event}/variants/{variant}/players/{player}/leave", s.playersHandler.HandleLeave},
		{"GET /events/{event}/variants/{variant}/players/{player}", s.playersHandler.HandleStatus},
		{"GET /events/{event}/variants/{variant}/players/{player}/respawn", s.playersHandler.HandleRespawn},
		{"DELETE /events/{event}/players/{player}", s.playersHandler.HandleReset},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, MetricsMiddleware(rt.handler, rt.pattern))
	}
}

// response is the body of every command. Data carries the command's result
// where it has one.
type response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult writes a command outcome. Feedback that reports a no-op is
// still a 200.
func writeResult(w http.ResponseWriter, fb model.Feedback, err error, data any) {
	if err != nil {
		status, code := classify(err)
		writeJSON(w, status, response{OK: false, Message: fb.Message, Code: code})
		return
	}
	writeJSON(w, http.StatusOK, response{OK: fb.OK, Message: fb.Message, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, response{OK: false, Message: err.Error(), Code: code})
}

// Error codes carried by failed responses.
const (
	codeBadRequest = "bad_request"
	codeNotFound   = "not_found"
	codeConflict   = "conflict"
	codeInternal   = "internal_error"
)

// classify maps command errors to a status and an error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrVariantNotFound),
		errors.Is(err, repository.ErrCheckpointNotFound),
		errors.Is(err, service.ErrNoRecord),
		errors.Is(err, service.ErrNoRespawn):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, repository.ErrVariantExists),
		errors.Is(err, repository.ErrCheckpointExists):
		return http.StatusConflict, codeConflict
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrUnknownEvent),
		errors.Is(err, repository.ErrInvalidVariant),
		errors.Is(err, repository.ErrInvalidCheckpoint),
		errors.Is(err, model.ErrInvalidField),
		errors.Is(err, model.ErrInvalidValue),
		errors.Is(err, geom.ErrInvalidPoint):
		return http.StatusBadRequest, codeBadRequest
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func pathPlayer(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("player"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: player: %w", ErrBadRequest, err)
	}
	return id, nil
}

func pathIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, fmt.Errorf("%w: index: %w", ErrBadRequest, err)
	}
	return index, nil
}
