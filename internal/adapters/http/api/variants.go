package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
)

// VariantDependencies defines the configuration commands.
type VariantDependencies interface {
	ListVariants(ctx context.Context, event string) ([]model.Variant, error)
	CreateVariant(ctx context.Context, event, name string, bounds geom.Box) (model.Feedback, error)
	DeleteVariant(ctx context.Context, event, name string) (model.Feedback, error)
	PatchVariant(ctx context.Context, event, name, field, value string) (model.Variant, model.Feedback, error)
	AddCheckpoint(ctx context.Context, event, variant string, index int, typ model.PortalType, zone geom.Box) (model.Feedback, error)
	RemoveCheckpoint(ctx context.Context, event, variant string, index int) (model.Feedback, error)
	PatchCheckpoint(ctx context.Context, event, variant string, index int, field, value string) (model.Checkpoint, model.Feedback, error)
}

// VariantsHandler handles variant and checkpoint configuration.
type VariantsHandler struct {
	deps VariantDependencies
}

// NewVariantsHandler creates a new variants handler.
func NewVariantsHandler(deps VariantDependencies) *VariantsHandler {
	return &VariantsHandler{deps: deps}
}

type createVariantRequest struct {
	Name  string      `json:"name"`
	Start *geom.Point `json:"start"`
	End   *geom.Point `json:"end"`
}

type addCheckpointRequest struct {
	Index *int              `json:"index"`
	Type  *model.PortalType `json:"type"`
	Start *geom.Point       `json:"start"`
	End   *geom.Point       `json:"end"`
}

type patchRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// HandleList handles GET /events/{event}/variants.
func (h *VariantsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	vs, err := h.deps.ListVariants(r.Context(), r.PathValue("event"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{OK: true, Message: fmt.Sprintf("%d variants", len(vs)), Data: vs})
}

// HandleCreate handles POST /events/{event}/variants.
func (h *VariantsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createVariantRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Start == nil || req.End == nil {
		writeError(w, fmt.Errorf("%w: start and end are required", ErrBadRequest))
		return
	}
	fb, err := h.deps.CreateVariant(r.Context(), r.PathValue("event"), req.Name, geom.Box{A: *req.Start, B: *req.End})
	writeResult(w, fb, err, nil)
}

// HandleDelete handles DELETE /events/{event}/variants/{variant}.
func (h *VariantsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	fb, err := h.deps.DeleteVariant(r.Context(), r.PathValue("event"), r.PathValue("variant"))
	writeResult(w, fb, err, nil)
}

// HandlePatch handles PATCH /events/{event}/variants/{variant}.
func (h *VariantsHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	v, fb, err := h.deps.PatchVariant(r.Context(), r.PathValue("event"), r.PathValue("variant"), req.Field, req.Value)
	writeResult(w, fb, err, v)
}

// HandleAddCheckpoint handles POST /events/{event}/variants/{variant}/checkpoints.
func (h *VariantsHandler) HandleAddCheckpoint(w http.ResponseWriter, r *http.Request) {
	var req addCheckpointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Index == nil || req.Type == nil || req.Start == nil || req.End == nil {
		writeError(w, fmt.Errorf("%w: index, type, start and end are required", ErrBadRequest))
		return
	}
	fb, err := h.deps.AddCheckpoint(r.Context(), r.PathValue("event"), r.PathValue("variant"),
		*req.Index, *req.Type, geom.Box{A: *req.Start, B: *req.End})
	writeResult(w, fb, err, nil)
}

// HandleRemoveCheckpoint handles DELETE /events/{event}/variants/{variant}/checkpoints/{index}.
func (h *VariantsHandler) HandleRemoveCheckpoint(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, err)
		return
	}
	fb, err := h.deps.RemoveCheckpoint(r.Context(), r.PathValue("event"), r.PathValue("variant"), index)
	writeResult(w, fb, err, nil)
}

// HandlePatchCheckpoint handles PATCH /events/{event}/variants/{variant}/checkpoints/{index}.
func (h *VariantsHandler) HandlePatchCheckpoint(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req patchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cp, fb, err := h.deps.PatchCheckpoint(r.Context(), r.PathValue("event"), r.PathValue("variant"), index, req.Field, req.Value)
	writeResult(w, fb, err, cp)
}
