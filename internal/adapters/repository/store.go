// Package repository holds the variant configuration and player progress
// stores. Both keep a lazily loaded cache in front of a docstore.Store and
// rewrite the whole document on every mutation.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/waypoint/internal/domain/model"
)

// Variants provides the variant configuration of every event type.
type Variants interface {
	List(ctx context.Context, eventType string) ([]model.Variant, error)
	Get(ctx context.Context, eventType, name string) (model.Variant, error)
	Create(ctx context.Context, eventType string, v model.Variant) error
	Delete(ctx context.Context, eventType, name string) error
	Patch(ctx context.Context, eventType, name string, p model.VariantPatch) (model.Variant, error)
	AddCheckpoint(ctx context.Context, eventType, variant string, c model.Checkpoint) error
	RemoveCheckpoint(ctx context.Context, eventType, variant string, index int) error
	PatchCheckpoint(ctx context.Context, eventType, variant string, index int, p model.CheckpointPatch) (model.Checkpoint, error)
}

// Progress provides per-player records of one event type.
type Progress interface {
	// Get returns the stored record or the default one. It never writes.
	Get(ctx context.Context, player uuid.UUID, variant string) (model.Progress, error)
	// Records returns every record of the player.
	Records(ctx context.Context, player uuid.UUID) ([]model.Progress, error)
	// SetParticipating reports whether anything changed.
	SetParticipating(ctx context.Context, player uuid.UUID, variant string, participating bool) (bool, error)
	// Reset removes the variant's record, or all records for "", and
	// returns how many were removed.
	Reset(ctx context.Context, player uuid.UUID, variant string) (int, error)
	// Apply replaces the record for rec.Variant and persists it.
	Apply(ctx context.Context, player uuid.UUID, rec model.Progress) error
	// Participants loads every persisted player and returns those with a
	// record for variant.
	Participants(ctx context.Context, variant string) ([]model.PlayerRecord, error)
	// Cached is the number of players held in memory.
	Cached() int
}
