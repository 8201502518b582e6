package model

import "github.com/google/uuid"

// Progress is one player's state in one variant.
type Progress struct {
	Variant        string `json:"variant"`
	LastCheckpoint *int   `json:"checkpoints"`
	Finished       bool   `json:"isFinished"`
	StartTick      int64  `json:"startTicks"`
	FinishTick     int64  `json:"finishTicks"`
	Participating  *bool  `json:"isParticipating"`
}

// NewProgress is the record of a player that never touched the variant.
func NewProgress(variant string) Progress {
	return Progress{Variant: variant, FinishTick: -1}
}

// IsParticipating treats a never-joined record as not participating.
func (p Progress) IsParticipating() bool {
	return p.Participating != nil && *p.Participating
}

// Running reports a joined, unfinished record.
func (p Progress) Running() bool {
	return p.IsParticipating() && !p.Finished
}

// HasCheckpoint reports whether the player ever entered a zone of the variant.
func (p Progress) HasCheckpoint() bool {
	return p.LastCheckpoint != nil
}

// Last returns the last checkpoint index, or -1.
func (p Progress) Last() int {
	if p.LastCheckpoint == nil {
		return -1
	}
	return *p.LastCheckpoint
}

// ElapsedTicks is finish minus start for finished records and zero otherwise.
func (p Progress) ElapsedTicks() int64 {
	if !p.Finished {
		return 0
	}
	return p.FinishTick - p.StartTick
}

// Clone returns a copy that shares no pointers with p.
func (p Progress) Clone() Progress {
	if p.LastCheckpoint != nil {
		p.LastCheckpoint = Ptr(*p.LastCheckpoint)
	}
	if p.Participating != nil {
		p.Participating = Ptr(*p.Participating)
	}
	return p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// PlayerRecord pairs a player with one of its records.
type PlayerRecord struct {
	Player   uuid.UUID
	Progress Progress
}
