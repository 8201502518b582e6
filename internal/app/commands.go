package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/waypoint/internal/adapters/repository"
	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/internal/domain/ranking"
	"github.com/okian/waypoint/pkg/logger"
	"github.com/okian/waypoint/pkg/metrics"
)

// Every command returns a feedback line for the operator. The error is
// non-nil when the command was rejected or failed, and its sentinel tells
// the transport how to report it.

// Join marks the player as participating in variant.
func (s *Service) Join(ctx context.Context, event, variant string, player uuid.UUID) (model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, err := s.setParticipating(ctx, event, variant, player, true)
	s.record(ctx, "join", err)
	return fb, err
}

// Leave clears the participation flag. Leaving a deleted variant is allowed
// so orphaned records can still be stopped.
func (s *Service) Leave(ctx context.Context, event, variant string, player uuid.UUID) (model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, err := s.setParticipating(ctx, event, variant, player, false)
	s.record(ctx, "leave", err)
	return fb, err
}

func (s *Service) setParticipating(ctx context.Context, event, variant string, player uuid.UUID, join bool) (model.Feedback, error) {
	rt, err := s.runtime(event)
	if err != nil {
		return model.Fail(err.Error()), err
	}
	if join {
		if _, err := s.variants.Get(ctx, event, variant); err != nil {
			return model.Fail(fmt.Sprintf("Unknown %s variant: %s", event, variant)), err
		}
	}

	changed, err := rt.progress.SetParticipating(ctx, player, variant, join)
	if err != nil {
		return model.Fail(fmt.Sprintf("Failed to update %s event: %s", event, variant)), err
	}
	switch {
	case changed && join:
		return model.Ok(fmt.Sprintf("Joined %s event: %s", event, variant)), nil
	case changed:
		return model.Ok(fmt.Sprintf("Left %s event: %s", event, variant)), nil
	case join:
		return model.Fail(fmt.Sprintf("Already participating in %s event: %s", event, variant)), nil
	default:
		return model.Fail(fmt.Sprintf("Not participating in %s event: %s", event, variant)), nil
	}
}

// Status returns the player's record for variant.
func (s *Service) Status(ctx context.Context, event, variant string, player uuid.UUID) (model.Progress, model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, fb, err := s.status(ctx, event, variant, player)
	s.record(ctx, "status", err)
	return rec, fb, err
}

func (s *Service) status(ctx context.Context, event, variant string, player uuid.UUID) (model.Progress, model.Feedback, error) {
	rt, err := s.runtime(event)
	if err != nil {
		return model.Progress{}, model.Fail(err.Error()), err
	}
	records, err := rt.progress.Records(ctx, player)
	if err != nil {
		return model.Progress{}, model.Fail("Failed to load player progress"), err
	}
	for _, rec := range records {
		if rec.Variant != variant {
			continue
		}
		last := "none"
		if rec.HasCheckpoint() {
			last = strconv.Itoa(rec.Last())
		}
		return rec, model.Ok(fmt.Sprintf("Checkpoints: %s, Finished: %t, Start: %d, Finish: %d",
			last, rec.Finished, rec.StartTick, rec.FinishTick)), nil
	}
	return model.NewProgress(variant), model.Fail("The participant has not played this variant yet."),
		fmt.Errorf("%w: %s/%s", ErrNoRecord, variant, player)
}

// Reset removes the player's record for variant, or every record when
// variant is empty.
func (s *Service) Reset(ctx context.Context, event string, player uuid.UUID, variant string) (model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, err := s.reset(ctx, event, player, variant)
	s.record(ctx, "reset", err)
	return fb, err
}

func (s *Service) reset(ctx context.Context, event string, player uuid.UUID, variant string) (model.Feedback, error) {
	rt, err := s.runtime(event)
	if err != nil {
		return model.Fail(err.Error()), err
	}
	n, err := rt.progress.Reset(ctx, player, variant)
	if err != nil {
		return model.Fail(fmt.Sprintf("Failed to reset checkpoint count for %s", player)), err
	}
	return model.Ok(fmt.Sprintf("Reset checkpoint count for %s (%d removed)", player, n)), nil
}

// Rank returns the best limit players of variant. The limit is capped by
// the configured maximum; a non-positive limit yields no standings. A
// variant without configuration is ranked first to finish.
func (s *Service) Rank(ctx context.Context, event, variant string, limit int) ([]ranking.Standing, model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	standings, fb, err := s.rank(ctx, event, variant, limit)
	s.record(ctx, "rank", err)
	return standings, fb, err
}

func (s *Service) rank(ctx context.Context, event, variant string, limit int) ([]ranking.Standing, model.Feedback, error) {
	start := time.Now()
	rt, err := s.runtime(event)
	if err != nil {
		return nil, model.Fail(err.Error()), err
	}

	win := model.FirstToFinish
	switch v, err := s.variants.Get(ctx, event, variant); {
	case err == nil:
		win = v.WinCondition
	case !errors.Is(err, repository.ErrVariantNotFound):
		return nil, model.Fail("Failed to load variant configuration"), err
	}

	records, err := rt.progress.Participants(ctx, variant)
	if err != nil {
		return nil, model.Fail("Failed to load players"), err
	}
	limit = min(limit, s.maxRankLimit)
	standings := s.ranker.Rank(records, win, limit)
	metrics.RecordRanking(event, len(records), float64(time.Since(start).Microseconds())/1000.0)

	if len(standings) == 0 {
		return standings, model.Ok(fmt.Sprintf("No ranking yet for %s", variant)), nil
	}
	lines := make([]string, len(standings))
	for i, st := range standings {
		lines[i] = fmt.Sprintf("Position %d, in %d seconds, for player %s", st.Position, st.Seconds, st.Player)
	}
	return standings, model.Ok(strings.Join(lines, "\n")), nil
}

// Respawn returns the respawn point of the checkpoint the player reached
// last.
func (s *Service) Respawn(ctx context.Context, event, variant string, player uuid.UUID) (geom.Point, model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt, fb, err := s.respawn(ctx, event, variant, player)
	s.record(ctx, "respawn", err)
	return pt, fb, err
}

func (s *Service) respawn(ctx context.Context, event, variant string, player uuid.UUID) (geom.Point, model.Feedback, error) {
	rt, err := s.runtime(event)
	if err != nil {
		return geom.Origin, model.Fail(err.Error()), err
	}
	v, err := s.variants.Get(ctx, event, variant)
	if err != nil {
		return geom.Origin, model.Fail(fmt.Sprintf("Unknown %s variant: %s", event, variant)), err
	}
	rec, err := rt.progress.Get(ctx, player, variant)
	if err != nil {
		return geom.Origin, model.Fail("Failed to load player progress"), err
	}
	if rec.HasCheckpoint() {
		if i, ok := v.Checkpoint(rec.Last()); ok {
			pt := v.Checkpoints[i].Respawn
			return pt, model.Ok(fmt.Sprintf("Teleporting to %s", pt)), nil
		}
	}
	return geom.Origin, model.Fail("Player has not taken the last checkpoint"),
		fmt.Errorf("%w: %s/%s", ErrNoRespawn, variant, player)
}

// ListVariants returns the variants of event.
func (s *Service) ListVariants(ctx context.Context, event string) ([]model.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.runtime(event); err != nil {
		return nil, err
	}
	return s.variants.List(ctx, event)
}

// CreateVariant adds a variant with default messaging and no checkpoints.
func (s *Service) CreateVariant(ctx context.Context, event, name string, bounds geom.Box) (model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, err := s.configure(ctx, "create_variant", event, func() error {
		return s.variants.Create(ctx, event, model.NewVariant(name, bounds))
	})
	if err != nil {
		return model.Fail(fmt.Sprintf("Failed to create new %s config: %s (%s)", event, name, fb.Message)), err
	}
	return model.Ok(fmt.Sprintf("Created new %s config: %s", event, name)), nil
}

// DeleteVariant removes a variant and its checkpoints.
func (s *Service) DeleteVariant(ctx context.Context, event, name string) (model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, err := s.configure(ctx, "delete_variant", event, func() error {
		return s.variants.Delete(ctx, event, name)
	})
	if err != nil {
		return model.Fail(fmt.Sprintf("Failed to remove %s config: %s (%s)", event, name, fb.Message)), err
	}
	return model.Ok(fmt.Sprintf("Removed %s config: %s", event, name)), nil
}

// PatchVariant overwrites one field of a variant from its text form.
func (s *Service) PatchVariant(ctx context.Context, event, name, field, value string) (model.Variant, model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out model.Variant
	fb, err := s.configure(ctx, "patch_variant", event, func() error {
		p, err := model.ParseVariantField(field, value)
		if err != nil {
			return err
		}
		out, err = s.variants.Patch(ctx, event, name, p)
		return err
	})
	if err != nil {
		return out, model.Fail(fmt.Sprintf("Failed to modify %s config: %s (%s)", event, name, fb.Message)), err
	}
	return out, model.Ok(fmt.Sprintf("Modified %s config: %s", event, name)), nil
}

// AddCheckpoint adds a checkpoint with default sound and message. The
// respawn point is the zone's start corner.
func (s *Service) AddCheckpoint(ctx context.Context, event, variant string, index int, typ model.PortalType, zone geom.Box) (model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, err := s.configure(ctx, "add_checkpoint", event, func() error {
		return s.variants.AddCheckpoint(ctx, event, variant, model.NewCheckpoint(index, typ, zone.A, zone.B))
	})
	switch {
	case errors.Is(err, repository.ErrCheckpointExists):
		return model.Fail("The index already exist, please change the index or use the modify command"), err
	case err != nil:
		return model.Fail(fmt.Sprintf("Failed to create %s checkpoint: %s (%s)", event, variant, fb.Message)), err
	}
	return model.Ok(fmt.Sprintf("Created new %s checkpoint: %s #%d", event, variant, index)), nil
}

// RemoveCheckpoint removes the checkpoint with index.
func (s *Service) RemoveCheckpoint(ctx context.Context, event, variant string, index int) (model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, err := s.configure(ctx, "remove_checkpoint", event, func() error {
		return s.variants.RemoveCheckpoint(ctx, event, variant, index)
	})
	if err != nil {
		return model.Fail(fmt.Sprintf("Failed to remove %s checkpoint: %s #%d (%s)", event, variant, index, fb.Message)), err
	}
	return model.Ok(fmt.Sprintf("Removed %s checkpoint: %s #%d", event, variant, index)), nil
}

// PatchCheckpoint overwrites one field of a checkpoint from its text form.
func (s *Service) PatchCheckpoint(ctx context.Context, event, variant string, index int, field, value string) (model.Checkpoint, model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out model.Checkpoint
	fb, err := s.configure(ctx, "patch_checkpoint", event, func() error {
		p, err := model.ParseCheckpointField(field, value)
		if err != nil {
			return err
		}
		out, err = s.variants.PatchCheckpoint(ctx, event, variant, index, p)
		return err
	})
	if err != nil {
		return out, model.Fail(fmt.Sprintf("Failed to modify %s checkpoint: %s #%d (%s)", event, variant, index, fb.Message)), err
	}
	return out, model.Ok(fmt.Sprintf("Modified %s checkpoint: %s #%d", event, variant, index)), nil
}

// configure runs a configuration mutation of event. On failure the feedback
// carries the error text.
func (s *Service) configure(ctx context.Context, command, event string, fn func() error) (model.Feedback, error) {
	err := func() error {
		if _, err := s.runtime(event); err != nil {
			return err
		}
		return fn()
	}()
	s.record(ctx, command, err)
	if err != nil {
		return model.Fail(err.Error()), err
	}
	return model.Ok(""), nil
}

// record counts the command and logs failures that are not operator
// mistakes.
func (s *Service) record(ctx context.Context, command string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case Rejected(err):
		outcome = "rejected"
	default:
		outcome = "error"
		s.logger.Error(ctx, "command failed", logger.String("command", command), logger.Error(err))
	}
	metrics.RecordCommand(command, outcome)
}

// Rejected reports whether err is a refusal of the command itself (unknown
// target, conflict, invalid input) rather than a failure to carry it out.
func Rejected(err error) bool {
	for _, target := range []error{
		ErrUnknownEvent, ErrNoRecord, ErrNoRespawn,
		repository.ErrVariantNotFound, repository.ErrCheckpointNotFound,
		repository.ErrVariantExists, repository.ErrCheckpointExists,
		repository.ErrInvalidVariant, repository.ErrInvalidCheckpoint,
		model.ErrInvalidField, model.ErrInvalidValue,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
