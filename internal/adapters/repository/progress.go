package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/waypoint/internal/adapters/docstore"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/pkg/logger"
	"github.com/okian/waypoint/pkg/metrics"
)

const progressStore = "progress"

// ProgressStore caches the progress documents of one event type, one
// document per player.
type ProgressStore struct {
	mu        sync.Mutex
	docs      docstore.Store
	eventType string
	log       logger.Logger
	cache     map[uuid.UUID][]model.Progress
}

var _ Progress = (*ProgressStore)(nil)

// ProgressOption configures a ProgressStore.
type ProgressOption func(*ProgressStore)

// WithProgressLogger sets the store logger.
func WithProgressLogger(l logger.Logger) ProgressOption {
	return func(s *ProgressStore) {
		if l != nil {
			s.log = l
		}
	}
}

// NewProgressStore creates the store of eventType over docs.
func NewProgressStore(docs docstore.Store, eventType string, opts ...ProgressOption) *ProgressStore {
	s := &ProgressStore{
		docs:      docs,
		eventType: eventType,
		log:       logger.Nop(),
		cache:     make(map[uuid.UUID][]model.Progress),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements Progress.
func (s *ProgressStore) Get(ctx context.Context, player uuid.UUID, variant string) (model.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx, player)
	if err != nil {
		return model.Progress{}, err
	}
	if i := recordOf(rs, variant); i >= 0 {
		return rs[i].Clone(), nil
	}
	return model.NewProgress(variant), nil
}

// Records implements Progress.
func (s *ProgressStore) Records(ctx context.Context, player uuid.UUID) ([]model.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx, player)
	if err != nil {
		return nil, err
	}
	return cloneRecords(rs), nil
}

// SetParticipating implements Progress. A record that never joined counts as
// not participating, so leaving it is a no-op.
func (s *ProgressStore) SetParticipating(ctx context.Context, player uuid.UUID, variant string, participating bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx, player)
	if err != nil {
		return false, err
	}
	rec := model.NewProgress(variant)
	if i := recordOf(rs, variant); i >= 0 {
		rec = rs[i].Clone()
	}
	if rec.IsParticipating() == participating {
		return false, nil
	}
	rec.Participating = model.Ptr(participating)
	if err := s.apply(ctx, player, rs, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Reset implements Progress.
func (s *ProgressStore) Reset(ctx context.Context, player uuid.UUID, variant string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx, player)
	if err != nil {
		return 0, err
	}
	next := slices.DeleteFunc(cloneRecords(rs), func(r model.Progress) bool {
		return variant == "" || r.Variant == variant
	})
	removed := len(rs) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(ctx, player, next); err != nil {
		return 0, err
	}
	return removed, nil
}

// Apply implements Progress.
func (s *ProgressStore) Apply(ctx context.Context, player uuid.UUID, rec model.Progress) error {
	if rec.Variant == "" {
		return fmt.Errorf("%w: record without variant", ErrInvalidVariant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx, player)
	if err != nil {
		return err
	}
	return s.apply(ctx, player, rs, rec)
}

// Participants implements Progress. Every persisted player is materialised,
// so the cost grows with every player that ever played the event type.
func (s *ProgressStore) Participants(ctx context.Context, variant string) ([]model.PlayerRecord, error) {
	names, err := s.docs.Keys(ctx, docstore.PlayersNamespace(s.eventType))
	if err != nil {
		metrics.RecordStoreError(progressStore, "keys")
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.PlayerRecord
	for _, name := range names {
		player, err := uuid.Parse(name)
		if err != nil {
			s.log.Warn(ctx, "skipping progress document with non-uuid name",
				logger.String("event", s.eventType), logger.String("name", name))
			continue
		}
		// Documents are only ever read back under the canonical spelling.
		if player.String() != name {
			s.log.Warn(ctx, "skipping progress document with non-canonical uuid name",
				logger.String("event", s.eventType), logger.String("name", name))
			continue
		}
		rs, err := s.load(ctx, player)
		if err != nil {
			return nil, err
		}
		if i := recordOf(rs, variant); i >= 0 {
			out = append(out, model.PlayerRecord{Player: player, Progress: rs[i].Clone()})
		}
	}
	return out, nil
}

// Cached implements Progress.
func (s *ProgressStore) Cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// apply must be called with s.mu held.
func (s *ProgressStore) apply(ctx context.Context, player uuid.UUID, current []model.Progress, rec model.Progress) error {
	next := cloneRecords(current)
	if i := recordOf(next, rec.Variant); i >= 0 {
		next[i] = rec.Clone()
	} else {
		next = append(next, rec.Clone())
	}
	return s.save(ctx, player, next)
}

// load must be called with s.mu held.
func (s *ProgressStore) load(ctx context.Context, player uuid.UUID) ([]model.Progress, error) {
	if rs, ok := s.cache[player]; ok {
		return rs, nil
	}
	key := docstore.PlayerKey(s.eventType, player.String())
	doc, err := s.docs.Load(ctx, key)
	if err != nil {
		metrics.RecordStoreError(progressStore, "load")
		return nil, err
	}
	rs, err := decodeProgress(doc)
	if err != nil {
		metrics.RecordStoreError(progressStore, "decode")
		s.log.Error(ctx, "malformed progress document",
			logger.String("key", key.String()), logger.Error(err))
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	metrics.RecordDocumentLoad(progressStore)
	s.cache[player] = rs
	metrics.UpdateCachedPlayers(s.eventType, len(s.cache))
	return rs, nil
}

// save must be called with s.mu held. The cache changes only on success.
func (s *ProgressStore) save(ctx context.Context, player uuid.UUID, next []model.Progress) error {
	doc, err := encodeProgress(next)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	start := time.Now()
	if err := s.docs.Save(ctx, docstore.PlayerKey(s.eventType, player.String()), doc); err != nil {
		metrics.RecordStoreError(progressStore, "save")
		s.log.Error(ctx, "save progress",
			logger.String("event", s.eventType), logger.Stringer("player", player), logger.Error(err))
		return err
	}
	metrics.RecordStoreWrite(progressStore, float64(time.Since(start).Microseconds())/1000.0)
	s.cache[player] = next
	return nil
}

func recordOf(rs []model.Progress, variant string) int {
	return slices.IndexFunc(rs, func(r model.Progress) bool { return r.Variant == variant })
}

func cloneRecords(rs []model.Progress) []model.Progress {
	out := make([]model.Progress, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}
