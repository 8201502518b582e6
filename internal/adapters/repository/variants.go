package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/waypoint/internal/adapters/docstore"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/pkg/logger"
	"github.com/okian/waypoint/pkg/metrics"
)

const variantsStore = "variants"

// VariantStore caches the variants of every event type. A document is read
// once per process; afterwards the cache is the only source and is replaced
// only after the rewritten document was saved.
type VariantStore struct {
	mu    sync.Mutex
	docs  docstore.Store
	log   logger.Logger
	cache map[string][]model.Variant
}

var _ Variants = (*VariantStore)(nil)

// VariantOption configures a VariantStore.
type VariantOption func(*VariantStore)

// WithVariantLogger sets the store logger.
func WithVariantLogger(l logger.Logger) VariantOption {
	return func(s *VariantStore) {
		if l != nil {
			s.log = l
		}
	}
}

// NewVariantStore creates a store over docs.
func NewVariantStore(docs docstore.Store, opts ...VariantOption) *VariantStore {
	s := &VariantStore{
		docs:  docs,
		log:   logger.Nop(),
		cache: make(map[string][]model.Variant),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns copies of the variants of eventType. A malformed document is
// returned as ErrMalformedDocument and nothing is cached.
func (s *VariantStore) List(ctx context.Context, eventType string) ([]model.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.load(ctx, eventType)
	if err != nil {
		return nil, err
	}
	out := make([]model.Variant, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out, nil
}

// Get returns one variant.
func (s *VariantStore) Get(ctx context.Context, eventType, name string) (model.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.load(ctx, eventType)
	if err != nil {
		return model.Variant{}, err
	}
	i := indexOf(vs, name)
	if i < 0 {
		return model.Variant{}, fmt.Errorf("%w: %s", ErrVariantNotFound, name)
	}
	return vs[i].Clone(), nil
}

// Create appends v. Names are unique within an event type.
func (s *VariantStore) Create(ctx context.Context, eventType string, v model.Variant) error {
	if err := validateVariant(v); err != nil {
		return err
	}
	return s.mutate(ctx, eventType, func(vs []model.Variant) ([]model.Variant, error) {
		if indexOf(vs, v.Name) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrVariantExists, v.Name)
		}
		v = v.Clone()
		v.Checkpoints = v.Ordered()
		return append(vs, v), nil
	})
}

// Delete removes the first variant named name with all its checkpoints.
func (s *VariantStore) Delete(ctx context.Context, eventType, name string) error {
	return s.mutate(ctx, eventType, func(vs []model.Variant) ([]model.Variant, error) {
		i := indexOf(vs, name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, name)
		}
		return slices.Delete(vs, i, i+1), nil
	})
}

// Patch merges the set fields of p onto the variant.
func (s *VariantStore) Patch(ctx context.Context, eventType, name string, p model.VariantPatch) (model.Variant, error) {
	var patched model.Variant
	err := s.mutate(ctx, eventType, func(vs []model.Variant) ([]model.Variant, error) {
		i := indexOf(vs, name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, name)
		}
		vs[i] = p.Apply(vs[i])
		patched = vs[i].Clone()
		return vs, nil
	})
	return patched, err
}

// AddCheckpoint inserts c at its index position. Indices must be unique and
// non-negative.
func (s *VariantStore) AddCheckpoint(ctx context.Context, eventType, variant string, c model.Checkpoint) error {
	if err := validateCheckpoint(c); err != nil {
		return err
	}
	return s.mutate(ctx, eventType, func(vs []model.Variant) ([]model.Variant, error) {
		i := indexOf(vs, variant)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, variant)
		}
		if _, ok := vs[i].Checkpoint(c.Index); ok {
			return nil, fmt.Errorf("%w: %s #%d", ErrCheckpointExists, variant, c.Index)
		}
		at, _ := slices.BinarySearchFunc(vs[i].Checkpoints, c.Index, func(e model.Checkpoint, index int) int {
			return cmp.Compare(e.Index, index)
		})
		vs[i].Checkpoints = slices.Insert(vs[i].Checkpoints, at, c)
		return vs, nil
	})
}

// RemoveCheckpoint deletes the checkpoint with index.
func (s *VariantStore) RemoveCheckpoint(ctx context.Context, eventType, variant string, index int) error {
	return s.mutate(ctx, eventType, func(vs []model.Variant) ([]model.Variant, error) {
		i := indexOf(vs, variant)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, variant)
		}
		j, ok := vs[i].Checkpoint(index)
		if !ok {
			return nil, fmt.Errorf("%w: %s #%d", ErrCheckpointNotFound, variant, index)
		}
		vs[i].Checkpoints = slices.Delete(vs[i].Checkpoints, j, j+1)
		return vs, nil
	})
}

// PatchCheckpoint merges the set fields of p onto the checkpoint with index.
func (s *VariantStore) PatchCheckpoint(ctx context.Context, eventType, variant string, index int, p model.CheckpointPatch) (model.Checkpoint, error) {
	var patched model.Checkpoint
	err := s.mutate(ctx, eventType, func(vs []model.Variant) ([]model.Variant, error) {
		i := indexOf(vs, variant)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, variant)
		}
		j, ok := vs[i].Checkpoint(index)
		if !ok {
			return nil, fmt.Errorf("%w: %s #%d", ErrCheckpointNotFound, variant, index)
		}
		vs[i].Checkpoints[j] = p.Apply(vs[i].Checkpoints[j])
		patched = vs[i].Checkpoints[j]
		return vs, nil
	})
	return patched, err
}

// load must be called with s.mu held.
func (s *VariantStore) load(ctx context.Context, eventType string) ([]model.Variant, error) {
	if vs, ok := s.cache[eventType]; ok {
		return vs, nil
	}
	doc, err := s.docs.Load(ctx, docstore.ConfigKey(eventType))
	if err != nil {
		metrics.RecordStoreError(variantsStore, "load")
		return nil, err
	}
	vs, err := decodeVariants(doc)
	if err != nil {
		metrics.RecordStoreError(variantsStore, "decode")
		s.log.Error(ctx, "malformed variant document",
			logger.String("event", eventType), logger.Error(err))
		return nil, fmt.Errorf("%s: %w", eventType, err)
	}
	metrics.RecordDocumentLoad(variantsStore)
	metrics.UpdateVariants(eventType, len(vs))
	s.cache[eventType] = vs
	s.log.Debug(ctx, "variants loaded", logger.String("event", eventType), logger.Int("count", len(vs)))
	return vs, nil
}

// mutate applies fn to a deep copy of the cached list, saves the result and
// swaps it in. On any error the cache is left untouched.
func (s *VariantStore) mutate(ctx context.Context, eventType string, fn func([]model.Variant) ([]model.Variant, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx, eventType)
	if err != nil {
		return err
	}
	work := make([]model.Variant, len(current))
	for i, v := range current {
		work[i] = v.Clone()
	}
	next, err := fn(work)
	if err != nil {
		return err
	}

	doc, err := encodeVariants(next)
	if err != nil {
		return fmt.Errorf("encode variants: %w", err)
	}
	start := time.Now()
	if err := s.docs.Save(ctx, docstore.ConfigKey(eventType), doc); err != nil {
		metrics.RecordStoreError(variantsStore, "save")
		s.log.Error(ctx, "save variants", logger.String("event", eventType), logger.Error(err))
		return err
	}
	metrics.RecordStoreWrite(variantsStore, float64(time.Since(start).Microseconds())/1000.0)
	metrics.UpdateVariants(eventType, len(next))
	s.cache[eventType] = next
	return nil
}

func indexOf(vs []model.Variant, name string) int {
	return slices.IndexFunc(vs, func(v model.Variant) bool { return v.Name == name })
}

func validateVariant(v model.Variant) error {
	if v.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidVariant)
	}
	seen := make(map[int]struct{}, len(v.Checkpoints))
	for _, c := range v.Checkpoints {
		if err := validateCheckpoint(c); err != nil {
			return err
		}
		if _, dup := seen[c.Index]; dup {
			return fmt.Errorf("%w: #%d", ErrCheckpointExists, c.Index)
		}
		seen[c.Index] = struct{}{}
	}
	return nil
}

func validateCheckpoint(c model.Checkpoint) error {
	if c.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidCheckpoint, c.Index)
	}
	switch c.Type {
	case model.PortalStart, model.PortalCheckpoint, model.PortalEnd:
	default:
		return fmt.Errorf("%w: portal type %q", ErrInvalidCheckpoint, c.Type)
	}
	return nil
}
