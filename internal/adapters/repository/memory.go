package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/okian/barrace/internal/domain/frames"
	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/logger"
	"github.com/okian/barrace/pkg/metrics"
)

// MemoryStore is an in-memory Store. Built tables are immutable and shared
// between callers.
type MemoryStore struct {
	mu      sync.Mutex
	ds      model.Dataset
	loaded  bool
	version uint64
	tables  map[int]*frames.Table
	logger  logger.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{tables: make(map[int]*frames.Table)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}
	return s
}

// Replace swaps the dataset and drops all cached tables.
func (s *MemoryStore) Replace(ctx context.Context, ds model.Dataset) { //nolint:gocritic // hugeParam: dataset is copied once per load
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ds = ds
	s.loaded = true
	s.version++
	clear(s.tables)
	s.logger.Debug(ctx, "dataset replaced",
		logger.Int("records", len(ds.Records)),
		logger.Int("champions", len(ds.Champions)),
		logger.Int("federations", len(ds.Federations)),
	)
}

// Frames returns the cached table for topN or builds it.
func (s *MemoryStore) Frames(ctx context.Context, topN int) (*frames.Table, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopN, topN)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}
	if t, ok := s.tables[topN]; ok {
		metrics.RecordFrameCache(true)
		return t, nil
	}
	metrics.RecordFrameCache(false)

	t := frames.NewBuilder(frames.WithTopN(topN), frames.WithLogger(s.logger.Named("frames"))).Build(ctx, s.ds)
	s.tables[topN] = t
	return t, nil
}

// Entry looks a player up in one year's frame. Names are compared after
// trimming surrounding whitespace.
func (s *MemoryStore) Entry(ctx context.Context, topN, year int, player string) (model.Entry, error) {
	t, err := s.Frames(ctx, topN)
	if err != nil {
		return model.Entry{}, err
	}
	f, ok := t.FrameOf(year)
	if !ok {
		return model.Entry{}, fmt.Errorf("%w: no frame for %d", ErrNotFound, year)
	}
	name := strings.TrimSpace(player)
	for _, e := range f.Entries {
		if e.Player == name {
			return e, nil
		}
	}
	return model.Entry{}, fmt.Errorf("%w: %q in %d", ErrNotFound, name, year)
}

// Count returns the number of raw rating records held.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ds.Records)
}

// Version increases on every Replace.
func (s *MemoryStore) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Cached returns the number of tables currently cached.
func (s *MemoryStore) Cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}
