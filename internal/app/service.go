// Package service wires the data loader, frame store, playback sequencer and
// event dispatcher into one controllable race.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/barrace/internal/adapters/mq/queue"
	"github.com/okian/barrace/internal/adapters/mq/worker"
	"github.com/okian/barrace/internal/adapters/repository"
	"github.com/okian/barrace/internal/adapters/source"
	"github.com/okian/barrace/internal/domain/frames"
	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/internal/domain/playback"
	"github.com/okian/barrace/pkg/logger"
	"github.com/okian/barrace/pkg/metrics"
)

const defaultQueueSize = 1024

// Service owns one race: its data, its frames and its playback.
type Service struct {
	mu sync.RWMutex

	// Core components
	loader     source.Loader
	store      *repository.MemoryStore
	events     *queue.InMemoryQueue
	dispatcher *worker.Dispatcher
	sequencer  *playback.Sequencer

	// Configuration
	topN      int
	base      time.Duration
	queueSize int
	tickerFn  playback.TickerFunc

	// State
	started bool
	stopped bool
	runCtx  context.Context
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Nothing is loaded until Start.
func New(opts ...Option) *Service {
	s := &Service{
		topN:      frames.DefaultTopN,
		base:      playback.DefaultBaseFrameDuration,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.store = repository.NewMemoryStore(repository.WithLogger(s.logger.Named("repository")))
	s.events = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.dispatcher = worker.NewDispatcher(s.events, worker.WithLogger(s.logger.Named("dispatcher")))

	seqOpts := []playback.Option{
		playback.WithBaseFrameDuration(s.base),
		playback.WithLogger(s.logger.Named("playback")),
	}
	if s.tickerFn != nil {
		seqOpts = append(seqOpts, playback.WithTickerFunc(s.tickerFn))
	}
	s.sequencer = playback.New(s.dispatcher, seqOpts...)
	return s
}

// Start begins event delivery and loads the race data. Subscribers
// registered before Start receive the initial FramesReady and first frame.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return ErrStopped
	}
	if s.loader == nil {
		return ErrNoLoader
	}

	s.logger.Info(ctx, "starting race service...")

	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.dispatcher.Start(s.runCtx)

	if err := s.reloadLocked(ctx); err != nil {
		s.cancel()
		return err
	}

	s.started = true
	s.logger.Info(ctx, "race service started",
		logger.Int("topN", s.topN),
		logger.Duration("baseFrame", s.base),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop pauses playback and delivers the events still queued before
// returning. A stopped service cannot be started again.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping race service...")

	s.sequencer.Pause(ctx)
	err := s.dispatcher.Shutdown(ctx)
	s.cancel()

	s.started = false
	s.stopped = true
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	s.logger.Info(ctx, "race service stopped")
	return nil
}

// Reload reads the data again and restarts playback from the first frame.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	return s.reloadLocked(ctx)
}

func (s *Service) reloadLocked(ctx context.Context) error {
	start := time.Now()
	ds, err := source.LoadDataset(ctx, s.loader)
	if err != nil {
		s.logger.Error(ctx, "failed to load race data", logger.Error(err))
		return fmt.Errorf("load: %w", err)
	}
	s.store.Replace(ctx, ds)

	table, err := s.store.Frames(ctx, s.topN)
	if err != nil {
		return fmt.Errorf("build frames: %w", err)
	}
	s.sequencer.Load(ctx, table)
	s.logger.Info(ctx, "race data loaded",
		logger.Int("records", len(ds.Records)),
		logger.Int("years", table.Len()),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// SetTopN switches to frames of n players. The shown year, the speed and
// the playing flag are kept.
func (s *Service) SetTopN(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	table, err := s.store.Frames(ctx, n)
	if err != nil {
		return err
	}
	prev := s.sequencer.State()
	s.topN = n
	s.sequencer.Load(ctx, table)

	if len(prev.Years) > 0 {
		if _, err := s.sequencer.SeekToYear(ctx, prev.Year); err != nil {
			s.logger.Debug(ctx, "previous year not restored", logger.Error(err))
		}
	}
	if prev.Speed != playback.DefaultSpeed {
		if _, err := s.sequencer.SetSpeed(ctx, prev.Speed); err != nil {
			return err
		}
	}
	if prev.Playing {
		s.sequencer.Play(s.runCtx)
	}
	s.logger.Info(ctx, "frame size changed", logger.Int("topN", n))
	return nil
}

// TopN returns the current number of players per frame.
func (s *Service) TopN() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topN
}

// Subscribe registers h for every published event.
func (s *Service) Subscribe(h worker.Handler) string {
	return s.dispatcher.Subscribe(h)
}

// Unsubscribe removes a handler registered with Subscribe.
func (s *Service) Unsubscribe(id string) bool {
	return s.dispatcher.Unsubscribe(id)
}

// Play starts playback. Cancelling ctx pauses it again.
func (s *Service) Play(ctx context.Context) { s.sequencer.Play(ctx) }

// Pause stops playback.
func (s *Service) Pause(ctx context.Context) { s.sequencer.Pause(ctx) }

// Reset pauses and shows the first frame at speed 1.0.
func (s *Service) Reset(ctx context.Context) { s.sequencer.Reset(ctx) }

// Seek shows the frame at index.
func (s *Service) Seek(ctx context.Context, index int) error {
	return s.sequencer.Seek(ctx, index)
}

// SeekToYear shows the frame of year or of the nearest year.
func (s *Service) SeekToYear(ctx context.Context, year int) (playback.SeekResult, error) {
	return s.sequencer.SeekToYear(ctx, year)
}

// SetSpeed changes the playback speed multiplier.
func (s *Service) SetSpeed(ctx context.Context, multiplier float64) (float64, error) {
	return s.sequencer.SetSpeed(ctx, multiplier)
}

// State returns the playback state.
func (s *Service) State() playback.State {
	return s.sequencer.State()
}

// Entry returns a player's row in a year's frame.
func (s *Service) Entry(ctx context.Context, year int, player string) (model.Entry, error) {
	return s.store.Entry(ctx, s.TopN(), year, player)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":   s.started,
		"topN":      s.topN,
		"queueSize": s.queueSize,
		"baseFrame": s.base.String(),
	}

	if s.started {
		st := s.sequencer.State()
		queueLen := s.events.Len()
		records := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["subscribers"] = s.dispatcher.Subscribers()
		stats["records"] = records
		stats["years"] = len(st.Years)
		stats["frameIndex"] = st.FrameIndex
		stats["year"] = st.Year
		stats["playing"] = st.Playing
		stats["speed"] = st.Speed

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRecordsHeld(records)
	}
	return stats
}
