// Package playback walks a frame table on a fixed cadence or on demand.
//
// All operations and timer ticks are serialised by one mutex, and events are
// published while it is held, so subscribers observe state transitions in
// the order they were applied. At most one timer is active at any time.
package playback

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/logger"
	"github.com/okian/barrace/pkg/metrics"
)

const (
	// DefaultBaseFrameDuration is the delay between frames at speed 1.0.
	DefaultBaseFrameDuration = 900 * time.Millisecond
	// DefaultSpeed is the multiplier restored by Reset and Load.
	DefaultSpeed = 1.0

	speedStep = 4 // quarter steps
	minSpeed  = 1.0 / speedStep
)

// Publisher receives sequencer events. Publish must not block.
type Publisher interface {
	Publish(ctx context.Context, e model.Event) bool
}

// State is a snapshot of the sequencer.
type State struct {
	Loaded     bool
	Years      []int
	FrameIndex int
	Year       int // 0 when no frames are loaded
	Playing    bool
	Speed      float64
}

// SeekResult describes how a year request was resolved.
type SeekResult struct {
	Requested int
	Year      int
	Index     int
	Exact     bool
	// Message is a user-facing note, set when the year was substituted.
	Message string
}

// Sequencer owns the playback state of one frame table.
type Sequencer struct {
	mu        sync.Mutex
	pub       Publisher
	newTicker TickerFunc
	base      time.Duration
	logger    logger.Logger

	frames  model.FrameSet
	years   []int
	loaded  bool
	index   int
	playing bool
	speed   float64

	ticker  Ticker
	stop    chan struct{}
	gen     uint64
	playCtx context.Context
	seq     uint64
}

// New creates an idle sequencer publishing to pub.
func New(pub Publisher, opts ...Option) *Sequencer {
	s := &Sequencer{
		pub:       pub,
		newTicker: NewTicker,
		base:      DefaultBaseFrameDuration,
		speed:     DefaultSpeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("playback")
	}
	metrics.UpdateSpeed(s.speed)
	return s
}

// Load replaces the frame table, resets the index to 0 and the speed to
// 1.0, and publishes FramesReady followed by the first frame. An empty
// table leaves the sequencer quiescent.
func (s *Sequencer) Load(ctx context.Context, fs model.FrameSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasPlaying := s.playing
	s.stopTimerLocked()
	s.playing = false

	s.frames = fs
	s.years = nil
	if fs != nil {
		s.years = fs.Years()
	}
	s.loaded = true
	s.index = 0
	s.speed = DefaultSpeed
	metrics.UpdateYearsLoaded(len(s.years))

	if wasPlaying {
		s.emitStateLocked(ctx)
	}
	s.emitLocked(ctx, model.Event{Kind: model.FramesReady, Frames: fs})
	if len(s.years) > 0 {
		s.emitFrameLocked(ctx)
	}
	s.logger.Info(ctx, "frames loaded", logger.Int("years", len(s.years)))
}

// Play starts advancing one frame per period. It is a no-op when already
// playing or when no frames are loaded. Cancelling ctx pauses playback.
func (s *Sequencer) Play(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing || len(s.years) == 0 {
		return
	}
	s.playing = true
	s.playCtx = ctx
	s.startTimerLocked()
	s.emitStateLocked(ctx)
	s.logger.Debug(ctx, "playback started",
		logger.Int("index", s.index),
		logger.Float64("speed", s.speed),
		logger.Duration("period", s.periodLocked()),
	)
}

// Pause stops playback. Calling it while paused does nothing.
func (s *Sequencer) Pause(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked(ctx)
}

// Reset pauses, restores the default speed and shows the first frame.
func (s *Sequencer) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.years) == 0 {
		return
	}
	changed := s.playing || s.speed != DefaultSpeed
	s.stopTimerLocked()
	s.playing = false
	s.speed = DefaultSpeed
	if changed {
		s.emitStateLocked(ctx)
	}
	s.index = 0
	s.emitFrameLocked(ctx)
}

// Seek shows the frame at index, pausing playback first. An invalid index
// leaves the state untouched and publishes nothing.
func (s *Sequencer) Seek(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.years) == 0 {
		metrics.RecordSeek(metrics.SeekNoFrames)
		return ErrNoFrames
	}
	if index < 0 || index >= len(s.years) {
		metrics.RecordSeek(metrics.SeekOutOfRange)
		return fmt.Errorf("%w: %d not in [0, %d]", ErrIndexOutOfRange, index, len(s.years)-1)
	}
	metrics.RecordSeek(metrics.SeekExact)
	s.seekLocked(ctx, index)
	return nil
}

// SeekToYear shows the frame of year, or of the nearest available year
// when year lies inside the loaded range but has no frame. Ties between two
// nearest years resolve to the earlier one. A year outside the range is
// rejected with ErrYearOutOfRange and changes nothing.
func (s *Sequencer) SeekToYear(ctx context.Context, year int) (SeekResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := SeekResult{Requested: year}
	if len(s.years) == 0 {
		metrics.RecordSeek(metrics.SeekNoFrames)
		return res, ErrNoFrames
	}
	first, last := s.years[0], s.years[len(s.years)-1]
	if year < first || year > last {
		metrics.RecordSeek(metrics.SeekOutOfRange)
		res.Index, res.Year = s.index, s.years[s.index]
		res.Message = fmt.Sprintf("year %d is outside the available range %d-%d", year, first, last)
		return res, fmt.Errorf("%w: %s", ErrYearOutOfRange, res.Message)
	}

	idx := nearestIndex(s.years, year)
	res.Index, res.Year = idx, s.years[idx]
	res.Exact = res.Year == year
	if res.Exact {
		metrics.RecordSeek(metrics.SeekExact)
	} else {
		metrics.RecordSeek(metrics.SeekNearest)
		res.Message = fmt.Sprintf("year %d is not available; showing %d", year, res.Year)
	}
	s.seekLocked(ctx, idx)
	return res, nil
}

// SetSpeed rounds multiplier to the nearest quarter step (minimum 0.25) and
// applies it. While playing, the timer is restarted at the new period and
// the current frame is kept.
func (s *Sequencer) SetSpeed(ctx context.Context, multiplier float64) (float64, error) {
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) || multiplier <= 0 {
		metrics.RecordInvalidSpeed()
		return 0, fmt.Errorf("%w: %v", ErrInvalidSpeed, multiplier)
	}
	speed := QuantizeSpeed(multiplier)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.speed = speed
	if s.playing {
		s.startTimerLocked()
	}
	s.emitStateLocked(ctx)
	return speed, nil
}

// State returns a snapshot of the sequencer.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Loaded:     s.loaded,
		Years:      append([]int(nil), s.years...),
		FrameIndex: s.index,
		Playing:    s.playing,
		Speed:      s.speed,
	}
	if len(s.years) > 0 {
		st.Year = s.years[s.index]
	}
	return st
}

// Period returns the current delay between frames.
func (s *Sequencer) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periodLocked()
}

// QuantizeSpeed rounds a positive multiplier to the nearest quarter step,
// never below 0.25.
func QuantizeSpeed(multiplier float64) float64 {
	q := math.Round(multiplier*speedStep) / speedStep
	if q < minSpeed {
		return minSpeed
	}
	return q
}

func (s *Sequencer) periodLocked() time.Duration {
	return time.Duration(float64(s.base) / s.speed)
}

func (s *Sequencer) pauseLocked(ctx context.Context) {
	if !s.playing {
		return
	}
	s.stopTimerLocked()
	s.playing = false
	s.emitStateLocked(ctx)
	s.logger.Debug(ctx, "playback paused", logger.Int("index", s.index))
}

func (s *Sequencer) seekLocked(ctx context.Context, index int) {
	s.pauseLocked(ctx)
	s.index = index
	s.emitFrameLocked(ctx)
}

// startTimerLocked replaces any running timer with a new one.
func (s *Sequencer) startTimerLocked() {
	s.stopTimerLocked()

	t := s.newTicker(s.periodLocked())
	stop := make(chan struct{})
	s.gen++
	s.ticker, s.stop = t, stop
	metrics.RecordTimerStart()

	ctx := s.playCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx, t, stop, s.gen)
}

func (s *Sequencer) stopTimerLocked() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker, s.stop = nil, nil
	s.gen++
	metrics.RecordTimerStop()
}

func (s *Sequencer) run(ctx context.Context, t Ticker, stop <-chan struct{}, gen uint64) {
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.cancel(context.WithoutCancel(ctx), gen)
			return
		case <-t.C():
			if !s.tick(ctx, gen) {
				return
			}
		}
	}
}

// tick advances one frame, or pauses without advancing when ctx is already
// cancelled. On the last frame the timer is released and the
// sequencer pauses before the frame event is published, so the event already
// reports playing=false. It returns false once the timer is gone.
func (s *Sequencer) tick(ctx context.Context, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing || gen != s.gen {
		return false
	}
	if ctx.Err() != nil {
		s.pauseLocked(context.WithoutCancel(ctx))
		return false
	}
	last := len(s.years) - 1
	s.index = min(s.index+1, last)
	metrics.RecordTick()

	done := s.index >= last
	if done {
		s.stopTimerLocked()
		s.playing = false
		metrics.RecordAutoStop()
	}
	s.emitFrameLocked(ctx)
	if done {
		s.emitStateLocked(ctx)
		s.logger.Debug(ctx, "playback reached the last frame", logger.Int("year", s.years[last]))
	}
	return !done
}

func (s *Sequencer) cancel(ctx context.Context, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.pauseLocked(ctx)
}

func (s *Sequencer) emitFrameLocked(ctx context.Context) {
	year := s.years[s.index]
	frame, _ := s.frames.FrameOf(year)
	metrics.UpdateFrameIndex(s.index)
	s.emitLocked(ctx, model.Event{
		Kind:    model.FrameChanged,
		Index:   s.index,
		Year:    year,
		Frame:   frame,
		Playing: s.playing,
		Speed:   s.speed,
	})
}

func (s *Sequencer) emitStateLocked(ctx context.Context) {
	metrics.UpdatePlaying(s.playing)
	metrics.UpdateSpeed(s.speed)
	s.emitLocked(ctx, model.Event{
		Kind:    model.PlaybackStateChanged,
		Index:   s.index,
		Playing: s.playing,
		Speed:   s.speed,
	})
}

// emitLocked publishes e detached from ctx cancellation: the state change
// has already been applied, so its event must not be lost.
func (s *Sequencer) emitLocked(ctx context.Context, e model.Event) {
	if s.pub == nil {
		return
	}
	s.seq++
	e.Seq = s.seq
	if !s.pub.Publish(context.WithoutCancel(ctx), e) {
		s.logger.Warn(ctx, "event dropped", logger.String("kind", e.Kind.String()), logger.Int("seq", int(e.Seq)))
	}
}

// nearestIndex returns the index of year in the ascending slice years, or
// of the closest year, preferring the earlier one on a tie.
func nearestIndex(years []int, year int) int {
	if i := sort.SearchInts(years, year); i < len(years) && years[i] == year {
		return i
	}
	best, bestDiff := 0, math.MaxInt
	for i, y := range years {
		d := y - year
		if d < 0 {
			d = -d
		}
		if d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}
