package playback_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/barrace/internal/domain/frames"
	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/internal/domain/playback"
	"github.com/okian/barrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// manualTicker fires only when the test asks it to.
type manualTicker struct {
	period time.Duration
	ch     chan time.Time
	mu     sync.Mutex
	done   bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	m.done = true
	m.mu.Unlock()
}

func (m *manualTicker) stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (f *tickerFactory) new(period time.Duration) playback.Ticker {
	t := &manualTicker{period: period, ch: make(chan time.Time)}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	return t
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *tickerFactory) last() *manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}

func (f *tickerFactory) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

// fire delivers one tick to the newest ticker.
func (f *tickerFactory) fire() bool {
	t := f.last()
	if t == nil {
		return false
	}
	select {
	case t.ch <- time.Now():
		return true
	case <-time.After(time.Second):
		return false
	}
}

// recorder refuses events on a cancelled context, like the event queue.
type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(ctx context.Context, e model.Event) bool {
	if ctx.Err() != nil {
		return false
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return true
}

func (r *recorder) all() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func (r *recorder) waitFor(n int) []model.Event {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev := r.all(); len(ev) >= n {
			return ev
		}
		time.Sleep(2 * time.Millisecond)
	}
	return r.all()
}

func ofKind(events []model.Event, kind model.EventKind) []model.Event {
	var out []model.Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func table(years ...int) *frames.Table {
	recs := make([]model.RatingRecord, 0, len(years))
	for _, y := range years {
		recs = append(recs, model.RatingRecord{Player: "P", Rating: 2500 + float64(y%100), Year: float64(y)})
	}
	return frames.NewBuilder().Build(context.Background(), model.Dataset{Records: recs})
}

func setup(years ...int) (*playback.Sequencer, *recorder, *tickerFactory) {
	rec := &recorder{}
	tf := &tickerFactory{}
	seq := playback.New(rec, playback.WithTickerFunc(tf.new))
	seq.Load(context.Background(), table(years...))
	rec.reset()
	return seq, rec, tf
}

func TestSequencer_Load(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new sequencer", t, func() {
		rec := &recorder{}
		seq := playback.New(rec, playback.WithTickerFunc((&tickerFactory{}).new))

		Convey("Then it is idle", func() {
			st := seq.State()
			So(st.Loaded, ShouldBeFalse)
			So(st.Playing, ShouldBeFalse)
			So(st.Speed, ShouldEqual, 1.0)
		})

		Convey("When frames are loaded", func() {
			seq.Load(ctx, table(2000, 2001, 2002))

			Convey("Then FramesReady is followed by the first frame", func() {
				ev := rec.all()
				So(len(ev), ShouldEqual, 2)
				So(ev[0].Kind, ShouldEqual, model.FramesReady)
				So(ev[0].Frames.Len(), ShouldEqual, 3)
				So(ev[1].Kind, ShouldEqual, model.FrameChanged)
				So(ev[1].Year, ShouldEqual, 2000)
				So(ev[1].Frame.Year, ShouldEqual, 2000)
				So(ev[0].Seq, ShouldBeLessThan, ev[1].Seq)
			})

			Convey("Then the state is paused on index 0", func() {
				st := seq.State()
				So(st.Loaded, ShouldBeTrue)
				So(st.Years, ShouldResemble, []int{2000, 2001, 2002})
				So(st.FrameIndex, ShouldEqual, 0)
				So(st.Year, ShouldEqual, 2000)
				So(st.Playing, ShouldBeFalse)
			})
		})

		Convey("When an empty table is loaded", func() {
			seq.Load(ctx, table())

			Convey("Then only FramesReady is published and the sequencer stays quiet", func() {
				So(len(rec.all()), ShouldEqual, 1)
				seq.Play(ctx)
				seq.Reset(ctx)
				seq.Pause(ctx)
				So(len(rec.all()), ShouldEqual, 1)
				So(seq.State().Playing, ShouldBeFalse)
				So(errors.Is(seq.Seek(ctx, 0), playback.ErrNoFrames), ShouldBeTrue)
				_, err := seq.SeekToYear(ctx, 2000)
				So(errors.Is(err, playback.ErrNoFrames), ShouldBeTrue)
			})
		})
	})
}

func TestSequencer_Seek(t *testing.T) {
	ctx := context.Background()

	Convey("Given three loaded years", t, func() {
		seq, rec, _ := setup(2000, 2001, 2002)

		Convey("When seeking to a valid index", func() {
			err := seq.Seek(ctx, 2)

			Convey("Then exactly one matching frame event is published", func() {
				So(err, ShouldBeNil)
				ev := rec.all()
				So(len(ev), ShouldEqual, 1)
				So(ev[0].Kind, ShouldEqual, model.FrameChanged)
				So(ev[0].Index, ShouldEqual, 2)
				So(ev[0].Year, ShouldEqual, 2002)
				So(ev[0].Frame.Year, ShouldEqual, 2002)
				So(seq.State().FrameIndex, ShouldEqual, 2)
			})
		})

		Convey("When seeking outside the range", func() {
			So(seq.Seek(ctx, 1), ShouldBeNil)
			rec.reset()

			for _, idx := range []int{-1, 3, 100} {
				err := seq.Seek(ctx, idx)
				So(errors.Is(err, playback.ErrIndexOutOfRange), ShouldBeTrue)
			}

			Convey("Then the index is unchanged and nothing is published", func() {
				So(seq.State().FrameIndex, ShouldEqual, 1)
				So(rec.all(), ShouldBeEmpty)
			})
		})

		Convey("When seeking with an already cancelled context", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := seq.Seek(cctx, 1)

			Convey("Then the frame event is still published", func() {
				So(err, ShouldBeNil)
				So(seq.State().FrameIndex, ShouldEqual, 1)
				ev := ofKind(rec.all(), model.FrameChanged)
				So(len(ev), ShouldEqual, 1)
				So(ev[0].Year, ShouldEqual, 2001)
			})
		})
	})
}

func TestSequencer_Play(t *testing.T) {
	ctx := context.Background()

	Convey("Given three loaded years and a manual timer", t, func() {
		seq, rec, tf := setup(2000, 2001, 2002)

		Convey("When play is called", func() {
			seq.Play(ctx)

			Convey("Then one timer runs at the default period", func() {
				So(tf.count(), ShouldEqual, 1)
				So(tf.last().period, ShouldEqual, 900*time.Millisecond)
				So(seq.State().Playing, ShouldBeTrue)
				ev := rec.all()
				So(len(ev), ShouldEqual, 1)
				So(ev[0].Kind, ShouldEqual, model.PlaybackStateChanged)
				So(ev[0].Playing, ShouldBeTrue)
			})

			Convey("Then a second play does not start another timer", func() {
				seq.Play(ctx)
				So(tf.count(), ShouldEqual, 1)
				So(len(rec.all()), ShouldEqual, 1)
			})

			Convey("Then ticks advance the frame until the last year", func() {
				So(tf.fire(), ShouldBeTrue)
				ev := rec.waitFor(2)
				So(ev[1].Kind, ShouldEqual, model.FrameChanged)
				So(ev[1].Year, ShouldEqual, 2001)
				So(ev[1].Playing, ShouldBeTrue)

				So(tf.fire(), ShouldBeTrue)
				ev = rec.waitFor(4)
				So(len(ev), ShouldEqual, 4)
				So(ev[2].Kind, ShouldEqual, model.FrameChanged)
				So(ev[2].Year, ShouldEqual, 2002)
				So(ev[2].Playing, ShouldBeFalse)
				So(ev[3].Kind, ShouldEqual, model.PlaybackStateChanged)
				So(ev[3].Playing, ShouldBeFalse)

				st := seq.State()
				So(st.Playing, ShouldBeFalse)
				So(st.FrameIndex, ShouldEqual, 2)
				So(tf.active(), ShouldEqual, 0)
			})

			Convey("Then pause stops the timer and is safe to repeat", func() {
				seq.Pause(ctx)
				seq.Pause(ctx)
				So(seq.State().Playing, ShouldBeFalse)
				So(tf.active(), ShouldEqual, 0)
				So(len(ofKind(rec.all(), model.PlaybackStateChanged)), ShouldEqual, 2)
			})

			Convey("Then seeking cancels playback first", func() {
				So(seq.Seek(ctx, 1), ShouldBeNil)
				ev := rec.all()
				So(ev[len(ev)-2].Kind, ShouldEqual, model.PlaybackStateChanged)
				So(ev[len(ev)-2].Playing, ShouldBeFalse)
				So(ev[len(ev)-1].Kind, ShouldEqual, model.FrameChanged)
				So(ev[len(ev)-1].Playing, ShouldBeFalse)
				So(tf.active(), ShouldEqual, 0)
			})
		})

		Convey("When play is called on the last frame", func() {
			So(seq.Seek(ctx, 2), ShouldBeNil)
			seq.Play(ctx)
			So(tf.fire(), ShouldBeTrue)

			Convey("Then the index stays clamped and playback stops", func() {
				ev := ofKind(rec.waitFor(4), model.FrameChanged)
				So(ev[len(ev)-1].Index, ShouldEqual, 2)
				So(seq.State().Playing, ShouldBeFalse)
			})
		})

		Convey("When the play context is cancelled", func() {
			pctx, cancel := context.WithCancel(ctx)
			seq.Play(pctx)
			cancel()

			Convey("Then playback pauses on its own", func() {
				deadline := time.Now().Add(2 * time.Second)
				for seq.State().Playing && time.Now().Before(deadline) {
					time.Sleep(2 * time.Millisecond)
				}
				So(seq.State().Playing, ShouldBeFalse)
				So(tf.active(), ShouldEqual, 0)
			})
		})

		Convey("When a tick arrives after the play context is cancelled", func() {
			pctx, cancel := context.WithCancel(ctx)
			seq.Play(pctx)
			rec.reset()
			cancel()
			tf.fire()

			Convey("Then playback pauses on the same frame and reports it", func() {
				ev := rec.waitFor(1)
				So(seq.State().Playing, ShouldBeFalse)
				So(seq.State().FrameIndex, ShouldEqual, 0)
				So(ofKind(ev, model.FrameChanged), ShouldBeEmpty)
				states := ofKind(ev, model.PlaybackStateChanged)
				So(len(states), ShouldEqual, 1)
				So(states[0].Playing, ShouldBeFalse)
			})
		})
	})
}

func TestSequencer_Reset(t *testing.T) {
	ctx := context.Background()

	Convey("Given a playing sequencer at double speed", t, func() {
		seq, rec, tf := setup(2000, 2001, 2002)
		_, err := seq.SetSpeed(ctx, 2)
		So(err, ShouldBeNil)
		seq.Play(ctx)
		So(tf.fire(), ShouldBeTrue)
		rec.waitFor(3)

		Convey("When reset is called", func() {
			seq.Reset(ctx)

			Convey("Then it pauses on the first frame at speed 1.0", func() {
				st := seq.State()
				So(st.Playing, ShouldBeFalse)
				So(st.FrameIndex, ShouldEqual, 0)
				So(st.Speed, ShouldEqual, 1.0)
				So(tf.active(), ShouldEqual, 0)

				ev := rec.all()
				last := ev[len(ev)-1]
				So(last.Kind, ShouldEqual, model.FrameChanged)
				So(last.Year, ShouldEqual, 2000)
			})
		})
	})
}

func TestSequencer_SeekToYear(t *testing.T) {
	ctx := context.Background()

	Convey("Given years with gaps", t, func() {
		seq, rec, _ := setup(1990, 1992, 1995, 2000)

		Convey("When the year exists", func() {
			res, err := seq.SeekToYear(ctx, 1995)

			Convey("Then it is an exact match", func() {
				So(err, ShouldBeNil)
				So(res.Exact, ShouldBeTrue)
				So(res.Index, ShouldEqual, 2)
				So(res.Message, ShouldBeEmpty)
			})
		})

		Convey("When the year is missing but inside the range", func() {
			res, err := seq.SeekToYear(ctx, 1998)

			Convey("Then the nearest year is shown with a note", func() {
				So(err, ShouldBeNil)
				So(res.Exact, ShouldBeFalse)
				So(res.Year, ShouldEqual, 2000)
				So(res.Message, ShouldContainSubstring, "showing 2000")
				So(seq.State().Year, ShouldEqual, 2000)
			})
		})

		Convey("When two years are equally near", func() {
			res, err := seq.SeekToYear(ctx, 1991)

			Convey("Then the earlier one wins", func() {
				So(err, ShouldBeNil)
				So(res.Year, ShouldEqual, 1990)
			})
		})

		Convey("When the year is outside the range", func() {
			So(seq.Seek(ctx, 1), ShouldBeNil)
			rec.reset()
			res, err := seq.SeekToYear(ctx, 2010)

			Convey("Then it fails with the valid bounds and changes nothing", func() {
				So(errors.Is(err, playback.ErrYearOutOfRange), ShouldBeTrue)
				So(res.Message, ShouldContainSubstring, "1990-2000")
				So(seq.State().FrameIndex, ShouldEqual, 1)
				So(rec.all(), ShouldBeEmpty)
			})
		})
	})
}

func TestSequencer_SetSpeed(t *testing.T) {
	ctx := context.Background()

	Convey("Given a loaded sequencer", t, func() {
		seq, rec, tf := setup(2000, 2001, 2002, 2003)

		Convey("When the speed is 3.1", func() {
			got, err := seq.SetSpeed(ctx, 3.1)

			Convey("Then it rounds to 3.0", func() {
				So(err, ShouldBeNil)
				So(got, ShouldEqual, 3.0)
				So(seq.State().Speed, ShouldEqual, 3.0)
				So(seq.Period(), ShouldEqual, 300*time.Millisecond)
			})
		})

		Convey("When the speed rounds to zero", func() {
			got, err := seq.SetSpeed(ctx, 0.1)

			Convey("Then the minimum step is used", func() {
				So(err, ShouldBeNil)
				So(got, ShouldEqual, 0.25)
			})
		})

		Convey("When the speed is not positive", func() {
			for _, v := range []float64{0, -1} {
				_, err := seq.SetSpeed(ctx, v)
				So(errors.Is(err, playback.ErrInvalidSpeed), ShouldBeTrue)
			}
			So(seq.State().Speed, ShouldEqual, 1.0)
		})

		Convey("When the speed changes while playing", func() {
			seq.Play(ctx)
			So(tf.fire(), ShouldBeTrue)
			rec.waitFor(2)
			_, err := seq.SetSpeed(ctx, 2)
			So(err, ShouldBeNil)

			Convey("Then the timer restarts at the new period on the same frame", func() {
				So(tf.count(), ShouldEqual, 2)
				So(tf.active(), ShouldEqual, 1)
				So(tf.last().period, ShouldEqual, 450*time.Millisecond)
				st := seq.State()
				So(st.FrameIndex, ShouldEqual, 1)
				So(st.Playing, ShouldBeTrue)

				So(tf.fire(), ShouldBeTrue)
				ev := ofKind(rec.waitFor(4), model.FrameChanged)
				So(ev[len(ev)-1].Year, ShouldEqual, 2002)
			})
		})
	})

	Convey("Given quarter-step rounding", t, func() {
		So(playback.QuantizeSpeed(1.12), ShouldEqual, 1.0)
		So(playback.QuantizeSpeed(1.13), ShouldEqual, 1.25)
		So(playback.QuantizeSpeed(0.5), ShouldEqual, 0.5)
	})
}

func TestSequencer_BaseFrameDuration(t *testing.T) {
	Convey("Given a custom base duration", t, func() {
		seq := playback.New(nil, playback.WithBaseFrameDuration(100*time.Millisecond))

		Convey("Then the period scales with speed", func() {
			So(seq.Period(), ShouldEqual, 100*time.Millisecond)
			_, err := seq.SetSpeed(context.Background(), 4)
			So(err, ShouldBeNil)
			So(seq.Period(), ShouldEqual, 25*time.Millisecond)
		})
	})
}
