package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/barrace/internal/adapters/repository"
	"github.com/okian/barrace/internal/adapters/source"
	service "github.com/okian/barrace/internal/app"
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

type stubLoader struct {
	ds  model.Dataset
	err error
}

func (l stubLoader) Ratings(context.Context) ([]model.RatingRecord, error) {
	return l.ds.Records, l.err
}

func (l stubLoader) Champions(context.Context) ([]model.ChampionRow, error) {
	return l.ds.Champions, nil
}

func (l stubLoader) Federations(context.Context) (map[string]string, error) {
	return l.ds.Federations, nil
}

type events struct {
	mu  sync.Mutex
	all []model.Event
}

func (e *events) handle(_ context.Context, ev model.Event) {
	e.mu.Lock()
	e.all = append(e.all, ev)
	e.mu.Unlock()
}

func (e *events) snapshot() []model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Event(nil), e.all...)
}

func (e *events) waitUntil(ok func([]model.Event) bool) []model.Event {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s := e.snapshot(); ok(s) {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	return e.snapshot()
}

func dataset() model.Dataset {
	var recs []model.RatingRecord
	players := []string{"Anand", "Kramnik", "Topalov", "Carlsen"}
	for y := 2005; y <= 2009; y++ {
		for i, p := range players {
			recs = append(recs, model.RatingRecord{Player: p, Rating: float64(2700 + (y-2005)*10 + i*5), Year: float64(y)})
		}
	}
	return model.Dataset{
		Records:     recs,
		Champions:   []model.ChampionRow{{Player: "Anand", Dates: "2007-13"}},
		Federations: map[string]string{"Anand": "IND"},
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it has sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.TopN(), ShouldEqual, 10)
			stats := svc.GetStats()
			So(stats["started"], ShouldBeFalse)
			So(stats["baseFrame"], ShouldEqual, "900ms")
		})

		Convey("Then starting without a loader fails", func() {
			So(errors.Is(svc.Start(context.Background()), service.ErrNoLoader), ShouldBeTrue)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a subscriber", t, func() {
		got := &events{}
		svc := service.New(
			service.WithLoader(stubLoader{ds: dataset()}),
			service.WithTopN(3),
			service.WithBaseFrameDuration(5*time.Millisecond),
			service.WithQueueSize(256),
		)
		svc.Subscribe(got.handle)

		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When it starts", func() {
			ev := got.waitUntil(func(e []model.Event) bool { return len(e) >= 2 })

			Convey("Then subscribers see the frames and the first year", func() {
				So(ev[0].Kind, ShouldEqual, model.FramesReady)
				So(ev[0].Frames.Len(), ShouldEqual, 5)
				So(ev[1].Kind, ShouldEqual, model.FrameChanged)
				So(ev[1].Year, ShouldEqual, 2005)
				So(len(ev[1].Frame.Entries), ShouldEqual, 3)
			})

			Convey("Then stats describe the race", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["records"], ShouldEqual, 20)
				So(stats["years"], ShouldEqual, 5)
				So(stats["subscribers"], ShouldEqual, 1)
			})
		})

		Convey("When it plays to the end", func() {
			svc.Play(ctx)
			ev := got.waitUntil(func(e []model.Event) bool {
				if len(e) < 3 {
					return false
				}
				last := e[len(e)-1]
				return last.Kind == model.PlaybackStateChanged && !last.Playing
			})

			Convey("Then every year is shown once in order and playback stops", func() {
				var years []int
				for _, e := range ev {
					if e.Kind == model.FrameChanged {
						years = append(years, e.Year)
					}
				}
				So(years, ShouldResemble, []int{2005, 2006, 2007, 2008, 2009})
				st := svc.State()
				So(st.Playing, ShouldBeFalse)
				So(st.Year, ShouldEqual, 2009)
			})
		})

		Convey("When seeking by year", func() {
			res, err := svc.SeekToYear(ctx, 2007)
			So(err, ShouldBeNil)
			So(res.Exact, ShouldBeTrue)

			_, err = svc.SeekToYear(ctx, 2020)
			So(errors.Is(err, playback.ErrYearOutOfRange), ShouldBeTrue)
			So(svc.State().Year, ShouldEqual, 2007)
		})

		Convey("When the frame size changes", func() {
			So(svc.Seek(ctx, 3), ShouldBeNil)
			_, err := svc.SetSpeed(ctx, 2)
			So(err, ShouldBeNil)
			So(svc.SetTopN(ctx, 2), ShouldBeNil)

			Convey("Then the year and speed are kept with smaller frames", func() {
				st := svc.State()
				So(st.Year, ShouldEqual, 2008)
				So(st.Speed, ShouldEqual, 2.0)
				So(svc.TopN(), ShouldEqual, 2)

				ev := got.waitUntil(func(e []model.Event) bool {
					ready := 0
					for _, x := range e {
						if x.Kind == model.FramesReady {
							ready++
						}
					}
					return ready == 2 && e[len(e)-1].Kind == model.PlaybackStateChanged
				})
				var lastFrame model.Event
				for _, e := range ev {
					if e.Kind == model.FrameChanged {
						lastFrame = e
					}
				}
				So(lastFrame.Year, ShouldEqual, 2008)
				So(len(lastFrame.Frame.Entries), ShouldEqual, 2)
			})

			Convey("Then an invalid size is rejected", func() {
				So(errors.Is(svc.SetTopN(ctx, 0), repository.ErrInvalidTopN), ShouldBeTrue)
				So(svc.TopN(), ShouldEqual, 2)
			})
		})

		Convey("When a player is looked up", func() {
			e, err := svc.Entry(ctx, 2009, "Carlsen")
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 1)

			_, err = svc.Entry(ctx, 2009, "Anand")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When it stops", func() {
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it cannot start again", func() {
				So(errors.Is(svc.Start(ctx), service.ErrStopped), ShouldBeTrue)
				So(errors.Is(svc.Reload(ctx), service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldBeFalse)
			})
		})
	})
}

func TestService_SetTopNKeepsYearZero(t *testing.T) {
	ctx := context.Background()

	Convey("Given data whose years include 0", t, func() {
		svc := service.New(service.WithLoader(stubLoader{ds: model.Dataset{Records: []model.RatingRecord{
			{Player: "A", Rating: 2600, Year: -1},
			{Player: "A", Rating: 2610, Year: 0},
			{Player: "B", Rating: 2500, Year: 0},
		}}}))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When year 0 is shown and the frame size changes", func() {
			_, err := svc.SeekToYear(ctx, 0)
			So(err, ShouldBeNil)
			So(svc.SetTopN(ctx, 1), ShouldBeNil)

			Convey("Then year 0 is still shown", func() {
				st := svc.State()
				So(st.FrameIndex, ShouldEqual, 1)
				So(st.Year, ShouldEqual, 0)
			})
		})
	})
}

func TestService_LoadFailure(t *testing.T) {
	Convey("Given a loader that fails", t, func() {
		boom := errors.New("disk on fire")
		svc := service.New(service.WithLoader(stubLoader{err: boom}))

		Convey("Then Start returns the cause", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, boom), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldBeFalse)
		})
	})
}

func TestService_CSVIntegration(t *testing.T) {
	ctx := context.Background()

	Convey("Given CSV files on disk", t, func() {
		dir := t.TempDir()
		ratings := filepath.Join(dir, "ratings.csv")
		So(os.WriteFile(ratings, []byte("Player,Rating,year,Age,ranking\nA,2700,2019,28,2\nB,2650,2019,30,1\nA,2750,2019,28,\n"), 0o600), ShouldBeNil)

		got := &events{}
		svc := service.New(service.WithLoader(source.NewCSVLoader(ratings)))
		svc.Subscribe(got.handle)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then the 2019 frame is built from the file", func() {
			ev := got.waitUntil(func(e []model.Event) bool { return len(e) >= 2 })
			f := ev[1].Frame
			So(f.Year, ShouldEqual, 2019)
			So(len(f.Entries), ShouldEqual, 2)
			So(f.Entries[0].Player, ShouldEqual, "A")
			So(f.Entries[0].Rating, ShouldEqual, 2750)
			So(f.Entries[1].Player, ShouldEqual, "B")
			So(f.Entries[1].RankOne, ShouldBeTrue)
		})
	})
}
