// Package console prints sequencer events as text frames.
package console

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/logger"
)

const (
	defaultBarWidth = 40
	// Bars start at this rating so that differences near the top stay visible.
	axisFloor   = 2000.0
	axisHeadway = 1.05

	crown    = "👑"
	rankMark = "★"
)

// Renderer writes one block per frame to an io.Writer. Its Handle method is
// meant to be registered with the event dispatcher.
type Renderer struct {
	mu       sync.Mutex
	w        io.Writer
	barWidth int
	frames   model.FrameSet
	logger   logger.Logger
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{w: w, barWidth: defaultBarWidth}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("console")
	}
	return r
}

// Handle renders one event.
func (r *Renderer) Handle(ctx context.Context, e model.Event) { //nolint:gocritic // hugeParam: matches the dispatcher handler signature
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	switch e.Kind {
	case model.FramesReady:
		r.frames = e.Frames
		err = r.ready()
	case model.FrameChanged:
		err = r.frame(e)
	case model.PlaybackStateChanged:
		err = r.state(e)
	}
	if err != nil {
		r.logger.Warn(ctx, "render failed", logger.String("kind", e.Kind.String()), logger.Error(err))
	}
}

func (r *Renderer) ready() error {
	if r.frames == nil || r.frames.Len() == 0 {
		_, err := fmt.Fprintln(r.w, "no data to show")
		return err
	}
	years := r.frames.Years()
	_, err := fmt.Fprintf(r.w, "loaded %d years (%d-%d)\n", len(years), years[0], years[len(years)-1])
	return err
}

func (r *Renderer) state(e model.Event) error { //nolint:gocritic // hugeParam: events travel by value
	status := "paused"
	if e.Playing {
		status = "playing"
	}
	_, err := fmt.Fprintf(r.w, "[%s x%.2f]\n", status, e.Speed)
	return err
}

func (r *Renderer) frame(e model.Event) error { //nolint:gocritic // hugeParam: events travel by value
	f := e.Frame
	header := fmt.Sprintf("== %d ==", e.Year)
	if f.Champion != "" {
		header += fmt.Sprintf("  %s %s", crown, f.Champion)
	}
	if _, err := fmt.Fprintln(r.w, header); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(r.w, 0, 0, 1, ' ', 0)
	top := 1.0
	if len(f.Entries) > 0 {
		top = f.Entries[0].Rating
	}
	for _, en := range f.Entries {
		marks := ""
		if en.RankOne {
			marks += rankMark
		}
		if f.IsChampion(en.Player) {
			marks += crown
		}
		fed := ""
		if r.frames != nil {
			fed, _ = r.frames.FederationOf(en.Player)
		}
		fmt.Fprintf(tw, "%2d\t%s\t%s\t%s\t%.0f\t%s\n",
			en.Rank, marks, en.Player, fed, en.Rating, Bar(en.Rating, top, r.barWidth))
	}
	return tw.Flush()
}

// Bar draws rating on an axis running from 2000 to 5% above top.
func Bar(rating, top float64, width int) string {
	hi := top * axisHeadway
	if hi <= axisFloor || width <= 0 {
		return ""
	}
	frac := (rating - axisFloor) / (hi - axisFloor)
	n := int(math.Round(frac * float64(width)))
	n = max(0, min(n, width))
	return strings.Repeat("█", n)
}
