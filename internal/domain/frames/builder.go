// Package frames turns raw rating records into per-year ranked leaderboards.
package frames

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/okian/barrace/internal/domain/dedupe"
	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/logger"
	"github.com/okian/barrace/pkg/metrics"
)

// DefaultTopN is the number of entries kept per frame.
const DefaultTopN = 10

// Builder produces frame tables. It holds no per-build state and may be
// shared.
type Builder struct {
	topN   int
	logger logger.Logger
}

// NewBuilder creates a builder with the given options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{topN: DefaultTopN}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("frames")
	}
	return b
}

// TopN returns the configured bound.
func (b *Builder) TopN() int { return b.topN }

// Valid reports whether r passes the ingestion filter.
func Valid(r model.RatingRecord) bool { return r.Valid() }

// Build filters, groups and ranks ds into an immutable table. Malformed
// records are dropped; an empty dataset yields a table with no years.
func (b *Builder) Build(ctx context.Context, ds model.Dataset) *Table {
	start := time.Now()

	byYear := make(map[int][]model.RatingRecord)
	dropped := 0
	for _, r := range ds.Records {
		if !Valid(r) {
			dropped++
			continue
		}
		r.Player = strings.TrimSpace(r.Player)
		byYear[r.YearKey()] = append(byYear[r.YearKey()], r)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	champions := BuildChampionLookup(ds.Champions)
	federations := make(map[string]string, len(ds.Federations))
	for p, f := range ds.Federations {
		federations[p] = f
	}

	t := &Table{
		topN:        b.topN,
		years:       years,
		frames:      make(map[int]model.YearFrame, len(years)),
		champions:   champions,
		federations: federations,
	}
	for _, y := range years {
		f := b.frame(ctx, y, byYear[y])
		f.Champion = champions[y]
		t.frames[y] = f
	}

	metrics.RecordRecordsIngested(len(ds.Records))
	metrics.RecordRecordsDropped(dropped)
	metrics.RecordFramesBuilt(len(years))
	metrics.RecordBuildLatency(float64(time.Since(start).Microseconds()) / 1000)

	if dropped > 0 {
		b.logger.Debug(ctx, "dropped malformed rating records", logger.Int("dropped", dropped))
	}
	b.logger.Info(ctx, "frame table built",
		logger.Int("records", len(ds.Records)-dropped),
		logger.Int("years", len(years)),
		logger.Int("champion_years", len(champions)),
		logger.Int("top_n", b.topN),
	)
	return t
}

// frame ranks the records of one year: best record per player, finite
// ratings only, stable descending sort, truncated to topN.
func (b *Builder) frame(ctx context.Context, year int, rows []model.RatingRecord) model.YearFrame {
	best := dedupe.NewBestByPlayer(dedupe.WithCapacity(len(rows)))
	for _, r := range rows {
		best.Offer(ctx, r)
	}

	kept := best.Records(ctx)
	ranked := kept[:0]
	for _, r := range kept {
		if !math.IsNaN(r.Rating) && !math.IsInf(r.Rating, 0) {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rating > ranked[j].Rating
	})
	if len(ranked) > b.topN {
		ranked = ranked[:b.topN]
	}

	entries := make([]model.Entry, len(ranked))
	for i, r := range ranked {
		entries[i] = model.Entry{
			Rank:      i + 1,
			Player:    r.Player,
			Rating:    r.Rating,
			Age:       r.Age,
			WorldRank: r.WorldRank,
			RankOne:   best.RankOne(r.Player),
		}
	}
	return model.YearFrame{Year: year, Entries: entries}
}
