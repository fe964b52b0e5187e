// Package dedupe reduces several rating records of the same player to one.
package dedupe

import (
	"context"

	"github.com/okian/barrace/internal/domain/model"
)

// Deduper keeps a single record per player.
type Deduper interface {
	// Offer considers rec for its player. It returns true when rec became
	// the kept record, false when an earlier record is kept instead.
	Offer(ctx context.Context, rec model.RatingRecord) bool

	// Records returns the kept records in first-seen player order.
	Records(ctx context.Context) []model.RatingRecord

	// RankOne reports whether any offered record of player had world rank 1.
	RankOne(player string) bool

	Size() int
}

// bestByPlayer keeps the highest-rated record per player. The comparison is
// strict, so among equal ratings the first offered record wins.
type bestByPlayer struct {
	order   []string
	best    map[string]model.RatingRecord
	rankOne map[string]bool
}

// NewBestByPlayer creates a reducer keeping each player's maximum rating.
func NewBestByPlayer(opts ...Option) Deduper {
	st := settings{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&st)
	}
	return &bestByPlayer{
		order:   make([]string, 0, st.capacity),
		best:    make(map[string]model.RatingRecord, st.capacity),
		rankOne: make(map[string]bool),
	}
}

func (d *bestByPlayer) Offer(_ context.Context, rec model.RatingRecord) bool {
	if rec.IsWorldNumberOne() {
		d.rankOne[rec.Player] = true
	}
	cur, ok := d.best[rec.Player]
	if !ok {
		d.order = append(d.order, rec.Player)
		d.best[rec.Player] = rec
		return true
	}
	if rec.Rating > cur.Rating {
		d.best[rec.Player] = rec
		return true
	}
	return false
}

func (d *bestByPlayer) Records(_ context.Context) []model.RatingRecord {
	out := make([]model.RatingRecord, len(d.order))
	for i, p := range d.order {
		out[i] = d.best[p]
	}
	return out
}

func (d *bestByPlayer) RankOne(player string) bool {
	return d.rankOne[player]
}

func (d *bestByPlayer) Size() int {
	return len(d.order)
}
