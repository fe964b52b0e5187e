package synthetic

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/barrace/internal/domain/model"
)

// Mismatch describes one difference between a frame table and the
// reference computation.
type Mismatch struct {
	Year   int
	Detail string
}

func (m Mismatch) String() string { return fmt.Sprintf("%d: %s", m.Year, m.Detail) }

// Verify recomputes every frame of ds by brute force and compares it with
// fs. It returns nil when they agree.
func Verify(ds model.Dataset, fs model.FrameSet, topN int) []Mismatch {
	want := reference(ds, topN)

	var out []Mismatch
	years := fs.Years()
	if len(years) != len(want) {
		out = append(out, Mismatch{Detail: fmt.Sprintf("got %d years, want %d", len(years), len(want))})
	}
	for _, y := range years {
		exp, ok := want[y]
		if !ok {
			out = append(out, Mismatch{Year: y, Detail: "unexpected year"})
			continue
		}
		got, _ := fs.FrameOf(y)
		if len(got.Entries) != len(exp) {
			out = append(out, Mismatch{Year: y, Detail: fmt.Sprintf("got %d entries, want %d", len(got.Entries), len(exp))})
			continue
		}
		for i, e := range got.Entries {
			if e.Player != exp[i].Player || e.Rating != exp[i].Rating || e.Rank != i+1 {
				out = append(out, Mismatch{Year: y, Detail: fmt.Sprintf("rank %d: got %s %.0f, want %s %.0f",
					i+1, e.Player, e.Rating, exp[i].Player, exp[i].Rating)})
				break
			}
		}
	}
	return out
}

// reference keeps, per year, each player's first highest rating, then sorts
// by rating with first appearance breaking ties.
func reference(ds model.Dataset, topN int) map[int][]model.RatingRecord {
	type slot struct {
		rec   model.RatingRecord
		order int
	}
	byYear := map[int]map[string]*slot{}
	for i, r := range ds.Records {
		name := strings.TrimSpace(r.Player)
		if name == "" || math.IsNaN(r.Rating) || math.IsInf(r.Rating, 0) ||
			math.IsNaN(r.Year) || math.IsInf(r.Year, 0) || r.Year != math.Trunc(r.Year) {
			continue
		}
		y := int(r.Year)
		if byYear[y] == nil {
			byYear[y] = map[string]*slot{}
		}
		r.Player = name
		if cur, ok := byYear[y][name]; !ok {
			byYear[y][name] = &slot{rec: r, order: i}
		} else if r.Rating > cur.rec.Rating {
			cur.rec = r
		}
	}

	out := make(map[int][]model.RatingRecord, len(byYear))
	for y, players := range byYear {
		slots := make([]*slot, 0, len(players))
		for _, s := range players {
			slots = append(slots, s)
		}
		sort.Slice(slots, func(a, b int) bool {
			if slots[a].rec.Rating != slots[b].rec.Rating {
				return slots[a].rec.Rating > slots[b].rec.Rating
			}
			return slots[a].order < slots[b].order
		})
		n := min(topN, len(slots))
		recs := make([]model.RatingRecord, n)
		for i := 0; i < n; i++ {
			recs[i] = slots[i].rec
		}
		out[y] = recs
	}
	return out
}
