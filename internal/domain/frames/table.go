package frames

import (
	"github.com/okian/barrace/internal/domain/model"
)

// Table is an immutable, fully built set of year frames.
type Table struct {
	topN        int
	years       []int
	frames      map[int]model.YearFrame
	champions   model.ChampionLookup
	federations map[string]string
}

var _ model.FrameSet = (*Table)(nil)

// TopN returns the bound the table was built with.
func (t *Table) TopN() int { return t.topN }

// Years returns a copy of the ascending distinct years.
func (t *Table) Years() []int {
	out := make([]int, len(t.years))
	copy(out, t.years)
	return out
}

// Len returns the number of frames.
func (t *Table) Len() int { return len(t.years) }

// YearAt returns the year at index.
func (t *Table) YearAt(index int) (int, bool) {
	if index < 0 || index >= len(t.years) {
		return 0, false
	}
	return t.years[index], true
}

// FrameOf returns the frame of year. Entries are shared; callers must not modify them.
func (t *Table) FrameOf(year int) (model.YearFrame, bool) {
	f, ok := t.frames[year]
	return f, ok
}

// ChampionOf returns the reigning champion of year.
func (t *Table) ChampionOf(year int) (string, bool) {
	return t.champions.Of(year)
}

// FederationOf returns the federation code of player.
func (t *Table) FederationOf(player string) (string, bool) {
	fed, ok := t.federations[player]
	return fed, ok
}
