// Package model contains domain models passed between layers.
package model

import (
	"math"
	"strings"
)

// RatingRecord is one observation of a player's rating in a year.
// Year is kept as a float so that unparseable input can be carried as NaN
// and discarded by the frame builder.
type RatingRecord struct {
	Player    string
	Rating    float64
	Year      float64
	Age       *float64 // informational only
	WorldRank *int     // 1 marks a world number one
}

// MaxAbsYear bounds the magnitude of an accepted year so that every valid
// year converts to a distinct int.
const MaxAbsYear = math.MaxInt32

// Valid reports whether the record survives the ingestion filter: a
// non-empty trimmed player, a finite rating and an integral year no larger
// in magnitude than MaxAbsYear.
func (r RatingRecord) Valid() bool {
	if strings.TrimSpace(r.Player) == "" {
		return false
	}
	if !finite(r.Rating) || !finite(r.Year) {
		return false
	}
	if math.Abs(r.Year) > MaxAbsYear {
		return false
	}
	return r.Year == math.Trunc(r.Year)
}

// YearKey returns the integer year bucket. Only meaningful for valid records.
func (r RatingRecord) YearKey() int {
	return int(r.Year)
}

// IsWorldNumberOne reports whether the record carries world rank 1.
func (r RatingRecord) IsWorldNumberOne() bool {
	return r.WorldRank != nil && *r.WorldRank == 1
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Entry is one ranked row of a year frame.
type Entry struct {
	Rank      int // 1-based position in the frame
	Player    string
	Rating    float64
	Age       *float64
	WorldRank *int
	// RankOne is set when any record of the player in that year has world rank 1.
	RankOne bool
}

// YearFrame is the ranked top-N leaderboard of a single year.
type YearFrame struct {
	Year     int
	Entries  []Entry
	Champion string // reigning champion that year, "" when unknown
}

// Players returns the entry players in rank order.
func (f YearFrame) Players() []string {
	out := make([]string, len(f.Entries))
	for i, e := range f.Entries {
		out[i] = e.Player
	}
	return out
}

// IsChampion reports whether player is the reigning champion of the frame's year.
func (f YearFrame) IsChampion(player string) bool {
	return f.Champion != "" && f.Champion == player
}
