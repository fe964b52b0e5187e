package frames

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/metrics"
)

var reignPattern = regexp.MustCompile(`(\d{4})-(\d{2,4})`)

// Span is an inclusive year range parsed from a reign string.
type Span struct {
	Start int
	End   int
}

// ParseDateRanges extracts one span per comma-separated part matching
// YYYY-YY or YYYY-YYYY. An end year written with fewer than four digits
// takes the start year's century, so "1985-93" ends in 1993. Parts that do
// not match are skipped.
func ParseDateRanges(dates string) []Span {
	if strings.TrimSpace(dates) == "" {
		return nil
	}
	var spans []Span
	for _, part := range strings.Split(dates, ",") {
		m := reignPattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			metrics.RecordReignSkipped()
			continue
		}
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		if len(m[2]) < 4 {
			end = (start/100)*100 + end
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

// ParseReigns turns a champion row into its intervals.
func ParseReigns(row model.ChampionRow) []model.ChampionInterval {
	spans := ParseDateRanges(row.Dates)
	out := make([]model.ChampionInterval, 0, len(spans))
	for _, s := range spans {
		out = append(out, model.ChampionInterval{Player: row.Player, StartYear: s.Start, EndYear: s.End})
	}
	return out
}

// BuildChampionLookup expands every reign into per-year entries. Rows and
// intervals are applied in order and a later entry for the same year
// overwrites an earlier one.
func BuildChampionLookup(rows []model.ChampionRow) model.ChampionLookup {
	lookup := make(model.ChampionLookup)
	for _, row := range rows {
		for _, iv := range ParseReigns(row) {
			for _, y := range iv.Years() {
				lookup[y] = iv.Player
			}
		}
	}
	return lookup
}
