package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/okian/barrace/internal/domain/model"
)

// Rating model constants.
const (
	baseRating     = 2450.0
	ratingSpread   = 250.0
	peakAgeMin     = 26
	peakAgeRange   = 8
	yearlyGain     = 18.0
	yearlyDecline  = 12.0
	listJitter     = 15.0
	debutAgeMin    = 15
	debutAgeRange  = 8
	careerMinYears = 8
	careerRange    = 25
	reignMinYears  = 3
)

var syllables = []string{"ka", "ro", "mi", "sta", "vin", "tal", "ne", "pov", "sky", "lev", "dor", "an", "bel", "chi", "gor"}

var federations = []string{"USA", "RUS", "IND", "NOR", "CHN", "GER", "NED", "FRA", "ARM", "HUN", "ENG", "ESP"}

type player struct {
	name      string
	fed       string
	debutYear int
	lastYear  int
	birthYear int
	peakAge   int
	strength  float64
}

// Generate builds a dataset from cfg.
func Generate(cfg Config) (model.Dataset, Stats) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	players := makePlayers(rng, cfg)

	var st Stats
	ds := model.Dataset{Federations: make(map[string]string, len(players))}
	for _, p := range players {
		ds.Federations[p.name] = p.fed
	}

	best := map[int]string{}
	for year := cfg.FirstYear; year <= cfg.LastYear; year++ {
		top := -1.0
		for list := 0; list < max(1, cfg.ListsPerYear); list++ {
			rows := listRows(rng, players, year)
			assignRanks(rows)
			for _, r := range rows {
				if r.Rating > top {
					top, best[year] = r.Rating, r.Player
				}
				if rng.Float64() < cfg.NoiseRate {
					r = corrupt(rng, r)
					st.Malformed++
				}
				ds.Records = append(ds.Records, r)
			}
		}
		if top > 0 {
			st.Years++
		}
	}
	ds.Champions = reigns(best, cfg)
	st.Rows = len(ds.Records)
	st.Reigns = len(ds.Champions)
	return ds, st
}

func makePlayers(rng *rand.Rand, cfg Config) []player {
	seen := map[string]bool{}
	span := max(1, cfg.LastYear-cfg.FirstYear+1)
	out := make([]player, 0, cfg.Players)
	for len(out) < cfg.Players {
		name := playerName(rng)
		if seen[name] {
			continue
		}
		seen[name] = true

		debut := cfg.FirstYear - careerMinYears + rng.IntN(span+careerMinYears)
		debutAge := debutAgeMin + rng.IntN(debutAgeRange)
		out = append(out, player{
			name:      name,
			fed:       federations[rng.IntN(len(federations))],
			debutYear: debut,
			lastYear:  debut + careerMinYears + rng.IntN(careerRange),
			birthYear: debut - debutAge,
			peakAge:   peakAgeMin + rng.IntN(peakAgeRange),
			strength:  baseRating + rng.Float64()*ratingSpread,
		})
	}
	return out
}

func playerName(rng *rand.Rand) string {
	first := syllables[rng.IntN(len(syllables))]
	last := ""
	for i := 0; i < 2+rng.IntN(2); i++ {
		last += syllables[rng.IntN(len(syllables))]
	}
	return strings.ToUpper(first[:1]) + ". " + strings.ToUpper(last[:1]) + last[1:]
}

func listRows(rng *rand.Rand, players []player, year int) []model.RatingRecord {
	var rows []model.RatingRecord
	for _, p := range players {
		if year < p.debutYear || year > p.lastYear {
			continue
		}
		age := float64(year - p.birthYear)
		rows = append(rows, model.RatingRecord{
			Player: p.name,
			Rating: math.Round(p.rating(year) + (rng.Float64()*2-1)*listJitter),
			Year:   float64(year),
			Age:    &age,
		})
	}
	return rows
}

func (p player) rating(year int) float64 {
	age := year - p.birthYear
	if age <= p.peakAge {
		return p.strength - float64(p.peakAge-age)*yearlyGain
	}
	return p.strength - float64(age-p.peakAge)*yearlyDecline
}

// assignRanks records each row's position in its list.
func assignRanks(rows []model.RatingRecord) {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return rows[idx[a]].Rating > rows[idx[b]].Rating })
	for pos, i := range idx {
		rank := pos + 1
		rows[i].WorldRank = &rank
	}
}

func corrupt(rng *rand.Rand, r model.RatingRecord) model.RatingRecord {
	switch rng.IntN(3) {
	case 0:
		r.Player = "  "
	case 1:
		r.Rating = math.NaN()
	default:
		r.Year += 0.5
	}
	return r
}

// reigns turns runs of yearly leaders lasting at least three years into
// champion rows, using the two-digit end year form ("1985-93") where the
// century does not change.
func reigns(best map[int]string, cfg Config) []model.ChampionRow {
	var out []model.ChampionRow
	start := cfg.FirstYear
	flush := func(end int) {
		name, ok := best[start]
		if !ok || end-start+1 < reignMinYears {
			return
		}
		dates := fmt.Sprintf("%d-%d", start, end)
		if start/100 == end/100 {
			dates = fmt.Sprintf("%d-%02d", start, end%100)
		}
		out = append(out, model.ChampionRow{Player: name, Dates: dates})
	}
	for y := cfg.FirstYear + 1; y <= cfg.LastYear+1; y++ {
		if y <= cfg.LastYear && best[y] == best[start] {
			continue
		}
		flush(y - 1)
		start = y
	}
	return out
}
