package model

// ChampionRow is a raw reign row: a player and a free-text date range such
// as "1948-1957, 1958-1960".
type ChampionRow struct {
	Player string
	Dates  string
}

// ChampionInterval is one reign with inclusive year bounds.
type ChampionInterval struct {
	Player    string
	StartYear int
	EndYear   int
}

// Years returns every year of the interval, empty when StartYear > EndYear.
func (c ChampionInterval) Years() []int {
	if c.StartYear > c.EndYear {
		return nil
	}
	out := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		out = append(out, y)
	}
	return out
}

// ChampionLookup maps a year to the player holding the title that year.
type ChampionLookup map[int]string

// Of returns the champion of year.
func (l ChampionLookup) Of(year int) (string, bool) {
	name, ok := l[year]
	return name, ok
}

// Dataset is the raw input of the frame builder.
type Dataset struct {
	Records     []RatingRecord
	Champions   []ChampionRow
	Federations map[string]string // player -> federation code, passed through untouched
}
