// Package synthetic generates plausible rating histories for demos and
// end-to-end checks, writes them out and verifies built frames against an
// independent reference computation.
package synthetic

// Config controls dataset generation.
type Config struct {
	Seed      uint64 // same seed, same dataset
	Players   int    // distinct players
	FirstYear int
	LastYear  int
	// ListsPerYear is how many rating lists are published each year. Every
	// list repeats the active players, so frames must deduplicate them.
	ListsPerYear int
	// NoiseRate is the share of rows made malformed (blank player, NaN rating
	// or fractional year).
	NoiseRate float64
}

// DefaultConfig returns a small but non-trivial dataset configuration.
func DefaultConfig() Config {
	return Config{
		Seed:         1,
		Players:      40,
		FirstYear:    1970,
		LastYear:     2020,
		ListsPerYear: 2,
		NoiseRate:    0.02,
	}
}

// Stats summarises a generated dataset.
type Stats struct {
	Rows      int
	Malformed int
	Years     int
	Reigns    int
}
