package dedupe

const defaultCapacity = 16

type settings struct {
	capacity int
}

// Option configures a Deduper.
type Option func(*settings)

// WithCapacity pre-sizes the reducer for the expected number of players.
func WithCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.capacity = n
		}
	}
}
