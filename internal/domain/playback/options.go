package playback

import (
	"time"

	"github.com/okian/barrace/pkg/logger"
)

// Option applies a configuration option to the Sequencer.
type Option func(*Sequencer)

// WithBaseFrameDuration sets the delay between frames at speed 1.0.
func WithBaseFrameDuration(d time.Duration) Option {
	return func(s *Sequencer) {
		if d > 0 {
			s.base = d
		}
	}
}

// WithTickerFunc replaces the timer factory.
func WithTickerFunc(fn TickerFunc) Option {
	return func(s *Sequencer) {
		if fn != nil {
			s.newTicker = fn
		}
	}
}

// WithLogger sets a custom logger for the sequencer.
func WithLogger(l logger.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}
