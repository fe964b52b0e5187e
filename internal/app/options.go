package service

import (
	"time"

	"github.com/okian/barrace/internal/adapters/source"
	"github.com/okian/barrace/internal/domain/playback"
	"github.com/okian/barrace/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLoader sets where the race data is read from.
func WithLoader(l source.Loader) Option {
	return func(s *Service) {
		if l != nil {
			s.loader = l
		}
	}
}

// WithTopN sets how many players each frame shows.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithBaseFrameDuration sets the delay between frames at speed 1.0.
func WithBaseFrameDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.base = d
		}
	}
}

// WithQueueSize sets the maximum number of undelivered events.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithTickerFunc replaces the playback timer factory.
func WithTickerFunc(fn playback.TickerFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.tickerFn = fn
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
