package frames

import (
	"github.com/okian/barrace/pkg/logger"
)

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithTopN sets the per-frame entry bound. Non-positive values are ignored.
func WithTopN(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.topN = n
		}
	}
}

// WithLogger sets a custom logger for the builder.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}
