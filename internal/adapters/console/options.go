package console

import "github.com/okian/barrace/pkg/logger"

// Option applies a configuration option to the Renderer.
type Option func(*Renderer)

// WithBarWidth sets the width in cells of the longest possible bar.
func WithBarWidth(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.barWidth = n
		}
	}
}

// WithLogger sets a custom logger for the renderer.
func WithLogger(l logger.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}
