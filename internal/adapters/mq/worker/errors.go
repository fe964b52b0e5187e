package worker

import "errors"

// ErrShutdownTimeout is returned when queued events could not be delivered
// before the shutdown deadline.
var ErrShutdownTimeout = errors.New("dispatcher shutdown timed out")
