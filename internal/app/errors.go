package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNoLoader   = errors.New("no data loader configured")
	ErrNotStarted = errors.New("service not started")
	ErrStopped    = errors.New("service already stopped")
)
