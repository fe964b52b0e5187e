package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotLoaded   = errors.New("dataset not loaded")
	ErrNotFound    = errors.New("player not found")
	ErrInvalidTopN = errors.New("invalid top-n limit")
)
