package source

import "errors"

// Sentinel kinds for loader errors.
var (
	ErrMissingColumn = errors.New("required column missing")
	ErrRead          = errors.New("read failed")
	ErrQuery         = errors.New("query failed")
)
