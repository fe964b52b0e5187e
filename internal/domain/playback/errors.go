package playback

import "errors"

// Sentinel kinds for playback errors.
var (
	ErrNoFrames        = errors.New("no frames loaded")
	ErrIndexOutOfRange = errors.New("frame index out of range")
	ErrYearOutOfRange  = errors.New("year out of range")
	ErrInvalidSpeed    = errors.New("invalid speed multiplier")
)
