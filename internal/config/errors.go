package config

import "errors"

var (
	// ErrInvalidConfig marks a setting that failed validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a failure reading the file or environment layers.
	ErrLoadConfig = errors.New("load config failed")
)
