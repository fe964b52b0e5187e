// Package repository holds the loaded dataset and caches the frame tables
// built from it, one per top-N setting.
package repository

import (
	"context"

	"github.com/okian/barrace/internal/domain/frames"
	"github.com/okian/barrace/internal/domain/model"
)

// Store provides read/write access to the loaded dataset.
type Store interface {
	// Replace swaps the dataset and invalidates every cached table.
	Replace(ctx context.Context, ds model.Dataset)

	// Frames returns the frame table for topN, building it on first use.
	// Returns ErrNotLoaded before the first Replace.
	Frames(ctx context.Context, topN int) (*frames.Table, error)

	// Entry returns a player's row in the given year's frame.
	// Returns ErrNotFound if the player is not shown that year.
	Entry(ctx context.Context, topN, year int, player string) (model.Entry, error)

	// Count returns the number of raw rating records held.
	Count(ctx context.Context) int
}
