// Package source reads rating, champion and federation rows from tabular
// storage. Rows are returned as found; validity filtering belongs to the
// frame builder.
package source

import (
	"context"
	"fmt"

	"github.com/okian/barrace/internal/domain/model"
)

// Loader reads the three inputs of a race.
type Loader interface {
	Ratings(ctx context.Context) ([]model.RatingRecord, error)
	Champions(ctx context.Context) ([]model.ChampionRow, error)
	Federations(ctx context.Context) (map[string]string, error)
}

// LoadDataset reads every input of l into one Dataset.
func LoadDataset(ctx context.Context, l Loader) (model.Dataset, error) {
	var ds model.Dataset
	var err error

	if ds.Records, err = l.Ratings(ctx); err != nil {
		return model.Dataset{}, fmt.Errorf("ratings: %w", err)
	}
	if ds.Champions, err = l.Champions(ctx); err != nil {
		return model.Dataset{}, fmt.Errorf("champions: %w", err)
	}
	if ds.Federations, err = l.Federations(ctx); err != nil {
		return model.Dataset{}, fmt.Errorf("federations: %w", err)
	}
	return ds, nil
}
