package synthetic

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/okian/barrace/internal/adapters/source"
	"github.com/okian/barrace/internal/domain/model"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// File names written by WriteCSV.
const (
	RatingsFile     = "chess_ratings.csv"
	ChampionsFile   = "world_champions.csv"
	FederationsFile = "federations.csv"
)

// WriteCSV writes ds as three CSV files under dir.
func WriteCSV(dir string, ds model.Dataset) error { //nolint:gocritic // hugeParam: dataset is written once
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	ratings := [][]string{{"Player", "Rating", "year", "Age", "ranking"}}
	for _, r := range ds.Records {
		row := []string{r.Player, formatFloat(r.Rating), formatFloat(r.Year), "", ""}
		if r.Age != nil {
			row[3] = formatFloat(*r.Age)
		}
		if r.WorldRank != nil {
			row[4] = strconv.Itoa(*r.WorldRank)
		}
		ratings = append(ratings, row)
	}

	champions := [][]string{{"Player", "Dates"}}
	for _, c := range ds.Champions {
		champions = append(champions, []string{c.Player, c.Dates})
	}

	names := make([]string, 0, len(ds.Federations))
	for p := range ds.Federations {
		names = append(names, p)
	}
	sort.Strings(names)
	feds := [][]string{{"Player", "Federation"}}
	for _, p := range names {
		feds = append(feds, []string{p, ds.Federations[p]})
	}

	for name, rows := range map[string][][]string{
		RatingsFile:     ratings,
		ChampionsFile:   champions,
		FederationsFile: feds,
	} {
		if err := writeRows(filepath.Join(dir, name), rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteSQLite appends ds to the database at path.
func WriteSQLite(ctx context.Context, path string, ds model.Dataset) error { //nolint:gocritic // hugeParam: dataset is written once
	db, err := source.OpenSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Save(ctx, ds)
}

func writeRows(path string, rows [][]string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// formatFloat leaves non-finite values blank so they read back as missing.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
