package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/logger"
	"github.com/okian/barrace/pkg/metrics"
)

const sourceCSV = "csv"

// CSVLoader reads comma-separated files with a header row. Header names are
// matched case-insensitively.
type CSVLoader struct {
	ratingsPath     string
	championsPath   string
	federationsPath string
	logger          logger.Logger
}

var _ Loader = (*CSVLoader)(nil)

// NewCSVLoader creates a loader for the ratings file at path. Champion and
// federation files are optional.
func NewCSVLoader(ratingsPath string, opts ...CSVOption) *CSVLoader {
	l := &CSVLoader{ratingsPath: ratingsPath}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logger.Get().Named("source.csv")
	}
	return l
}

// Ratings reads the ratings file.
func (l *CSVLoader) Ratings(ctx context.Context) ([]model.RatingRecord, error) {
	var out []model.RatingRecord
	err := l.read(ctx, l.ratingsPath, func(r io.Reader) error {
		var err error
		out, err = ParseRatings(r)
		return err
	})
	return out, err
}

// Champions reads the champions file, or returns nothing when none is set.
func (l *CSVLoader) Champions(ctx context.Context) ([]model.ChampionRow, error) {
	if l.championsPath == "" {
		return nil, nil
	}
	var out []model.ChampionRow
	err := l.read(ctx, l.championsPath, func(r io.Reader) error {
		var err error
		out, err = ParseChampions(r)
		return err
	})
	return out, err
}

// Federations reads the federations file, or returns nothing when none is set.
func (l *CSVLoader) Federations(ctx context.Context) (map[string]string, error) {
	if l.federationsPath == "" {
		return map[string]string{}, nil
	}
	var out map[string]string
	err := l.read(ctx, l.federationsPath, func(r io.Reader) error {
		var err error
		out, err = ParseFederations(r)
		return err
	})
	return out, err
}

func (l *CSVLoader) read(ctx context.Context, path string, parse func(io.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		metrics.RecordLoadError(sourceCSV)
		return fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()

	if err := parse(f); err != nil {
		metrics.RecordLoadError(sourceCSV)
		l.logger.Error(ctx, "csv parse failed", logger.String("path", path), logger.Error(err))
		return fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Debug(ctx, "csv loaded", logger.String("path", path))
	return nil
}

// table is a header-indexed CSV reader.
type table struct {
	r       *csv.Reader
	columns map[string]int
}

func newTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &table{r: cr, columns: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrRead, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return &table{r: cr, columns: cols}, nil
}

// require returns the index of the first present name.
func (t *table) require(names ...string) (int, error) {
	if i := t.optional(names...); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("%w: %s", ErrMissingColumn, names[0])
}

func (t *table) optional(names ...string) int {
	for _, n := range names {
		if i, ok := t.columns[strings.ToLower(n)]; ok {
			return i
		}
	}
	return -1
}

// each calls fn for every data row.
func (t *table) each(fn func(row []string)) error {
	for {
		row, err := t.r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRead, err)
		}
		fn(row)
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// ParseRatings reads rows with Player, Rating and year columns, plus the
// optional Age and ranking columns. Unparseable numbers become NaN and are
// left for the frame builder to discard.
func ParseRatings(r io.Reader) ([]model.RatingRecord, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.columns) == 0 {
		return nil, nil
	}
	player, err := t.require("player")
	if err != nil {
		return nil, err
	}
	rating, err := t.require("rating")
	if err != nil {
		return nil, err
	}
	year, err := t.require("year")
	if err != nil {
		return nil, err
	}
	age := t.optional("age")
	rank := t.optional("ranking", "rank")

	var out []model.RatingRecord
	err = t.each(func(row []string) {
		out = append(out, model.RatingRecord{
			Player:    strings.TrimSpace(cell(row, player)),
			Rating:    number(cell(row, rating)),
			Year:      number(cell(row, year)),
			Age:       optionalNumber(cell(row, age)),
			WorldRank: optionalInt(cell(row, rank)),
		})
	})
	return out, err
}

// ParseChampions reads rows with Player and Dates columns.
func ParseChampions(r io.Reader) ([]model.ChampionRow, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.columns) == 0 {
		return nil, nil
	}
	player, err := t.require("player")
	if err != nil {
		return nil, err
	}
	dates, err := t.require("dates")
	if err != nil {
		return nil, err
	}

	var out []model.ChampionRow
	err = t.each(func(row []string) {
		out = append(out, model.ChampionRow{
			Player: strings.TrimSpace(cell(row, player)),
			Dates:  cell(row, dates),
		})
	})
	return out, err
}

// ParseFederations reads rows with Player and Federation (or Fed) columns.
// Rows with a blank player or federation are skipped; later rows win.
func ParseFederations(r io.Reader) (map[string]string, error) {
	out := map[string]string{}
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.columns) == 0 {
		return out, nil
	}
	player, err := t.require("player")
	if err != nil {
		return nil, err
	}
	fed, err := t.require("federation", "fed")
	if err != nil {
		return nil, err
	}

	err = t.each(func(row []string) {
		p, f := strings.TrimSpace(cell(row, player)), strings.TrimSpace(cell(row, fed))
		if p != "" && f != "" {
			out[p] = f
		}
	})
	return out, err
}
