package source

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver

	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/logger"
	"github.com/okian/barrace/pkg/metrics"
)

const sourceSQLite = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS ratings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    player TEXT,
    rating REAL,
    year REAL,
    age REAL,
    ranking INTEGER
);
CREATE TABLE IF NOT EXISTS champions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    player TEXT,
    dates TEXT
);
CREATE TABLE IF NOT EXISTS federations (
    player TEXT PRIMARY KEY,
    federation TEXT
);`

// SQLiteLoader reads the race inputs from a SQLite database.
type SQLiteLoader struct {
	db     *sql.DB
	logger logger.Logger
}

var _ Loader = (*SQLiteLoader)(nil)

// OpenSQLite opens the database at path and creates missing tables.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteLoader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		metrics.RecordLoadError(sourceSQLite)
		return nil, fmt.Errorf("%w: open %s: %w", ErrRead, path, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteLoader{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("source.sqlite")
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		metrics.RecordLoadError(sourceSQLite)
		return nil, fmt.Errorf("%w: schema: %w", ErrQuery, err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteLoader) Close() error {
	return s.db.Close()
}

// Ratings returns every ratings row in insertion order.
func (s *SQLiteLoader) Ratings(ctx context.Context) ([]model.RatingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player, rating, year, age, ranking FROM ratings ORDER BY id`)
	if err != nil {
		return nil, s.fail(ctx, "ratings", err)
	}
	defer rows.Close()

	var out []model.RatingRecord
	for rows.Next() {
		var (
			player       sql.NullString
			rating, year sql.NullFloat64
			age          sql.NullFloat64
			rank         sql.NullInt64
		)
		if err := rows.Scan(&player, &rating, &year, &age, &rank); err != nil {
			return nil, s.fail(ctx, "ratings", err)
		}
		rec := model.RatingRecord{
			Player: strings.TrimSpace(player.String),
			Rating: nullable(rating),
			Year:   nullable(year),
		}
		if age.Valid {
			a := age.Float64
			rec.Age = &a
		}
		if rank.Valid {
			r := int(rank.Int64)
			rec.WorldRank = &r
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(ctx, "ratings", err)
	}
	return out, nil
}

// Champions returns every champion row in insertion order.
func (s *SQLiteLoader) Champions(ctx context.Context) ([]model.ChampionRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player, dates FROM champions ORDER BY id`)
	if err != nil {
		return nil, s.fail(ctx, "champions", err)
	}
	defer rows.Close()

	var out []model.ChampionRow
	for rows.Next() {
		var player, dates sql.NullString
		if err := rows.Scan(&player, &dates); err != nil {
			return nil, s.fail(ctx, "champions", err)
		}
		out = append(out, model.ChampionRow{Player: strings.TrimSpace(player.String), Dates: dates.String})
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(ctx, "champions", err)
	}
	return out, nil
}

// Federations returns the player to federation mapping.
func (s *SQLiteLoader) Federations(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player, federation FROM federations`)
	if err != nil {
		return nil, s.fail(ctx, "federations", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var player, fed sql.NullString
		if err := rows.Scan(&player, &fed); err != nil {
			return nil, s.fail(ctx, "federations", err)
		}
		p, f := strings.TrimSpace(player.String), strings.TrimSpace(fed.String)
		if p != "" && f != "" {
			out[p] = f
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(ctx, "federations", err)
	}
	return out, nil
}

// Save appends ds to the database in one transaction. Federations are
// upserted by player.
func (s *SQLiteLoader) Save(ctx context.Context, ds model.Dataset) error { //nolint:gocritic // hugeParam: dataset is written once
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail(ctx, "save", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range ds.Records {
		var age, rank any
		if r.Age != nil {
			age = *r.Age
		}
		if r.WorldRank != nil {
			rank = *r.WorldRank
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ratings (player, rating, year, age, ranking) VALUES (?, ?, ?, ?, ?)`,
			r.Player, storable(r.Rating), storable(r.Year), age, rank,
		); err != nil {
			return s.fail(ctx, "save", err)
		}
	}
	for _, c := range ds.Champions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO champions (player, dates) VALUES (?, ?)`, c.Player, c.Dates); err != nil {
			return s.fail(ctx, "save", err)
		}
	}
	for p, f := range ds.Federations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO federations (player, federation) VALUES (?, ?)
			 ON CONFLICT(player) DO UPDATE SET federation = excluded.federation`, p, f,
		); err != nil {
			return s.fail(ctx, "save", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail(ctx, "save", err)
	}
	s.logger.Info(ctx, "dataset saved",
		logger.Int("records", len(ds.Records)),
		logger.Int("champions", len(ds.Champions)),
	)
	return nil
}

func (s *SQLiteLoader) fail(ctx context.Context, what string, err error) error {
	metrics.RecordLoadError(sourceSQLite)
	s.logger.Error(ctx, "sqlite query failed", logger.String("table", what), logger.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrQuery, what, err)
}

func nullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// storable maps non-finite values to NULL.
func storable(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
