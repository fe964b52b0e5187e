package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/okian/barrace/internal/domain/frames"
	"github.com/okian/barrace/internal/synthetic"
	"github.com/okian/barrace/pkg/logger"
)

func main() {
	def := synthetic.DefaultConfig()
	var (
		dir       = flag.String("dir", "data", "Directory for the CSV files")
		sqlite    = flag.String("sqlite", "", "Also append the dataset to this SQLite database")
		seed      = flag.Uint64("seed", def.Seed, "Random seed")
		players   = flag.Int("players", def.Players, "Number of players")
		firstYear = flag.Int("from", def.FirstYear, "First year")
		lastYear  = flag.Int("to", def.LastYear, "Last year")
		lists     = flag.Int("lists", def.ListsPerYear, "Rating lists per year")
		noise     = flag.Float64("noise", def.NoiseRate, "Share of malformed rows")
		verify    = flag.Bool("verify", true, "Check built frames against a reference computation")
	)
	flag.Parse()

	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	cfg := synthetic.Config{
		Seed:         *seed,
		Players:      *players,
		FirstYear:    *firstYear,
		LastYear:     *lastYear,
		ListsPerYear: *lists,
		NoiseRate:    *noise,
	}
	if err := generate(context.Background(), cfg, *dir, *sqlite, *verify); err != nil {
		logger.Get().Error(context.Background(), "generation failed", logger.Error(err))
		os.Exit(1)
	}
}

func generate(ctx context.Context, cfg synthetic.Config, dir, sqlitePath string, verify bool) error {
	log := logger.Get().Named("gen-data")
	if cfg.Players <= 0 || cfg.LastYear < cfg.FirstYear {
		return fmt.Errorf("invalid configuration: %d players, years %d-%d", cfg.Players, cfg.FirstYear, cfg.LastYear)
	}

	ds, st := synthetic.Generate(cfg)
	log.Info(ctx, "dataset generated",
		logger.Int("rows", st.Rows),
		logger.Int("malformed", st.Malformed),
		logger.Int("years", st.Years),
		logger.Int("reigns", st.Reigns),
	)

	if verify {
		for _, topN := range []int{1, frames.DefaultTopN} {
			table := frames.NewBuilder(frames.WithTopN(topN)).Build(ctx, ds)
			if bad := synthetic.Verify(ds, table, topN); len(bad) > 0 {
				return fmt.Errorf("frame verification failed for top %d: %s", topN, bad[0])
			}
		}
		log.Info(ctx, "frames verified")
	}

	if err := synthetic.WriteCSV(dir, ds); err != nil {
		return err
	}
	log.Info(ctx, "csv written", logger.String("dir", dir))

	if sqlitePath != "" {
		if err := synthetic.WriteSQLite(ctx, sqlitePath, ds); err != nil {
			return err
		}
		log.Info(ctx, "sqlite written", logger.String("path", sqlitePath))
	}
	return nil
}
