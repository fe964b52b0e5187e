package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/barrace/internal/adapters/console"
	"github.com/okian/barrace/internal/adapters/source"
	app "github.com/okian/barrace/internal/app"
	"github.com/okian/barrace/internal/config"
	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/logger"
	"github.com/okian/barrace/pkg/metrics"
)

const (
	shutdownTimeout        = 10 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load(".env")

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr since the logger is not configured yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if cfg.MetricsAddr != "" {
		go func() {
			log.Info(ctx, "serving metrics", logger.String("addr", cfg.MetricsAddr))
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error(ctx, "metrics server failed", logger.Error(err))
			}
		}()
		go startSystemMetricsUpdater(ctx)
	}

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Error(ctx, "race failed", logger.Error(err))
		os.Exit(1)
	}
}

// run loads the race described by cfg, renders it to out and returns once
// playback has finished or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	log := logger.Get().Named("race")

	loader, closeLoader, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLoader(); err != nil {
			log.Warn(ctx, "closing loader failed", logger.Error(err))
		}
	}()

	svc := app.New(
		app.WithLogger(log),
		app.WithLoader(loader),
		app.WithTopN(cfg.TopN),
		app.WithBaseFrameDuration(cfg.BaseFrameDuration()),
		app.WithQueueSize(cfg.QueueSize),
	)

	renderer := console.NewRenderer(out)
	svc.Subscribe(renderer.Handle)

	// Handlers run on one goroutine, so started needs no lock.
	finished := make(chan struct{})
	var once sync.Once
	started := false
	svc.Subscribe(func(_ context.Context, e model.Event) {
		if e.Kind != model.PlaybackStateChanged {
			return
		}
		if e.Playing {
			started = true
		} else if started {
			once.Do(func() { close(finished) })
		}
	})

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(shutdownCtx); err != nil {
			log.Error(ctx, "service shutdown failed", logger.Error(err))
		}
	}()

	if cfg.MetricsAddr != "" {
		go startServiceMetricsUpdater(ctx, svc)
	}

	if len(svc.State().Years) == 0 {
		log.Warn(ctx, "no valid rating rows found")
		return nil
	}

	if cfg.StartYear != 0 {
		res, err := svc.SeekToYear(ctx, cfg.StartYear)
		switch {
		case err != nil:
			log.Warn(ctx, res.Message, logger.Error(err))
		case !res.Exact:
			log.Info(ctx, res.Message)
		}
	}
	if _, err := svc.SetSpeed(ctx, cfg.Speed); err != nil {
		return err
	}

	if !cfg.Autoplay {
		return nil
	}

	svc.Play(ctx)
	select {
	case <-finished:
	case <-ctx.Done():
		log.Info(ctx, "interrupted", logger.Any("stats", svc.GetStats()))
	}
	return nil
}

// newLoader builds the configured data source and its cleanup function.
// The source name is matched case-insensitively, as Validate does.
func newLoader(ctx context.Context, cfg *config.Config) (source.Loader, func() error, error) {
	switch strings.ToLower(cfg.Source) {
	case config.SourceSQLite:
		db, err := source.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		l := source.NewCSVLoader(cfg.RatingsPath,
			source.WithChampionsFile(optionalPath(ctx, cfg.ChampionsPath)),
			source.WithFederationsFile(optionalPath(ctx, cfg.FederationsPath)),
		)
		return l, func() error { return nil }, nil
	}
}

// optionalPath drops paths of optional inputs that do not exist.
func optionalPath(ctx context.Context, path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Get().Warn(ctx, "optional input not found; skipping", logger.String("path", path))
		return ""
	}
	return path
}

// startSystemMetricsUpdater periodically records process metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater periodically refreshes service gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue and store gauges.
			_ = svc.GetStats()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
