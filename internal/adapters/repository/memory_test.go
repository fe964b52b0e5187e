package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func sample() model.Dataset {
	return model.Dataset{
		Records: []model.RatingRecord{
			{Player: "Carlsen", Rating: 2882, Year: 2014},
			{Player: "Caruana", Rating: 2844, Year: 2014},
			{Player: "Aronian", Rating: 2830, Year: 2014},
			{Player: "Carlsen", Rating: 2862, Year: 2015},
			{Player: "Caruana", Rating: 2811, Year: 2015},
		},
		Champions: []model.ChampionRow{{Player: "Carlsen", Dates: "2013-2023"}},
	}
}

func TestMemoryStore_NotLoaded(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Frames(ctx, 10); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
	if c := s.Count(ctx); c != 0 {
		t.Errorf("expected count 0, got %d", c)
	}
}

func TestMemoryStore_InvalidTopN(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Replace(ctx, sample())

	for _, n := range []int{0, -3} {
		if _, err := s.Frames(ctx, n); !errors.Is(err, ErrInvalidTopN) {
			t.Errorf("topN %d: expected ErrInvalidTopN, got %v", n, err)
		}
	}
}

func TestMemoryStore_CachesPerTopN(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Replace(ctx, sample())

	if c := s.Count(ctx); c != 5 {
		t.Errorf("expected 5 records, got %d", c)
	}

	t10, err := s.Frames(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, _ := s.Frames(ctx, 10)
	if t10 != again {
		t.Error("expected the cached table to be reused")
	}

	t2, _ := s.Frames(ctx, 2)
	if t2 == t10 {
		t.Error("expected a separate table per topN")
	}
	f, _ := t2.FrameOf(2014)
	if len(f.Entries) != 2 {
		t.Errorf("expected 2 entries for topN 2, got %d", len(f.Entries))
	}
	if s.Cached() != 2 {
		t.Errorf("expected 2 cached tables, got %d", s.Cached())
	}
}

func TestMemoryStore_ReplaceInvalidates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Replace(ctx, sample())
	before, _ := s.Frames(ctx, 10)
	v := s.Version()

	s.Replace(ctx, model.Dataset{Records: []model.RatingRecord{{Player: "Kasparov", Rating: 2851, Year: 1999}}})

	if s.Version() != v+1 {
		t.Errorf("expected version %d, got %d", v+1, s.Version())
	}
	if s.Cached() != 0 {
		t.Errorf("expected empty cache after replace, got %d", s.Cached())
	}
	after, _ := s.Frames(ctx, 10)
	if after == before {
		t.Error("expected a rebuilt table")
	}
	if years := after.Years(); len(years) != 1 || years[0] != 1999 {
		t.Errorf("unexpected years %v", years)
	}
}

func TestMemoryStore_Entry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Replace(ctx, sample())

	e, err := s.Entry(ctx, 10, 2014, "  Caruana ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Rank != 2 || e.Rating != 2844 {
		t.Errorf("unexpected entry %+v", e)
	}

	if _, err := s.Entry(ctx, 10, 2015, "Aronian"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent player, got %v", err)
	}
	if _, err := s.Entry(ctx, 10, 1900, "Carlsen"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent year, got %v", err)
	}
	if _, err := s.Entry(ctx, 1, 2014, "Caruana"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected truncated player to be missing, got %v", err)
	}
}

func TestMemoryStore_ConcurrentFrames(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Replace(ctx, sample())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := s.Frames(ctx, n%3+1); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if s.Cached() != 3 {
		t.Errorf("expected 3 cached tables, got %d", s.Cached())
	}
}
