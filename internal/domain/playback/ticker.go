package playback

import "time"

// Ticker is a repeating timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc starts a Ticker with the given period.
type TickerFunc func(period time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(period time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(period)}
}
