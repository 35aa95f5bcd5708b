package playback

import "time"

// Ticker is the periodic timer that drives scene changes.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker with the given period.
type TickerFunc func(period time.Duration) Ticker

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

func newRealTicker(period time.Duration) Ticker {
	return realTicker{time.NewTicker(period)}
}
