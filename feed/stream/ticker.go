package stream

import "time"

// ticker abstracts the keepalive ping timer so tests can drive pings
// manually instead of waiting out pingPeriod.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

// timeTicker wraps time.Ticker behind the ticker interface.
type timeTicker struct {
	ticker *time.Ticker
}

var _ ticker = (*timeTicker)(nil)

func (t *timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *timeTicker) Stop() {
	t.ticker.Stop()
}
