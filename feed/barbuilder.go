package feed

import "time"

const (
	// builderCapacity bounds the rolling buffer of finalized bars kept per
	// symbol. When the buffer fills, the oldest tenth is evicted.
	builderCapacity = 10000
)

// barBuilder aggregates a stream of ticks into successive one-minute OHLCV
// bars for a single symbol. It is not safe for concurrent use; the owning
// Feed serializes access.
type barBuilder struct {
	symbol   string
	exchange string

	cur         Bar
	open        bool
	periodStart BarTime
	tickCount   int

	bars []Bar
}

func newBarBuilder(symbol, exchange string) *barBuilder {
	return &barBuilder{symbol: symbol, exchange: exchange}
}

// processTick folds one trade into the in-progress minute bar, rolling the
// bar over when the tick belongs to a new minute period. A non-positive
// quantity counts as 1 so OHLC still updates for size-less trades.
func (b *barBuilder) processTick(price, quantity float64, at time.Time) {
	if quantity <= 0 {
		quantity = 1
	}

	// All ticks within the same minute must normalize to an identical
	// timestamp, otherwise downstream merging sees spurious extra bars.
	ps := BarTimeOf(at.Truncate(time.Minute))

	if !b.open || ps != b.periodStart {
		if b.open {
			b.finalize()
		}
		b.cur = Bar{
			Time:        ps,
			Granularity: Minute,
			Open:        price,
			High:        price,
			Low:         price,
			Close:       price,
		}
		b.open = true
		b.periodStart = ps
	}

	if price > b.cur.High {
		b.cur.High = price
	}
	// a low of exactly 0 means unset, not a real floor
	if b.cur.Low == 0 || price < b.cur.Low {
		b.cur.Low = price
	}
	b.cur.Close = price
	b.cur.Volume += quantity
	b.tickCount++
}

func (b *barBuilder) finalize() {
	if len(b.bars) >= builderCapacity {
		evict := builderCapacity / 10
		b.bars = append(b.bars[:0], b.bars[evict:]...)
	}
	b.bars = append(b.bars, b.cur)
}

// liveBar returns a copy of the in-progress bar, if any.
func (b *barBuilder) liveBar() (Bar, bool) {
	return b.cur, b.open
}

// recentBars returns a copy of the finalized rolling buffer. These are the
// minutes aggregated while the host was not polling; reconciliation merges
// them with authoritative history.
func (b *barBuilder) recentBars() []Bar {
	if len(b.bars) == 0 {
		return nil
	}
	out := make([]Bar, len(b.bars))
	copy(out, b.bars)
	return out
}
