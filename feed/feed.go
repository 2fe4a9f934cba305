package feed

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/openalgo/openalgo-feed-go/feed/stream"
	"github.com/openalgo/openalgo-feed-go/openalgo"
)

// HistoryProvider is the historical fetcher collaborator. openalgo.Client
// implements it.
type HistoryProvider interface {
	GetHistory(ctx context.Context, params openalgo.HistoryParams) ([]openalgo.HistoryBar, error)
	GetQuote(ctx context.Context, symbol, exchange string) (*openalgo.Quote, error)
}

// Streamer is the live-feed collaborator. stream.Client implements it.
type Streamer interface {
	Connect(ctx context.Context) error
	Terminated() <-chan error
	State() stream.State
	Subscribe(tickers ...string) error
}

// Status is the advisory, host-visible connection status.
type Status int

const (
	StatusWait Status = iota
	StatusConnected
	StatusDisconnected
	// StatusShutdown is the terminal state after the reconnect budget is
	// exhausted. It requires a manual Reconnect — a deliberate circuit
	// breaker against reconnect storms.
	StatusShutdown
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusShutdown:
		return "shutdown"
	}
	return "wait"
}

const quoteCacheTTL = 5 * time.Second

type cachedQuote struct {
	quote   openalgo.Quote
	fetched time.Time
}

type backfillOverride struct {
	days        int
	granularity Granularity
}

// Feed owns all per-symbol aggregation state for one data-feed instance:
// the bar builders, the tracked subscriptions, the quote cache and the
// connection to the live feed. It is the explicit context object replacing
// what a plugin would otherwise keep in process-wide globals, so several
// independent feeds can coexist.
//
// All entry points are safe for concurrent use. The internal lock is never
// held across a network call.
type Feed struct {
	logger      stream.Logger
	history     HistoryProvider
	newStreamer func(handler func([]byte)) Streamer
	realtime    bool
	now         func() time.Time
	today       func() civil.Date

	mu       sync.Mutex
	builders map[string]*barBuilder
	subs     map[string]bool
	quotes   map[string]cachedQuote
	pending  *backfillOverride
	streamer Streamer
	shutdown bool

	updates chan string
}

// NewFeed returns a new Feed whose default configuration is modified by
// opts. Without WithHistoryProvider it talks to the default OpenAlgo
// client; without WithStreamURL (or WithStreamer) there is no live feed and
// the engine degrades to history-only polling.
func NewFeed(opts ...Option) *Feed {
	f := &Feed{
		logger:   stream.NewStdLog(),
		realtime: true,
		now:      time.Now,
		builders: make(map[string]*barBuilder),
		subs:     make(map[string]bool),
		quotes:   make(map[string]cachedQuote),
		updates:  make(chan string, 256),
	}
	f.today = func() civil.Date { return civil.DateOf(f.now()) }
	for _, o := range opts {
		o(f)
	}
	if f.history == nil {
		f.history = openalgo.NewClient(openalgo.ClientOpts{})
	}
	return f
}

// Start connects the live feed, if one is configured, and begins
// aggregating ticks. It blocks until the first connection attempt resolves.
func (f *Feed) Start(ctx context.Context) error {
	if f.newStreamer == nil {
		return nil
	}
	return f.connectStream(ctx)
}

func (f *Feed) connectStream(ctx context.Context) error {
	s := f.newStreamer(f.handleMessage)

	f.mu.Lock()
	f.streamer = s
	f.shutdown = false
	tickers := f.trackedTickers()
	f.mu.Unlock()

	if len(tickers) > 0 {
		if err := s.Subscribe(tickers...); err != nil {
			return err
		}
	}
	if err := s.Connect(ctx); err != nil {
		f.mu.Lock()
		f.shutdown = true
		f.mu.Unlock()
		return err
	}

	go func() {
		err, ok := <-s.Terminated()
		f.mu.Lock()
		f.shutdown = true
		f.mu.Unlock()
		if ok && err != nil {
			f.logger.Errorf("openalgo feed: stream terminated: %v", err)
		}
	}()
	return nil
}

// Reconnect restores a feed whose stream reached the terminal shutdown
// state. It is the external trigger behind a "reconnect" menu entry.
func (f *Feed) Reconnect(ctx context.Context) error {
	if f.newStreamer == nil {
		return nil
	}
	return f.connectStream(ctx)
}

// Status reports the advisory connection status for display purposes.
func (f *Feed) Status() Status {
	f.mu.Lock()
	s, down := f.streamer, f.shutdown
	f.mu.Unlock()

	if s == nil {
		return StatusWait
	}
	if down {
		return StatusShutdown
	}
	switch s.State() {
	case stream.Authenticated, stream.Connected:
		return StatusConnected
	case stream.Connecting:
		return StatusWait
	default:
		return StatusDisconnected
	}
}

// Updates returns the channel carrying one-way "data changed" signals: a
// ticker name is sent whenever its live bar updates. Sends never block;
// when the receiver lags, signals are dropped, which is fine because any
// one signal only means "poll me again".
func (f *Feed) Updates() <-chan string {
	return f.updates
}

// handleMessage is the live-feed message handler: decode, aggregate.
func (f *Feed) handleMessage(msg []byte) {
	t := DecodeTick(msg, f.now)
	if t == nil {
		return
	}
	f.ProcessTick(*t)
}

// ProcessTick folds one tick into the symbol's in-progress minute bar and
// posts a non-blocking update signal. It returns false when real-time
// aggregation is disabled and never fails otherwise; invalid input is
// clamped, not rejected.
func (f *Feed) ProcessTick(t Tick) bool {
	if !f.realtime {
		return false
	}
	ticker := JoinTicker(t.Symbol, t.Exchange)

	f.mu.Lock()
	b := f.builders[ticker]
	if b == nil {
		b = newBarBuilder(t.Symbol, t.Exchange)
		f.builders[ticker] = b
	}
	b.processTick(t.Price, t.Quantity, t.Time)
	f.mu.Unlock()

	select {
	case f.updates <- ticker:
	default:
	}
	return true
}

// ForceBackfill requests that the next FetchSeries poll for the given
// granularity re-fetches the given number of days, regardless of what the
// planner would decide. The override is consumed by exactly one poll.
func (f *Feed) ForceBackfill(days int, g Granularity) {
	f.mu.Lock()
	f.pending = &backfillOverride{days: days, granularity: g}
	f.mu.Unlock()
}

// FetchSeries is the host poll entry point. It reconciles the bars the
// caller already holds (quotes[:lastValid+1]) with freshly fetched history
// and the live in-progress bar, writes the result back into quotes and
// returns the new valid count.
//
// It never fails: on any fetch error the caller's data is left untouched
// and the prior count is returned. Unsupported granularities are a no-op.
// The first poll for a ticker subscribes it on the live feed.
func (f *Feed) FetchSeries(ctx context.Context, ticker string, g Granularity, quotes []Bar, lastValid int) int {
	count := lastValid + 1
	if count < 0 {
		count = 0
	}
	if count > len(quotes) {
		count = len(quotes)
	}
	if !g.Supported() {
		return count
	}
	existing := quotes[:count]
	symbol, exchange := SplitTicker(ticker)

	f.ensureSubscribed(ticker)

	window := f.takeWindow(g, existing)
	raw, err := f.history.GetHistory(ctx, openalgo.HistoryParams{
		Symbol:   symbol,
		Exchange: exchange,
		Interval: g.Interval(),
		Start:    window.Start,
		End:      window.End,
	})
	if err != nil {
		f.logger.Warnf("openalgo feed: history fetch for %s failed: %v", ticker, err)
		return count
	}
	fetched := historyToBars(raw, g)

	var live *Bar
	if g == Minute {
		f.mu.Lock()
		if b := f.builders[ticker]; b != nil {
			// Builder bars go ahead of the server's so that duplicate
			// resolution (later record wins) lets authoritative history
			// correct anything aggregated from a partial minute. Minutes
			// the server has not caught up on yet survive untouched.
			fetched = append(b.recentBars(), fetched...)
			if bar, open := b.liveBar(); open {
				live = &bar
			}
		}
		f.mu.Unlock()
	}

	merged := reconcile(existing, fetched, live, len(quotes))
	return copy(quotes, merged)
}

// takeWindow runs the backfill planner, honoring (and consuming) a pending
// manual override for the matching granularity.
func (f *Feed) takeWindow(g Granularity, existing []Bar) DateRange {
	today := f.today()

	f.mu.Lock()
	if o := f.pending; o != nil && o.granularity == g && o.days > 0 {
		f.pending = nil
		f.mu.Unlock()
		return DateRange{Start: today.AddDays(-o.days), End: today}
	}
	f.mu.Unlock()

	return planWindow(g, existing, today)
}

func (f *Feed) ensureSubscribed(ticker string) {
	f.mu.Lock()
	s := f.streamer
	already := f.subs[ticker]
	f.subs[ticker] = true
	f.mu.Unlock()

	if already || s == nil {
		return
	}
	if err := s.Subscribe(ticker); err != nil {
		f.logger.Warnf("openalgo feed: subscribing %s failed: %v", ticker, err)
	}
}

func (f *Feed) trackedTickers() []string {
	out := make([]string, 0, len(f.subs))
	for t := range f.subs {
		out = append(out, t)
	}
	return out
}

// RecentQuote returns the current quote for a ticker, serving repeated
// calls within a few seconds from a per-ticker cache so a fast-polling host
// does not hammer the quotes endpoint.
func (f *Feed) RecentQuote(ctx context.Context, ticker string) (*openalgo.Quote, error) {
	now := f.now()

	f.mu.Lock()
	if c, ok := f.quotes[ticker]; ok && now.Sub(c.fetched) < quoteCacheTTL {
		q := c.quote
		f.mu.Unlock()
		return &q, nil
	}
	f.mu.Unlock()

	symbol, exchange := SplitTicker(ticker)
	q, err := f.history.GetQuote(ctx, symbol, exchange)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.quotes[ticker] = cachedQuote{quote: *q, fetched: now}
	f.mu.Unlock()
	return q, nil
}

// historyToBars converts raw history records to bars of the requested
// granularity. Daily records are normalized to a zero clock so every bar of
// a given day maps to the same key.
func historyToBars(raw []openalgo.HistoryBar, g Granularity) []Bar {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Bar, 0, len(raw))
	for _, r := range raw {
		t := BarTimeOf(time.Unix(r.Timestamp, 0))
		if g == Daily {
			t.Hour, t.Minute = 0, 0
		}
		out = append(out, Bar{
			Time:         t,
			Granularity:  g,
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			Volume:       r.Volume,
			OpenInterest: r.OpenInterest,
		})
	}
	return out
}
