package feed

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/openalgo/openalgo-feed-go/feed/stream"
)

// Option is a configuration option for a Feed.
type Option func(*Feed)

// WithLogger configures the logger used by the feed and, when the feed
// constructs its own stream client, by that client too.
func WithLogger(logger stream.Logger) Option {
	return func(f *Feed) {
		f.logger = logger
	}
}

// WithHistoryProvider configures the historical fetcher. Defaults to an
// OpenAlgo REST client built from environment variables.
func WithHistoryProvider(h HistoryProvider) Option {
	return func(f *Feed) {
		f.history = h
	}
}

// WithStreamURL configures the live feed websocket endpoint and the API key
// used to authenticate on it. Extra stream options are passed through to
// the client.
func WithStreamURL(url, apiKey string, opts ...stream.Option) Option {
	return func(f *Feed) {
		f.newStreamer = func(handler func([]byte)) Streamer {
			all := append([]stream.Option{
				stream.WithLogger(f.logger),
				stream.WithMessageHandler(handler),
			}, opts...)
			return stream.NewClient(url, apiKey, all...)
		}
	}
}

// WithStreamer configures a custom live-feed client factory. The factory is
// invoked on Start and again on every manual Reconnect, since a terminated
// stream client cannot be reused.
func WithStreamer(factory func(handler func(msg []byte)) Streamer) Option {
	return func(f *Feed) {
		f.newStreamer = factory
	}
}

// WithRealtimeBars enables or disables real-time tick aggregation. When
// disabled, ProcessTick is a no-op and polling serves history only.
func WithRealtimeBars(enabled bool) Option {
	return func(f *Feed) {
		f.realtime = enabled
	}
}

// WithClock overrides the wall clock, which also drives the tick decoder's
// timestamp fallback and the planner's notion of "today". Used in tests.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) {
		f.now = now
		f.today = func() civil.Date { return civil.DateOf(now()) }
	}
}
