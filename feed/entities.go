package feed

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Granularity is the bar period length. Only one-minute and daily bars are
// supported by the OpenAlgo history API.
type Granularity int

const (
	Minute Granularity = iota
	Daily
)

// End-of-day marker clock fields used by charting hosts to tag daily bars.
// They are never a valid wall-clock time.
const (
	EODHour   = 31
	EODMinute = 63
)

// Interval returns the OpenAlgo interval string for the granularity.
func (g Granularity) Interval() string {
	if g == Minute {
		return "1m"
	}
	return "D"
}

func (g Granularity) String() string {
	if g == Minute {
		return "minute"
	}
	return "daily"
}

// Supported reports whether the granularity can be requested from the
// history API.
func (g Granularity) Supported() bool {
	return g == Minute || g == Daily
}

// GranularityFromPeriodicity maps a host periodicity (bar length in seconds)
// to a granularity. Hosts commonly poll with 60 for intraday and 86400 for
// daily charts; everything else is unsupported.
func GranularityFromPeriodicity(seconds int) (Granularity, bool) {
	switch seconds {
	case 60:
		return Minute, true
	case 24 * 60 * 60:
		return Daily, true
	}
	return Minute, false
}

// BarTime is a decomposed calendar timestamp at minute resolution.
//
// It is deliberately not a time.Time: upstream history records occasionally
// arrive with clock fields outside the valid range (the known defect is a
// trailing record with Hour > 23) and those values must survive decoding so
// the reconcile step can detect and drop them.
type BarTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
}

// BarTimeOf converts a time.Time to a BarTime, truncating to the minute.
func BarTimeOf(t time.Time) BarTime {
	return BarTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
	}
}

// Date returns the calendar date part.
func (t BarTime) Date() civil.Date {
	return civil.Date{Year: t.Year, Month: time.Month(t.Month), Day: t.Day}
}

// ValidClock reports whether the time-of-day fields are a real wall-clock
// time.
func (t BarTime) ValidClock() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// IsEOD reports whether the clock fields carry the daily end-of-day marker.
func (t BarTime) IsEOD() bool {
	return t.Hour == EODHour && t.Minute == EODMinute
}

// Before reports whether t is chronologically before o.
func (t BarTime) Before(o BarTime) bool {
	if t.Year != o.Year {
		return t.Year < o.Year
	}
	if t.Month != o.Month {
		return t.Month < o.Month
	}
	if t.Day != o.Day {
		return t.Day < o.Day
	}
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	return t.Minute < o.Minute
}

// Bar is one OHLCV aggregate for a fixed period.
//
// Granularity is an explicit field rather than a sentinel clock value on the
// timestamp: daily and intraday bars may coexist in one series and must
// never be compared against each other, so the tag has to be unambiguous.
type Bar struct {
	Time         BarTime
	Granularity  Granularity
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	OpenInterest float64
}

// barKey identifies a bar for duplicate detection. Daily bars compare on
// the calendar date only; the granularity is part of the key so bars of
// different granularities can never collide.
type barKey struct {
	year, month, day int
	hour, minute     int
	granularity      Granularity
}

func (b Bar) key() barKey {
	k := barKey{
		year:        b.Time.Year,
		month:       b.Time.Month,
		day:         b.Time.Day,
		granularity: b.Granularity,
	}
	if b.Granularity == Minute {
		k.hour = b.Time.Hour
		k.minute = b.Time.Minute
	}
	return k
}

// Tick is one real-time trade event from the live feed.
type Tick struct {
	Symbol   string
	Exchange string
	Price    float64
	Quantity float64
	Time     time.Time
}

// DateRange is a calendar-date window for a history request. Both ends are
// inclusive; the history API works on whole days only.
type DateRange struct {
	Start civil.Date
	End   civil.Date
}

// DefaultExchange is assumed when a ticker has no exchange suffix.
const DefaultExchange = "NSE"

// SplitTicker splits a host ticker of the form "RELIANCE-NSE" into symbol
// and exchange. A ticker without a suffix maps to DefaultExchange.
func SplitTicker(ticker string) (symbol, exchange string) {
	if i := strings.LastIndex(ticker, "-"); i >= 0 {
		return ticker[:i], ticker[i+1:]
	}
	return ticker, DefaultExchange
}

// JoinTicker is the inverse of SplitTicker.
func JoinTicker(symbol, exchange string) string {
	return symbol + "-" + exchange
}
