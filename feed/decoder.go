package feed

import (
	"bytes"
	"strconv"
	"time"

	"github.com/mailru/easyjson/jlexer"
	"github.com/shopspring/decimal"
)

// DecodeTick parses one text message from the live feed into a Tick.
//
// The upstream message shape is not contractually guaranteed, so parsing is
// tolerant by policy: a missing or zero quantity defaults to 1 so a trade is
// never discarded just for lacking size data, while a missing or zero price
// makes the message unusable and returns nil. Non-data messages such as
// subscription acknowledgements also return nil. DecodeTick never fails
// loudly.
//
// Event times are accepted as epoch milliseconds, epoch seconds or a
// timestamp string. Anything unparseable falls back to now() — upstream
// timestamps have historically been unreliable, and callers that trust them
// can inject a now func that panics in tests to prove the fallback is not
// taken.
func DecodeTick(data []byte, now func() time.Time) *Tick {
	if now == nil {
		now = time.Now
	}
	in := jlexer.Lexer{Data: data}
	var t Tick
	var sawTime bool

	in.Delim('{')
	decodeTickFields(&in, &t, &sawTime, now, true)
	in.Delim('}')

	if in.Error() != nil {
		return nil
	}
	if t.Symbol == "" || t.Price == 0 {
		return nil
	}
	if t.Quantity <= 0 {
		t.Quantity = 1
	}
	if t.Exchange == "" {
		t.Exchange = DefaultExchange
	}
	if !sawTime {
		t.Time = now()
	}
	return &t
}

// decodeTickFields scans the fields of one JSON object. Market data
// messages sometimes nest the quote under a "data" key, so one level of
// nesting is followed.
func decodeTickFields(in *jlexer.Lexer, t *Tick, sawTime *bool, now func() time.Time, top bool) {
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "symbol":
			t.Symbol = in.String()
		case "exchange":
			t.Exchange = in.String()
		case "ltp", "price", "last_price":
			t.Price = decodeTolerantNumber(in)
		case "ltq", "quantity", "last_quantity":
			t.Quantity = decodeTolerantNumber(in)
		case "timestamp", "ltt", "time":
			if ts, ok := parseEventTime(in.Raw()); ok {
				t.Time = ts
				*sawTime = true
			} else {
				t.Time = now()
				*sawTime = true
			}
		case "data":
			if !top {
				in.SkipRecursive()
				break
			}
			in.Delim('{')
			decodeTickFields(in, t, sawTime, now, false)
			in.Delim('}')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
}

// decodeTolerantNumber reads a numeric value that may arrive either as a
// JSON number or as a quoted string ("1234.55"). Unparseable input counts
// as zero rather than a decode error.
func decodeTolerantNumber(in *jlexer.Lexer) float64 {
	raw := in.Raw()
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// timestamp string layouts seen from the feed, tried in order
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseEventTime(raw []byte) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return time.Time{}, false
	}
	if raw[0] == '"' {
		s := string(bytes.Trim(raw, `"`))
		for _, layout := range eventTimeLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return ts, true
			}
		}
		// some feeds quote the epoch value
		raw = []byte(s)
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || v <= 0 {
		return time.Time{}, false
	}
	// values beyond the year 2200 in seconds are epoch milliseconds
	if v > 7258118400 {
		return time.UnixMilli(v), true
	}
	return time.Unix(v, 0), true
}
