package openalgo

import (
	_ "github.com/mailru/easyjson/gen"
)

//go:generate go install github.com/mailru/easyjson/...@v0.7.7
//go:generate easyjson -all -snake_case $GOFILE

// HistoryBar is one raw candle record from the history API. Timestamp is
// epoch seconds as supplied by the server; interpretation (intraday vs.
// daily) is up to the caller, the server does not tag it.
type HistoryBar struct {
	Timestamp    int64   `json:"timestamp"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Close        float64 `json:"close"`
	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"oi"`
}

// Quote is a real-time market quote.
type Quote struct {
	Symbol       string  `json:"symbol"`
	Exchange     string  `json:"exchange"`
	LTP          float64 `json:"ltp"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	PrevClose    float64 `json:"prev_close"`
	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"oi"`
}

// APIError wraps the status and message supplied by the OpenAlgo API in
// case of an error.
type APIError struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Status
}
