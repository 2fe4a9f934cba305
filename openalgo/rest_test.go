package openalgo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockResp(body string) func(c *Client, req *http.Request) (*http.Response, error) {
	return func(c *Client, req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func mockErrResp() func(c *Client, req *http.Request) (*http.Response, error) {
	return func(c *Client, req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader(`{"status":"error","message":"internal error"}`)),
		}, nil
	}
}

func TestDefaultDo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/api/v1/history", r.URL.Path)
		fmt.Fprint(w, "test body")
	}))
	c := NewClient(ClientOpts{
		APIKey:  "testkey",
		BaseURL: ts.URL,
	})
	req, err := http.NewRequest("POST", ts.URL+"/api/v1/history", nil)
	require.NoError(t, err)
	resp, err := defaultDo(c, req)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "test body", string(b))
}

func TestDefaultDo_SuccessfulRetries(t *testing.T) {
	i := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i < 3 {
			i++
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, "success")
	}))
	c := NewClient(ClientOpts{
		BaseURL:    ts.URL,
		RetryDelay: time.Nanosecond,
	})
	req, err := http.NewRequest("POST", ts.URL, nil)
	require.NoError(t, err)
	resp, err := defaultDo(c, req)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "success", string(b))
}

func TestDefaultDo_TooManyRetries(t *testing.T) {
	i := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i < 4 {
			i++
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, "success")
	}))
	c := NewClient(ClientOpts{
		BaseURL:    ts.URL,
		RetryDelay: time.Nanosecond,
		RetryLimit: 2,
	})
	req, err := http.NewRequest("POST", ts.URL, nil)
	require.NoError(t, err)
	_, err = defaultDo(c, req)
	require.Error(t, err)
}

func TestGetHistory(t *testing.T) {
	c := NewClient(ClientOpts{APIKey: "testkey"})
	c.do = func(c *Client, req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/api/v1/history", req.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "testkey", body["apikey"])
		assert.Equal(t, "RELIANCE", body["symbol"])
		assert.Equal(t, "NSE", body["exchange"])
		assert.Equal(t, "1m", body["interval"])
		assert.Equal(t, "2024-03-01", body["start_date"])
		assert.Equal(t, "2024-03-15", body["end_date"])
		return mockResp(`{
			"status": "success",
			"data": [
				{"timestamp": 1710498540, "open": 2950, "high": 2952, "low": 2949, "close": 2951.5, "volume": 1200, "oi": 0},
				{"timestamp": 1710498600, "open": 2951.5, "high": 2953, "low": 2951, "close": 2952, "volume": 800, "oi": 0}
			]
		}`)(c, req)
	}

	got, err := c.GetHistory(context.Background(), HistoryParams{
		Symbol:   "RELIANCE",
		Exchange: "NSE",
		Interval: "1m",
		Start:    civil.Date{Year: 2024, Month: 3, Day: 1},
		End:      civil.Date{Year: 2024, Month: 3, Day: 15},
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 1710498540, got[0].Timestamp)
	assert.Equal(t, 2951.5, got[0].Close)
	assert.Equal(t, 800.0, got[1].Volume)
}

func TestGetHistoryUnsupportedInterval(t *testing.T) {
	c := NewClient(ClientOpts{APIKey: "testkey"})
	c.do = func(c *Client, req *http.Request) (*http.Response, error) {
		t.Fatal("no request should have been made")
		return nil, nil
	}

	_, err := c.GetHistory(context.Background(), HistoryParams{
		Symbol: "RELIANCE", Exchange: "NSE", Interval: "5m",
	})

	assert.ErrorIs(t, err, ErrUnsupportedInterval)
}

func TestGetHistoryAPIStatusError(t *testing.T) {
	c := NewClient(ClientOpts{APIKey: "testkey"})
	c.do = mockResp(`{"status":"error","message":"symbol not found"}`)

	_, err := c.GetHistory(context.Background(), HistoryParams{
		Symbol: "BOGUS", Exchange: "NSE", Interval: "D",
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "symbol not found", apiErr.Message)
}

func TestGetHistoryHTTPError(t *testing.T) {
	c := NewClient(ClientOpts{APIKey: "testkey"})
	c.do = mockErrResp()

	_, err := c.GetHistory(context.Background(), HistoryParams{
		Symbol: "RELIANCE", Exchange: "NSE", Interval: "D",
	})

	require.Error(t, err)
}

func TestVerifyNonJSONError(t *testing.T) {
	err := verify(&http.Response{
		Status:     "502 Bad Gateway",
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader("upstream down")),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestGetQuote(t *testing.T) {
	c := NewClient(ClientOpts{APIKey: "testkey"})
	c.do = func(c *Client, req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/api/v1/quotes", req.URL.Path)
		return mockResp(`{
			"status": "success",
			"data": {"ltp": 2951.5, "open": 2940, "high": 2953, "low": 2938, "prev_close": 2939, "volume": 120000, "oi": 0}
		}`)(c, req)
	}

	got, err := c.GetQuote(context.Background(), "RELIANCE", "NSE")

	require.NoError(t, err)
	// the server omits symbol and exchange; the client fills them in
	assert.Equal(t, "RELIANCE", got.Symbol)
	assert.Equal(t, "NSE", got.Exchange)
	assert.Equal(t, 2951.5, got.LTP)
}

func TestGetQuoteError(t *testing.T) {
	c := NewClient(ClientOpts{APIKey: "testkey"})
	c.do = mockResp(`{"status":"error","message":"invalid symbol"}`)

	_, err := c.GetQuote(context.Background(), "BOGUS", "NSE")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid symbol", apiErr.Message)
}

func TestPing(t *testing.T) {
	c := NewClient(ClientOpts{APIKey: "testkey"})
	c.do = func(c *Client, req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/api/v1/funds", req.URL.Path)
		return mockResp(`{"status":"success"}`)(c, req)
	}
	assert.NoError(t, c.Ping(context.Background()))

	c.do = mockResp(`{"status":"error","message":"invalid api key"}`)
	assert.Error(t, c.Ping(context.Background()))
}
