package openalgo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/civil"
)

// ErrUnsupportedInterval is returned for history intervals other than "1m"
// and "D". The check happens client-side before any request is made.
var ErrUnsupportedInterval = errors.New("unsupported interval: only 1m and D are available")

// ClientOpts contains options for the OpenAlgo REST client.
type ClientOpts struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RetryLimit int
	RetryDelay time.Duration
}

// Client is an OpenAlgo REST API client. It covers the endpoints the feed
// engine needs: historical candles, real-time quotes and a cheap
// connectivity probe.
type Client struct {
	opts ClientOpts

	do func(c *Client, req *http.Request) (*http.Response, error)
}

// NewClient creates a new OpenAlgo REST client using the given opts.
func NewClient(opts ClientOpts) *Client {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("OPENALGO_API_KEY")
	}
	if opts.BaseURL == "" {
		if s := os.Getenv("OPENALGO_BASE_URL"); s != "" {
			opts.BaseURL = s
		} else {
			opts.BaseURL = "http://127.0.0.1:5000"
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryLimit == 0 {
		opts.RetryLimit = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	return &Client{
		opts: opts,

		do: defaultDo,
	}
}

func defaultDo(c *Client, req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: c.opts.Timeout,
	}
	var resp *http.Response
	var err error
	for i := 0; ; i++ {
		resp, err = client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		if i >= c.opts.RetryLimit {
			break
		}
		time.Sleep(c.opts.RetryDelay)
	}

	if err = verify(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func verify(resp *http.Response) error {
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		apiErr := APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, &apiErr); err != nil {
			// If the error is not in the API's JSON format, we simply return the HTTP response
			return fmt.Errorf("HTTP %s: %s", resp.Status, body)
		}
		return &apiErr
	}
	return nil
}

// post sends body as JSON to path and decodes the response envelope into out.
func (c *Client) post(ctx context.Context, path string, body map[string]interface{}, out interface{}) error {
	body["apikey"] = c.opts.APIKey
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	resp, err := c.do(c, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

// HistoryParams is the date window for a GetHistory call. Start and End are
// inclusive calendar dates; the history API has no sub-day resolution.
type HistoryParams struct {
	Symbol   string
	Exchange string
	Interval string
	Start    civil.Date
	End      civil.Date
}

type historyResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Data    []HistoryBar `json:"data"`
}

// GetHistory returns the candles for the given symbol and window, in the
// order the server supplied them. Only the "1m" and "D" intervals exist
// upstream; anything else fails fast without a request.
func (c *Client) GetHistory(ctx context.Context, params HistoryParams) ([]HistoryBar, error) {
	if params.Interval != "1m" && params.Interval != "D" {
		return nil, ErrUnsupportedInterval
	}

	var resp historyResponse
	err := c.post(ctx, "/api/v1/history", map[string]interface{}{
		"symbol":     params.Symbol,
		"exchange":   params.Exchange,
		"interval":   params.Interval,
		"start_date": params.Start.String(),
		"end_date":   params.End.String(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, &APIError{Status: resp.Status, Message: resp.Message}
	}
	return resp.Data, nil
}

type quoteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    Quote  `json:"data"`
}

// GetQuote returns the current quote for symbol on exchange.
func (c *Client) GetQuote(ctx context.Context, symbol, exchange string) (*Quote, error) {
	var resp quoteResponse
	err := c.post(ctx, "/api/v1/quotes", map[string]interface{}{
		"symbol":   symbol,
		"exchange": exchange,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, &APIError{Status: resp.Status, Message: resp.Message}
	}
	q := resp.Data
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	if q.Exchange == "" {
		q.Exchange = exchange
	}
	return &q, nil
}

// Ping verifies that the server is reachable and the API key is accepted.
// The funds endpoint is the cheapest authenticated call the API offers.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/api/v1/funds", map[string]interface{}{}, &resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		return &APIError{Status: resp.Status, Message: resp.Message}
	}
	return nil
}
