// Package exchange is the Binance spot REST collaborator: daily candle
// history, live ticker prices and the tradable-symbol list. It never makes
// trading calls; everything here is public market data.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultBaseURL = "https://api.binance.com"

// Client is a rate-limited Binance REST client.
type Client struct {
	base string
	http *http.Client
	sem  chan struct{}
}

// NewClient creates a client bounded to the given number of concurrent
// requests. Zero values pick the defaults (20 s timeout, 8 in flight).
func NewClient(baseURL string, timeout time.Duration, concurrency int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: timeout},
		sem:  make(chan struct{}, concurrency),
	}
}

// getJSON fetches a URL and decodes JSON into dst, retrying transient
// failures (429 and 5xx) with exponential backoff and jitter. Retry-After is
// honored when the exchange sends one.
func (c *Client) getJSON(ctx context.Context, url string, dst interface{}) error {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "ladderwatch/1.0")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(dst)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			waitRetryAfter(ctx, resp.Header.Get("Retry-After"))
			return fmt.Errorf("binance %d", resp.StatusCode)
		default:
			body, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("binance %d: %s", resp.StatusCode, string(body)))
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	return backoff.Retry(op, bo)
}

// waitRetryAfter sleeps for the server-requested delay, capped at 30 s so a
// hostile header cannot stall the pipeline.
func waitRetryAfter(ctx context.Context, header string) {
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return
	}
	if secs > 30 {
		secs = 30
	}
	select {
	case <-time.After(time.Duration(secs) * time.Second):
	case <-ctx.Done():
	}
}
