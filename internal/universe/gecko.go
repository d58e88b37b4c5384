package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultGeckoURL = "https://api.coingecko.com/api/v3"

// geckoClient is the minimal CoinGecko surface the selector needs. The free
// tier rate-limits aggressively, so every call retries with backoff.
type geckoClient struct {
	base string
	http *http.Client
}

func newGeckoClient(baseURL string, timeout time.Duration) *geckoClient {
	if baseURL == "" {
		baseURL = defaultGeckoURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &geckoClient{
		base: baseURL,
		http: &http.Client{Timeout: timeout},
	}
}

// markets fetches one page of /coins/markets ordered by market cap.
func (g *geckoClient) markets(ctx context.Context, page int) ([]geckoCoin, error) {
	url := g.base + "/coins/markets?" + marketsQuery(page).Encode()

	var coins []geckoCoin
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "ladderwatch/1.0")
		req.Header.Set("Accept", "application/json")

		resp, err := g.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			coins = coins[:0]
			return json.NewDecoder(resp.Body).Decode(&coins)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("coingecko %d", resp.StatusCode)
		default:
			body, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("coingecko %d: %s", resp.StatusCode, string(body)))
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return coins, nil
}
