package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// LatestPrice returns the current ticker price for a symbol.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	if err := c.getJSON(ctx, c.base+"/api/v3/ticker/price?"+q.Encode(), &out); err != nil {
		return 0, fmt.Errorf("latest price %s: %w", symbol, err)
	}
	p, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("latest price %s: bad price %q", symbol, out.Price)
	}
	return p, nil
}

// TradingSymbols returns the set of actively trading pairs with the given
// quote asset (e.g. USDT), keyed by pair symbol.
func (c *Client) TradingSymbols(ctx context.Context, quoteAsset string) (map[string]bool, error) {
	var out struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			Status     string `json:"status"`
			QuoteAsset string `json:"quoteAsset"`
		} `json:"symbols"`
	}
	if err := c.getJSON(ctx, c.base+"/api/v3/exchangeInfo", &out); err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}

	symbols := make(map[string]bool, len(out.Symbols))
	for _, s := range out.Symbols {
		if s.Status == "TRADING" && s.QuoteAsset == quoteAsset {
			symbols[s.Symbol] = true
		}
	}
	return symbols, nil
}
