// Package universe selects the tracked asset set: the top market-cap coins
// from CoinGecko, filtered down to real, spot-tradable pairs on the exchange.
package universe

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ladderwatch/internal/db"
	"ladderwatch/internal/logger"
)

const geckoPageSize = 250

// stableSymbols are pegged assets with no cycle structure worth tracking.
var stableSymbols = map[string]bool{
	"usdt": true, "usdc": true, "dai": true, "busd": true, "tusd": true,
	"usdp": true, "fdusd": true, "usdd": true, "gusd": true, "frax": true,
	"usde": true, "pyusd": true, "eurc": true, "eurt": true,
}

// wrappedPrefixes mark wrapped/bridged/staked duplicates of an underlying
// asset (wbtc, weth, steth, cbeth and friends).
var wrappedPrefixes = []string{"w", "st", "cb", "r"}

var wrappedNames = []string{"wrapped", "bridged", "staked", "restaked", "liquid"}

// leverageSuffixes mark leveraged ETF-style tokens (3L/3S, UP/DOWN).
var leverageSuffixes = []string{"3l", "3s", "5l", "5s", "up", "down", "bull", "bear"}

// SymbolLister is the exchange-side view the selector needs: which pairs
// actually trade against the quote asset.
type SymbolLister interface {
	TradingSymbols(ctx context.Context, quoteAsset string) (map[string]bool, error)
}

// Selector builds the tracked universe.
type Selector struct {
	gecko    *geckoClient
	exchange SymbolLister
	quote    string
}

// Options configure a Selector. BaseURL empty means the public CoinGecko API.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Quote   string // quote asset for exchange pairs, e.g. USDT
}

// NewSelector wires the CoinGecko ranking source to the exchange validator.
func NewSelector(opts Options, exchange SymbolLister) *Selector {
	return &Selector{
		gecko:    newGeckoClient(opts.BaseURL, opts.Timeout),
		exchange: exchange,
		quote:    opts.Quote,
	}
}

// Select returns the tracked universe: the operator's extra symbols first,
// then the top-N by market cap with stablecoins, wrapped duplicates and
// leveraged tokens removed. Every survivor is validated as a trading pair on
// the exchange. extra pairs bypass the ranking and filters but not the
// tradability check; excluded is an operator blacklist of pair symbols.
func (s *Selector) Select(ctx context.Context, topN int, extra, excluded []string) ([]db.UniverseAsset, error) {
	tradable, err := s.exchange.TradingSymbols(ctx, s.quote)
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}

	blacklist := make(map[string]bool, len(excluded))
	for _, sym := range excluded {
		blacklist[strings.ToUpper(sym)] = true
	}

	var assets []db.UniverseAsset
	seen := make(map[string]bool)
	for _, sym := range extra {
		pair := strings.ToUpper(strings.TrimSpace(sym))
		if pair == "" {
			continue
		}
		if !strings.HasSuffix(pair, s.quote) {
			pair += s.quote
		}
		if seen[pair] || blacklist[pair] {
			continue
		}
		if !tradable[pair] {
			logger.Warn("Universe", fmt.Sprintf("Extra symbol %s does not trade, skipped", pair))
			continue
		}
		seen[pair] = true
		// Rank 0 sorts pinned symbols ahead of the ranked fill.
		assets = append(assets, db.UniverseAsset{Symbol: pair, Name: pair})
	}

	ranked := 0
	skipped := 0
	for page := 1; ranked < topN; page++ {
		coins, err := s.gecko.markets(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("universe page %d: %w", page, err)
		}
		if len(coins) == 0 {
			break
		}
		for _, coin := range coins {
			if ranked >= topN {
				break
			}
			if excludedCoin(coin) {
				skipped++
				continue
			}
			pair := strings.ToUpper(coin.Symbol) + s.quote
			if seen[pair] || blacklist[pair] || !tradable[pair] {
				skipped++
				continue
			}
			seen[pair] = true
			assets = append(assets, db.UniverseAsset{
				Symbol:    pair,
				Name:      coin.Name,
				Rank:      coin.MarketCapRank,
				MarketCap: coin.MarketCap,
			})
			ranked++
		}
	}

	logger.Success("Universe", fmt.Sprintf("Selected %d assets (%d filtered)", len(assets), skipped))
	return assets, nil
}

// excludedCoin applies the builtin filters: pegged, wrapped/bridged
// duplicates and leveraged tokens.
func excludedCoin(c geckoCoin) bool {
	sym := strings.ToLower(c.Symbol)
	name := strings.ToLower(c.Name)

	if stableSymbols[sym] || strings.Contains(name, "stable") {
		return true
	}
	for _, w := range wrappedNames {
		if strings.Contains(name, w) {
			return true
		}
	}
	for _, p := range wrappedPrefixes {
		base := strings.TrimPrefix(sym, p)
		if base != sym && (base == "btc" || base == "eth" || base == "sol" || base == "bnb") {
			return true
		}
	}
	for _, suf := range leverageSuffixes {
		if strings.HasSuffix(sym, suf) && len(sym) > len(suf)+1 {
			if suf == "up" || suf == "down" || suf == "bull" || suf == "bear" {
				// only treat as leverage token when the name says so
				if !strings.Contains(name, "leverag") && !strings.Contains(name, "long") && !strings.Contains(name, "short") {
					continue
				}
			}
			return true
		}
	}
	return false
}

// geckoCoin is one row of /coins/markets.
type geckoCoin struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	MarketCap     float64 `json:"market_cap"`
	MarketCapRank int     `json:"market_cap_rank"`
}

func marketsQuery(page int) url.Values {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(geckoPageSize))
	q.Set("page", strconv.Itoa(page))
	q.Set("sparkline", "false")
	return q
}
