package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// MarketService reads market data from the CoinGecko REST API.
type MarketService struct {
	baseURL     string
	httpClient  *http.Client
	cache       MarketCache
	snapshotTTL time.Duration
}

func NewMarketService(baseURL string, cache MarketCache, snapshotTTL time.Duration) *MarketService {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &MarketService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: config.MarketRequestTimeout},
		cache:       cache,
		snapshotTTL: snapshotTTL,
	}
}

// ResolveID maps a ticker such as "btc" to its CoinGecko id.
// Among coins sharing the ticker the best ranked one wins.
func (s *MarketService) ResolveID(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", domain.ErrEmptySymbol
	}

	key := "symbol:" + symbol
	if cached, ok := s.cache.Get(ctx, key); ok {
		return string(cached), nil
	}

	var result struct {
		Coins []struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
		} `json:"coins"`
	}
	if err := s.getJSON(ctx, "/search?query="+url.QueryEscape(symbol), &result); err != nil {
		return "", fmt.Errorf("search symbol: %w", err)
	}

	for _, c := range result.Coins {
		if strings.EqualFold(c.Symbol, symbol) {
			s.cache.Set(ctx, key, []byte(c.ID), config.SymbolCacheDuration)
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
}

// Snapshot returns the USD market summary for symbol.
func (s *MarketService) Snapshot(ctx context.Context, symbol string) (*domain.MarketSnapshot, error) {
	id, err := s.ResolveID(ctx, symbol)
	if err != nil {
		return nil, err
	}

	key := "snapshot:" + id
	if cached, ok := s.cache.Get(ctx, key); ok {
		var snap domain.MarketSnapshot
		if err := json.Unmarshal(cached, &snap); err == nil {
			return &snap, nil
		}
	}

	var rows []domain.MarketSnapshot
	q := url.Values{"vs_currency": {"usd"}, "ids": {id}}
	if err := s.getJSON(ctx, "/coins/markets?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("fetch market: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}

	snap := rows[0]
	if encoded, err := json.Marshal(snap); err == nil && s.snapshotTTL > 0 {
		s.cache.Set(ctx, key, encoded, s.snapshotTTL)
	}
	return &snap, nil
}

// SpotPrices returns USD prices keyed by CoinGecko id.
func (s *MarketService) SpotPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	var result map[string]struct {
		USD decimal.Decimal `json:"usd"`
	}
	q := url.Values{"ids": {strings.Join(ids, ",")}, "vs_currencies": {"usd"}}
	if err := s.getJSON(ctx, "/simple/price?"+q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("fetch spot prices: %w", err)
	}

	prices := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		p, ok := result[id]
		if !ok {
			return nil, fmt.Errorf("fetch spot prices: %w: %s", domain.ErrUnknownSymbol, id)
		}
		prices[id] = p.USD
	}
	return prices, nil
}

func (s *MarketService) getJSON(ctx context.Context, path string, out any) error {
	u := s.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPStatusError{StatusCode: resp.StatusCode, URL: u, Body: string(buf)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
