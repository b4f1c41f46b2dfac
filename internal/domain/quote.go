package domain

import "github.com/shopspring/decimal"

// QuoteMetric is the result of one volatility lookup. A nil Volatility means
// the venue had no live value or the lookup failed.
type QuoteMetric struct {
	Symbol     string
	Channel    string
	Volatility *float64
}

func (m QuoteMetric) Available() bool {
	return m.Volatility != nil
}

// MarketSnapshot is a USD market summary for one asset.
type MarketSnapshot struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"current_price"`
	Change24h decimal.Decimal `json:"price_change_percentage_24h"`
	High24h   decimal.Decimal `json:"high_24h"`
	Low24h    decimal.Decimal `json:"low_24h"`
	Volume    decimal.Decimal `json:"total_volume"`
	MarketCap decimal.Decimal `json:"market_cap"`
	Rank      int             `json:"market_cap_rank"`
}
