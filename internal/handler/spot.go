package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jishankai/sp-telegram-bot/internal/config"
	tg "github.com/jishankai/sp-telegram-bot/internal/telegram"
	"github.com/shopspring/decimal"
)

// PostSpotPrices sends the current spot prices to the broadcast chat.
func (h *Handler) PostSpotPrices(ctx context.Context) error {
	prices, err := h.market.SpotPrices(ctx, config.SpotPriceAssets)
	if err != nil {
		return fmt.Errorf("post spot prices: %w", err)
	}
	if err := tg.SendHTML(ctx, h.bot, h.cfg.SpotPriceChatID, formatSpotPrices(prices, time.Now()), 0); err != nil {
		return fmt.Errorf("post spot prices: %w", err)
	}
	return nil
}

var spotTickers = map[string]string{
	"bitcoin":  "BTC",
	"ethereum": "ETH",
}

func formatSpotPrices(prices map[string]decimal.Decimal, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("🏷️ Spot Prices\n\n")
	for _, id := range config.SpotPriceAssets {
		ticker, ok := spotTickers[id]
		if !ok {
			ticker = strings.ToUpper(id)
		}
		fmt.Fprintf(&sb, "<i>%s price: $%s</i>\n", ticker, prices[id].StringFixed(2))
	}
	fmt.Fprintf(&sb, "\n<i>%s</i>", now.Format("2006-01-02 15:04"))
	return sb.String()
}
