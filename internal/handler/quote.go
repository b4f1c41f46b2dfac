package handler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
	tg "github.com/jishankai/sp-telegram-bot/internal/telegram"
	"golang.org/x/sync/errgroup"
)

const quoteUsage = "Usage: /quote &lt;symbol&gt;, for example <code>/quote btc</code>"

func (h *Handler) handleQuote(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	symbol := quoteSymbol(update.Message.Text)
	if symbol == "" {
		_ = tg.SendHTML(ctx, b, chatID, quoteUsage, 0)
		return
	}

	stopTyping := tg.StartTyping(ctx, b, chatID)
	defer stopTyping()

	var (
		snap   *domain.MarketSnapshot
		metric domain.QuoteMetric
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = h.market.Snapshot(gctx, symbol)
		return err
	})
	g.Go(func() error {
		metric = h.bridge.Volatility(gctx, symbol)
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrUnknownSymbol) {
			_ = tg.SendHTML(ctx, b, chatID, fmt.Sprintf("❌ Unknown symbol <b>%s</b>.", html.EscapeString(symbol)), 0)
			return
		}
		slog.Error("market snapshot", "error", err, "symbol", symbol)
		h.tgLogger.LogError(err, "/quote "+symbol)
		_ = tg.SendPlain(ctx, b, chatID, "❌ Market data is unavailable right now, please try again later.", 0)
		return
	}

	_ = tg.SendHTML(ctx, b, chatID, formatQuote(snap, metric), 0)
}

// quoteSymbol extracts the symbol argument from "/quote btc" or "/quote@bot btc".
func quoteSymbol(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return strings.ToLower(fields[1])
}

func formatQuote(snap *domain.MarketSnapshot, metric domain.QuoteMetric) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s (%s)</b>", html.EscapeString(snap.Name), html.EscapeString(strings.ToUpper(snap.Symbol)))
	if snap.Rank > 0 {
		fmt.Fprintf(&sb, " #%d", snap.Rank)
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "💵 Price: $%s (%s%% 24h)\n", snap.Price.StringFixed(2), signed(snap.Change24h.StringFixed(2)))
	fmt.Fprintf(&sb, "📈 24h High / Low: $%s / $%s\n", snap.High24h.StringFixed(2), snap.Low24h.StringFixed(2))
	fmt.Fprintf(&sb, "📊 24h Volume: $%s\n", snap.Volume.StringFixed(0))
	if snap.MarketCap.IsPositive() {
		fmt.Fprintf(&sb, "🏦 Market cap: $%s\n", snap.MarketCap.StringFixed(0))
	}
	if metric.Available() {
		fmt.Fprintf(&sb, "🌡 Volatility index: %.2f", *metric.Volatility)
	} else {
		sb.WriteString("🌡 Volatility index: n/a")
	}
	return sb.String()
}

func signed(s string) string {
	if strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}
