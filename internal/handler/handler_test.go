package handler

import (
	"testing"
	"time"

	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
	tg "github.com/jishankai/sp-telegram-bot/internal/telegram"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMentions(t *testing.T) {
	pattern := mentionPattern("signalplusbot")
	require.True(t, mentions("hey @SignalPlusBot what is iv?", pattern))
	require.False(t, mentions("hey what is iv?", pattern))
	require.False(t, mentions("ask @signalplusbotfan", pattern))
	require.False(t, mentions("@someone", mentionPattern("")))
}

func TestStripMention(t *testing.T) {
	pattern := mentionPattern("signalplusbot")
	require.Equal(t, "what is iv?", stripMention("@SignalPlusBot what is iv?", pattern))
	require.Equal(t, "explain\nskew", stripMention("explain\nskew @signalplusbot", pattern))
	require.Equal(t, "ask @signalplusbotfan too", stripMention("ask @signalplusbotfan too", pattern))
	require.Equal(t, "hi", stripMention("  hi  ", nil))
}

func TestNewCompilesMentionPatternOnce(t *testing.T) {
	h := New(Deps{BotUsername: "SignalPlusBot"})
	require.NotNil(t, h.mention)
	require.True(t, mentions("@signalplusbot hi", h.mention))

	require.Nil(t, New(Deps{}).mention)
}

func TestQuoteSymbol(t *testing.T) {
	require.Equal(t, "btc", quoteSymbol("/quote BTC"))
	require.Equal(t, "eth", quoteSymbol("/quote@SignalPlusBot  eth extra"))
	require.Equal(t, "", quoteSymbol("/quote"))
	require.Equal(t, "", quoteSymbol("/quote   "))
}

func TestFormatQuote(t *testing.T) {
	snap := &domain.MarketSnapshot{
		Symbol:    "eth",
		Name:      "Ethereum",
		Price:     decimal.RequireFromString("3120.5"),
		Change24h: decimal.RequireFromString("1.256"),
		High24h:   decimal.RequireFromString("3200"),
		Low24h:    decimal.RequireFromString("3050.1"),
		Volume:    decimal.RequireFromString("12000000000.4"),
		MarketCap: decimal.RequireFromString("375000000000.7"),
		Rank:      2,
	}
	vol := 55.123

	text := formatQuote(snap, domain.QuoteMetric{Volatility: &vol})
	require.Contains(t, text, "<b>Ethereum (ETH)</b> #2")
	require.Contains(t, text, "Price: $3120.50 (+1.26% 24h)")
	require.Contains(t, text, "$3200.00 / $3050.10")
	require.Contains(t, text, "24h Volume: $12000000000")
	require.Contains(t, text, "Market cap: $375000000001")
	require.Contains(t, text, "Volatility index: 55.12")
	require.True(t, tg.CanSendHTML(text))

	snap.Change24h = decimal.RequireFromString("-0.5")
	text = formatQuote(snap, domain.QuoteMetric{})
	require.Contains(t, text, "(-0.50% 24h)")
	require.Contains(t, text, "Volatility index: n/a")

	snap.MarketCap = decimal.Zero
	text = formatQuote(snap, domain.QuoteMetric{})
	require.NotContains(t, text, "Market cap")
}

func TestFormatSpotPrices(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 7, 0, 0, time.UTC)
	text := formatSpotPrices(map[string]decimal.Decimal{
		"bitcoin":  decimal.RequireFromString("64000.5"),
		"ethereum": decimal.RequireFromString("3120.555"),
	}, now)

	require.Equal(t, "🏷️ Spot Prices\n\n"+
		"<i>BTC price: $64000.50</i>\n"+
		"<i>ETH price: $3120.56</i>\n\n"+
		"<i>2024-03-05 09:07</i>", text)
}

func TestModeKeyboard(t *testing.T) {
	modes, err := config.LoadChatModes("")
	require.NoError(t, err)

	kb := modeKeyboard(modes, "code_assistant")
	require.Len(t, kb.InlineKeyboard, len(modes))
	require.Equal(t, modeCallbackPrefix+config.DefaultChatMode, kb.InlineKeyboard[0][0].CallbackData)

	marked := 0
	for _, row := range kb.InlineKeyboard {
		require.Len(t, row, 1)
		if row[0].CallbackData == modeCallbackPrefix+"code_assistant" {
			require.Contains(t, row[0].Text, "✅")
			marked++
		}
	}
	require.Equal(t, 1, marked)
}
