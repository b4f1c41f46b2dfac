package config

import "time"

const (
	// History size metrics
	SizeMetricChars  = "chars"
	SizeMetricTokens = "tokens"

	// Default chat mode for new users
	DefaultChatMode = "assistant"

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// AI request timeout
	RequestTimeout = 90 * time.Second

	// Deribit JSON-RPC request ids
	DeribitAuthRequestID      = 9929
	DeribitSubscribeRequestID = 42

	// Symbol lookups are stable; keep them longer than snapshots
	SymbolCacheDuration = 24 * time.Hour

	// Market REST timeout
	MarketRequestTimeout = 15 * time.Second

	// Group member counts are refreshed at most this often per group
	GroupRefreshInterval = time.Hour

	// Health server shutdown grace period
	ShutdownTimeout = 5 * time.Second
)

// SpotPriceAssets are the CoinGecko ids posted by the spot price broadcast.
var SpotPriceAssets = []string{"bitcoin", "ethereum"}
