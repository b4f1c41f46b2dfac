package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	// Language model
	OpenAIKey     string `env:"OPENAI_API_KEY,required"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`

	// Access
	AllowedUsernames []string `env:"ALLOWED_TELEGRAM_USERNAMES" envSeparator:","`

	// Dialog sessions
	NewDialogTimeout  time.Duration `env:"NEW_DIALOG_TIMEOUT" envDefault:"600s"`
	HistoryBudget     int           `env:"HISTORY_BUDGET" envDefault:"12000"`
	HistorySizeMetric string        `env:"HISTORY_SIZE_METRIC" envDefault:"chars"`
	ChatModesFile     string        `env:"CHAT_MODES_FILE"`

	// Deribit volatility bridge
	DeribitURL          string        `env:"DERIBIT_WS_URL" envDefault:"wss://test.deribit.com/ws/api/v2"`
	DeribitClientID     string        `env:"DERIBIT_CLIENT_ID"`
	DeribitClientSecret string        `env:"DERIBIT_CLIENT_SECRET"`
	DeribitTimeout      time.Duration `env:"DERIBIT_TIMEOUT" envDefault:"10s"`
	DeribitStrictAuth   bool          `env:"DERIBIT_STRICT_AUTH" envDefault:"false"`

	// Market data
	CoinGeckoURL  string        `env:"COINGECKO_URL" envDefault:"https://api.coingecko.com/api/v3"`
	RedisURL      string        `env:"REDIS_URL"`
	QuoteCacheTTL time.Duration `env:"QUOTE_CACHE_TTL" envDefault:"60s"`

	// Spot price broadcast
	SpotPriceChatID   int64         `env:"SPOT_PRICE_CHAT_ID"`
	SpotPriceInterval time.Duration `env:"SPOT_PRICE_INTERVAL" envDefault:"1h"`

	// Server
	Port int `env:"PORT" envDefault:"3000"`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Logging
	LogChatID int64  `env:"LOG_CHAT_ID"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	switch cfg.HistorySizeMetric {
	case SizeMetricChars, SizeMetricTokens:
	default:
		return nil, fmt.Errorf("parse config: unknown HISTORY_SIZE_METRIC %q", cfg.HistorySizeMetric)
	}
	return cfg, nil
}

// IsAllowed reports whether a Telegram username may talk to the bot.
// An empty allow-list admits everyone.
func (c *Config) IsAllowed(username string) bool {
	if len(c.AllowedUsernames) == 0 {
		return true
	}
	username = strings.TrimPrefix(username, "@")
	for _, u := range c.AllowedUsernames {
		if strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(u), "@"), username) {
			return true
		}
	}
	return false
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
