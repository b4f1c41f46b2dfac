package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	sproot "github.com/jishankai/sp-telegram-bot"
	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/handler"
	"github.com/jishankai/sp-telegram-bot/internal/middleware"
	"github.com/jishankai/sp-telegram-bot/internal/repository"
	"github.com/jishankai/sp-telegram-bot/internal/server"
	"github.com/jishankai/sp-telegram-bot/internal/service"
	"github.com/jishankai/sp-telegram-bot/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(sproot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	modes, err := config.LoadChatModes(cfg.ChatModesFile)
	if err != nil {
		slog.Error("failed to load chat modes", "error", err)
		os.Exit(1)
	}

	// Initialize services
	store := repository.NewStore(pool)
	llm := service.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, service.WithOpenAIBaseURL(cfg.OpenAIBaseURL))
	dialogs := service.NewDialogService(store, llm, modes,
		service.WithIdleTimeout(cfg.NewDialogTimeout),
		service.WithHistoryBudget(cfg.HistoryBudget, service.SizerFor(cfg.HistorySizeMetric)),
	)

	checks := map[string]server.Pinger{"postgres": store}

	var cache service.MarketCache = service.NewMemoryCache()
	if cfg.RedisURL != "" {
		redisCache, err := service.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		cache = redisCache
		checks["redis"] = redisCache
	}
	market := service.NewMarketService(cfg.CoinGeckoURL, cache, cfg.QuoteCacheTTL)
	bridge := service.NewQuoteBridge(cfg.DeribitURL, cfg.DeribitClientID, cfg.DeribitClientSecret,
		service.WithBridgeTimeout(cfg.DeribitTimeout),
		service.WithStrictAuth(cfg.DeribitStrictAuth),
	)

	// Handler and logger pointers for use in closures created before the bot exists
	var h *handler.Handler
	var tgLogger *telegram.TelegramLogger

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(func(err error) { tgLogger.LogError(err, "panic") }),
			middleware.Logging(),
			middleware.Access(cfg.IsAllowed),
			middleware.UserLoader(dialogs),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.HandleDefault(ctx, b, update)
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	// Initialize telegram logger
	tgLogger = telegram.NewTelegramLogger(b, cfg.LogChatID)

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:         b,
		Cfg:         cfg,
		Dialogs:     dialogs,
		Market:      market,
		Bridge:      bridge,
		Modes:       modes,
		TgLogger:    tgLogger,
		BotUsername: me.Username,
	})

	// Register all handlers
	h.Register()

	// Register default text handler for AI messages
	b.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, h.HandleText)

	// Start health server
	if err := server.New(checks).Start(ctx, cfg.Port); err != nil {
		slog.Error("failed to start health server", "error", err)
		os.Exit(1)
	}

	// Start spot price broadcast
	if cfg.SpotPriceChatID != 0 && cfg.SpotPriceInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.SpotPriceInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := h.PostSpotPrices(ctx); err != nil {
						slog.Error("broadcast spot prices", "error", err)
						tgLogger.LogError(err, "spot price broadcast")
					}
				}
			}
		}()
	}

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	slog.Info("bot stopped gracefully")
}
