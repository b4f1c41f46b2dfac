package handler

import (
	"regexp"

	"github.com/go-telegram/bot"
	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/service"
	"github.com/jishankai/sp-telegram-bot/internal/telegram"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot      *bot.Bot
	cfg      *config.Config
	dialogs  *service.DialogService
	market   *service.MarketService
	bridge   *service.QuoteBridge
	modes    config.ChatModes
	tgLogger *telegram.TelegramLogger
	mention  *regexp.Regexp // nil when the bot username is unknown
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot         *bot.Bot
	Cfg         *config.Config
	Dialogs     *service.DialogService
	Market      *service.MarketService
	Bridge      *service.QuoteBridge
	Modes       config.ChatModes
	TgLogger    *telegram.TelegramLogger
	BotUsername string
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:      deps.Bot,
		cfg:      deps.Cfg,
		dialogs:  deps.Dialogs,
		market:   deps.Market,
		bridge:   deps.Bridge,
		modes:    deps.Modes,
		tgLogger: deps.TgLogger,
		mention:  mentionPattern(deps.BotUsername),
	}
}
