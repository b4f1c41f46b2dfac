package service

import (
	"unicode/utf8"

	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
)

// Sizer measures one turn against the history budget.
type Sizer func(domain.Turn) int

// CharSize counts the runes of the user and bot text.
func CharSize(t domain.Turn) int {
	return utf8.RuneCountInString(t.User) + utf8.RuneCountInString(t.Bot)
}

// ApproxTokenSize estimates tokens as a quarter of the runes plus a fixed per-turn overhead.
func ApproxTokenSize(t domain.Turn) int {
	return CharSize(t)/4 + 10
}

// SizerFor maps a HISTORY_SIZE_METRIC value to its Sizer. Unknown metrics fall back to CharSize.
func SizerFor(metric string) Sizer {
	if metric == config.SizeMetricTokens {
		return ApproxTokenSize
	}
	return CharSize
}

// TrimHistory drops turns from the front until the total size fits budget.
// The newest turn is always kept, even when it alone exceeds budget.
// A budget <= 0 disables trimming. The returned slice shares turns' backing array.
func TrimHistory(turns []domain.Turn, budget int, size Sizer) ([]domain.Turn, int) {
	if budget <= 0 || len(turns) == 0 {
		return turns, 0
	}
	if size == nil {
		size = CharSize
	}

	total := 0
	for _, t := range turns {
		total += size(t)
	}

	// Older turns are dropped even when the newest one alone is over budget,
	// so only that single turn can ever exceed it.
	start := 0
	for total > budget && start < len(turns)-1 {
		total -= size(turns[start])
		start++
	}
	return turns[start:], start
}
