package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"
)

// fakeSender records sent messages and rejects HTML when rejectHTML is set.
type fakeSender struct {
	mu         sync.Mutex
	sent       []bot.SendMessageParams
	rejectHTML bool
	fail       error
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *p)
	if f.fail != nil {
		return nil, f.fail
	}
	if f.rejectHTML && p.ParseMode == models.ParseModeHTML {
		return nil, errors.New("Bad Request: can't parse entities")
	}
	return &models.Message{ID: len(f.sent)}, nil
}

func TestCanSendHTML(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"plain text", true},
		{"<b>bold</b> and <i>italic</i>", true},
		{`<a href="https://signalplus.com">link</a>`, true},
		{"<pre><code>x := 1</code></pre>", true},
		{"<tg-spoiler>hidden</tg-spoiler>", true},
		{"<div>block</div>", false},
		{"use <br> for breaks", false},
		{"<title>x</title>", false},
		{"vector<int> v;", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CanSendHTML(tc.text), tc.text)
	}
}

func TestSplitMessage(t *testing.T) {
	require.Equal(t, []string{"short"}, SplitMessage("short", 10))

	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	parts := SplitMessage(text, 10)
	require.Equal(t, []string{strings.Repeat("a", 8) + "\n", strings.Repeat("b", 8)}, parts)

	long := strings.Repeat("я", 25)
	parts = SplitMessage(long, 10)
	require.Len(t, parts, 3)
	for _, p := range parts {
		require.LessOrEqual(t, utf8.RuneCountInString(p), 10)
	}
	require.Equal(t, long, strings.Join(parts, ""))
}

func TestSendHTML(t *testing.T) {
	s := &fakeSender{}
	require.NoError(t, SendHTML(context.Background(), s, 10, "<b>hi</b>", 7))
	require.Len(t, s.sent, 1)
	require.Equal(t, models.ParseModeHTML, s.sent[0].ParseMode)
	require.Equal(t, 7, s.sent[0].ReplyParameters.MessageID)
}

func TestSendHTML_UnsupportedTagsSentPlain(t *testing.T) {
	s := &fakeSender{}
	require.NoError(t, SendHTML(context.Background(), s, 10, "<div>x</div>", 0))
	require.Len(t, s.sent, 1)
	require.Empty(t, s.sent[0].ParseMode)
	require.Equal(t, "<div>x</div>", s.sent[0].Text)
}

func TestSendHTML_FallsBackOnRejection(t *testing.T) {
	s := &fakeSender{rejectHTML: true}
	require.NoError(t, SendHTML(context.Background(), s, 10, "<b>unclosed", 0))
	require.Len(t, s.sent, 2)
	require.Equal(t, models.ParseModeHTML, s.sent[0].ParseMode)
	require.Empty(t, s.sent[1].ParseMode)
	require.Equal(t, s.sent[0].Text, s.sent[1].Text)
}

func TestSendHTML_ReportsFailure(t *testing.T) {
	s := &fakeSender{fail: errors.New("chat not found")}
	err := SendHTML(context.Background(), s, 10, "hello", 0)
	require.ErrorContains(t, err, "chat not found")
}

func TestTelegramLogger(t *testing.T) {
	s := &fakeSender{}
	NewTelegramLogger(s, 0).LogError(errors.New("x"), "ignored")
	require.Empty(t, s.sent)

	NewTelegramLogger(s, -100).LogError(errors.New("bad <input>"), "handle message")
	require.Len(t, s.sent, 1)
	require.Equal(t, int64(-100), s.sent[0].ChatID)
	require.Contains(t, s.sent[0].Text, "bad &lt;input&gt;")
}

func TestChoiceKeyboard(t *testing.T) {
	kb := ChoiceKeyboard("mode_", "b", Choice{Key: "a", Label: "Alpha"}, Choice{Key: "b", Label: "Beta"})

	require.Len(t, kb.InlineKeyboard, 2)
	require.Equal(t, "Alpha", kb.InlineKeyboard[0][0].Text)
	require.Equal(t, "mode_a", kb.InlineKeyboard[0][0].CallbackData)
	require.Equal(t, "✅ Beta", kb.InlineKeyboard[1][0].Text)
	require.Equal(t, "mode_b", kb.InlineKeyboard[1][0].CallbackData)
}
