package telegram

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// allowedTags are the HTML tags the Bot API accepts with parse_mode=HTML.
var allowedTags = map[string]bool{
	"b": true, "strong": true,
	"i": true, "em": true,
	"u": true, "ins": true,
	"s": true, "strike": true, "del": true,
	"a": true, "code": true, "pre": true,
	"span": true, "tg-spoiler": true, "tg-emoji": true,
	"blockquote": true,
}

// CanSendHTML reports whether text only uses tags Telegram understands.
// Text without markup is always sendable.
func CanSendHTML(text string) bool {
	if !strings.Contains(text, "<") {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return false
	}
	ok := true
	doc.Find("body *").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !allowedTags[goquery.NodeName(sel)] {
			ok = false
		}
		return ok
	})
	if !ok {
		return false
	}
	// head-only elements such as <title> or <meta> end up outside body
	return doc.Find("head *").Length() == 0
}

// SplitMessage splits a message into chunks of maxLen characters,
// trying to split at newlines when possible.
func SplitMessage(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if utf8.RuneCountInString(text) <= maxLen {
			parts = append(parts, text)
			break
		}

		runes := []rune(text)
		splitAt := maxLen

		chunk := string(runes[:maxLen])
		if lastNewline := strings.LastIndex(chunk, "\n"); lastNewline > 0 {
			if n := utf8.RuneCountInString(chunk[:lastNewline]); n > maxLen/2 {
				splitAt = n + 1
			}
		}

		parts = append(parts, string(runes[:splitAt]))
		text = string(runes[splitAt:])
	}

	return parts
}
