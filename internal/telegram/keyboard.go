package telegram

import (
	"github.com/go-telegram/bot/models"
)

// Choice is one option of a single-select inline keyboard.
type Choice struct {
	Key   string
	Label string
}

// ChoiceKeyboard lays choices out one per row. Each button carries prefix+key as
// callback data and the current choice is marked with a check.
func ChoiceKeyboard(prefix, current string, choices ...Choice) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(choices))
	for _, c := range choices {
		label := c.Label
		if c.Key == current {
			label = "✅ " + label
		}
		rows = append(rows, []models.InlineKeyboardButton{{Text: label, CallbackData: prefix + c.Key}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
