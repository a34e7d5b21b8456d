package utils

import "github.com/go-telegram/bot/models"

type Button struct {
	Text         string
	CallbackData string
	URL          string
}

// BuildInlineKeyboard lays buttons out perRow to a row.
func BuildInlineKeyboard(buttons []Button, perRow int) models.InlineKeyboardMarkup {
	if perRow <= 0 {
		perRow = 2
	}
	rows := make([][]models.InlineKeyboardButton, 0, (len(buttons)+perRow-1)/perRow)
	row := make([]models.InlineKeyboardButton, 0, perRow)
	for i, button := range buttons {
		if i > 0 && i%perRow == 0 {
			rows = append(rows, row)
			row = make([]models.InlineKeyboardButton, 0, perRow)
		}
		row = append(row, models.InlineKeyboardButton{
			Text:         button.Text,
			CallbackData: button.CallbackData,
			URL:          button.URL,
		})
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}
