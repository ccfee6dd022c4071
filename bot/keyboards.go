package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/iabalyuk/advisorbot/conversation"
)

// inlineKeyboard lays buttons out one per row
func inlineKeyboard(buttons []conversation.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, button := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
