package bot

import (
	"html"
	"regexp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/iabalyuk/advisorbot/conversation"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// answerCallbackQuery sends an answer to a callback query.
func (b *Bot) answerCallbackQuery(queryID string, text string) {
	callback := tgbotapi.NewCallback(queryID, text)
	if _, err := b.sender.Request(callback); err != nil {
		b.log.Error().Err(err).Str("query_id", queryID).Msg("Error answering callback query")
	}
}

// sendReply sends reply as HTML, falling back to plain text when Telegram
// rejects the markup.
func (b *Bot) sendReply(chatID int64, reply conversation.Reply) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(reply.Buttons) > 0 {
		msg.ReplyMarkup = inlineKeyboard(reply.Buttons)
	}

	_, err := b.sender.Send(msg)
	if err == nil {
		return
	}
	b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("Error sending message as HTML, falling back to plain text")

	msg.ParseMode = ""
	msg.Text = plainText(reply.Text)
	if _, err := b.sender.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("Error sending fallback plain text message")
	}
}

// plainText strips HTML markup from s.
func plainText(s string) string {
	return html.UnescapeString(htmlTag.ReplaceAllString(s, ""))
}
