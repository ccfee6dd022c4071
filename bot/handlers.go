package bot

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/iabalyuk/advisorbot/conversation"
	"github.com/iabalyuk/advisorbot/model"
	"github.com/iabalyuk/advisorbot/worker"
	"github.com/rs/zerolog"
)

const textBusy = "Слишком много запросов. Подождите немного."

// inbound is an update reduced to what the conversation needs, plus the
// routing data required to answer it.
type inbound struct {
	id         string
	event      conversation.Event
	chatID     int64
	callbackID string
	received   time.Time
}

// HandleUpdate queues the update on its user's queue. Updates the bot does not
// understand are dropped.
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	in, ok := fromUpdate(update)
	if !ok {
		return
	}
	err := b.dispatcher.Submit(in.event.UserID, func(ctx context.Context) { b.process(ctx, in) })
	if err == nil {
		return
	}

	b.metrics.ObserveDropped()
	b.log.Warn().Err(err).Str("event_id", in.id).Int64("user_id", in.event.UserID).Msg("Event dropped")
	// A stopping bot stays silent; only a full queue earns the busy notice.
	if in.callbackID != "" && errors.Is(err, worker.ErrQueueFull) {
		b.answerCallbackQuery(in.callbackID, textBusy)
	}
}

// fromUpdate extracts a conversation event from a message or callback query
func fromUpdate(update tgbotapi.Update) (inbound, bool) {
	in := inbound{id: uuid.NewString(), received: time.Now()}

	switch {
	case update.Message != nil:
		message := update.Message
		if message.From == nil || message.Chat == nil {
			return in, false
		}
		in.chatID = message.Chat.ID
		in.event.UserID = message.From.ID
		if message.IsCommand() {
			in.event.Kind = conversation.EventCommand
			in.event.Payload = message.Command()
			return in, true
		}
		if message.Text == "" {
			return in, false
		}
		in.event.Kind = conversation.EventText
		in.event.Payload = message.Text
		return in, true

	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if query.From == nil {
			return in, false
		}
		in.callbackID = query.ID
		in.event.UserID = query.From.ID
		in.event.Kind = conversation.EventButton
		in.event.Payload = query.Data
		// Callbacks from inline-mode messages carry no message; answer in the private chat.
		in.chatID = query.From.ID
		if query.Message != nil && query.Message.Chat != nil {
			in.chatID = query.Message.Chat.ID
		}
		return in, true
	}
	return in, false
}

// process runs one event through the conversation and delivers the replies
func (b *Bot) process(ctx context.Context, in inbound) {
	log := b.log.With().
		Str("event_id", in.id).
		Int64("user_id", in.event.UserID).
		Stringer("kind", in.event.Kind).
		Logger()

	if in.callbackID != "" {
		b.answerCallbackQuery(in.callbackID, "")
	}

	replies, err := b.handler.Handle(ctx, in.event)
	outcome := model.Outcome(err)
	logOutcome(log, outcome, err)

	for _, reply := range replies {
		b.sendReply(in.chatID, reply)
	}
	b.metrics.ObserveEvent(in.event.Kind.String(), outcome, time.Since(in.received).Seconds())
}

func logOutcome(log zerolog.Logger, outcome string, err error) {
	var e *zerolog.Event
	switch outcome {
	case "ok":
		e = log.Debug()
	case "not_found":
		e = log.Info()
	case "protocol_error":
		e = log.Warn()
	default:
		e = log.Error()
	}
	e.Err(err).Str("outcome", outcome).Msg("Event handled")
}
