package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/iabalyuk/advisorbot/conversation"
	"github.com/iabalyuk/advisorbot/model"
	"github.com/iabalyuk/advisorbot/worker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu         sync.Mutex
	sent       []tgbotapi.MessageConfig
	callbacks  []tgbotapi.CallbackConfig
	rejectHTML bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if f.rejectHTML && msg.ParseMode == tgbotapi.ModeHTML {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.callbacks = append(f.callbacks, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeHandler struct {
	mu      sync.Mutex
	events  []conversation.Event
	replies []conversation.Reply
	err     error
	block   chan struct{} // when set, Handle waits for it to close
}

func (f *fakeHandler) Handle(_ context.Context, ev conversation.Event) ([]conversation.Reply, error) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.replies, f.err
}

type fakeMetrics struct {
	mu       sync.Mutex
	outcomes []string
	dropped  int
}

func (f *fakeMetrics) ObserveEvent(kind, outcome string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, kind+"/"+outcome)
}

func (f *fakeMetrics) ObserveDropped() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped++
}

func newTestBot(sender *fakeSender, handler *fakeHandler, metrics *fakeMetrics) (*Bot, *worker.Dispatcher) {
	d := worker.NewDispatcher(worker.DispatcherConfig{Log: zerolog.Nop()})
	d.Start(context.Background())
	b := newBot(sender, Config{Handler: handler, Dispatcher: d, Metrics: metrics, Log: zerolog.Nop()})
	return b, d
}

func commandUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func TestFromUpdate(t *testing.T) {
	in, ok := fromUpdate(commandUpdate(7, "/start"))
	require.True(t, ok)
	assert.Equal(t, conversation.Event{UserID: 7, Kind: conversation.EventCommand, Payload: "start"}, in.event)
	assert.Equal(t, int64(7), in.chatID)
	assert.NotEmpty(t, in.id)

	in, ok = fromUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 70},
		Text: "Иванов",
	}})
	require.True(t, ok)
	assert.Equal(t, conversation.EventText, in.event.Kind)
	assert.Equal(t, "Иванов", in.event.Payload)
	assert.Equal(t, int64(70), in.chatID)

	in, ok = fromUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q1",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 70}},
		Data:    "s_42",
	}})
	require.True(t, ok)
	assert.Equal(t, conversation.Event{UserID: 7, Kind: conversation.EventButton, Payload: "s_42"}, in.event)
	assert.Equal(t, "q1", in.callbackID)
	assert.Equal(t, int64(70), in.chatID)

	_, ok = fromUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 7},
	}})
	assert.False(t, ok, "messages without text are ignored")

	_, ok = fromUpdate(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestHandleUpdateSendsReplies(t *testing.T) {
	sender := &fakeSender{}
	handler := &fakeHandler{replies: []conversation.Reply{
		{Text: "<b>Главное меню</b>", Buttons: []conversation.Button{
			{Label: "A", Data: "list_advisors"},
			{Label: "B", Data: "help"},
		}},
		{Text: "без кнопок"},
	}}
	metrics := &fakeMetrics{}
	b, d := newTestBot(sender, handler, metrics)

	b.HandleUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q1",
		From:    &tgbotapi.User{ID: 5},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 5}},
		Data:    "back_to_main",
	}})
	d.Stop()

	require.Len(t, sender.callbacks, 1)
	assert.Equal(t, "q1", sender.callbacks[0].CallbackQueryID)

	require.Len(t, sender.sent, 2)
	first := sender.sent[0]
	assert.Equal(t, tgbotapi.ModeHTML, first.ParseMode)
	assert.Equal(t, int64(5), first.ChatID)
	markup, ok := first.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 1)
	assert.Equal(t, "help", *markup.InlineKeyboard[1][0].CallbackData)
	assert.Nil(t, sender.sent[1].ReplyMarkup)

	assert.Equal(t, []string{"button/ok"}, metrics.outcomes)
}

func TestHandleUpdateRecordsOutcome(t *testing.T) {
	sender := &fakeSender{}
	handler := &fakeHandler{
		replies: []conversation.Reply{{Text: "Произошла ошибка. Пожалуйста, начните сначала."}},
		err:     model.ErrProtocol,
	}
	metrics := &fakeMetrics{}
	b, d := newTestBot(sender, handler, metrics)

	b.HandleUpdate(commandUpdate(1, "/start"))
	d.Stop()

	assert.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"command/protocol_error"}, metrics.outcomes)
}

func TestSendReplyFallsBackToPlainText(t *testing.T) {
	sender := &fakeSender{rejectHTML: true}
	b := newBot(sender, Config{Log: zerolog.Nop()})

	b.sendReply(3, conversation.Reply{Text: "👤 <b>O&#39;Brien &lt;Jr&gt;</b>"})

	require.Len(t, sender.sent, 1)
	assert.Empty(t, sender.sent[0].ParseMode)
	assert.Equal(t, "👤 O'Brien <Jr>", sender.sent[0].Text)
}

func TestHandleUpdateDropsWhenStopped(t *testing.T) {
	sender := &fakeSender{}
	handler := &fakeHandler{}
	metrics := &fakeMetrics{}
	b, d := newTestBot(sender, handler, metrics)
	d.Stop()

	b.HandleUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "q9",
		From: &tgbotapi.User{ID: 5},
		Data: "help",
	}})

	assert.Equal(t, 1, metrics.dropped)
	assert.Empty(t, handler.events)
	assert.Empty(t, sender.callbacks, "a stopping bot must not ask the user to wait")
}

func TestHandleUpdateBusyWhenQueueFull(t *testing.T) {
	sender := &fakeSender{}
	release := make(chan struct{})
	handler := &fakeHandler{block: release}
	metrics := &fakeMetrics{}
	d := worker.NewDispatcher(worker.DispatcherConfig{Log: zerolog.Nop(), QueueLimit: 1})
	d.Start(context.Background())
	b := newBot(sender, Config{Handler: handler, Dispatcher: d, Metrics: metrics, Log: zerolog.Nop()})

	press := func(id string) tgbotapi.Update {
		return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   id,
			From: &tgbotapi.User{ID: 5},
			Data: "help",
		}}
	}
	b.HandleUpdate(press("q1"))
	b.HandleUpdate(press("q2"))

	close(release)
	d.Stop()

	assert.Equal(t, 1, metrics.dropped)
	var busy []string
	for _, cb := range sender.callbacks {
		if cb.Text == textBusy {
			busy = append(busy, cb.CallbackQueryID)
		}
	}
	assert.Equal(t, []string{"q2"}, busy)
	assert.Len(t, handler.events, 1)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "a & b", plainText("<i>a</i> &amp; <b>b</b>"))
	assert.Equal(t, "no markup", plainText("no markup"))
}
