package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/iabalyuk/advisorbot/conversation"
	"github.com/iabalyuk/advisorbot/worker"
	"github.com/rs/zerolog"
)

// Sender is the part of the Telegram API used to talk to users.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler turns a user event into replies.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event) ([]conversation.Reply, error)
}

// Metrics records handled and dropped events.
type Metrics interface {
	ObserveEvent(kind, outcome string, seconds float64)
	ObserveDropped()
}

// Bot is the Telegram front-end of the advisor directory
type Bot struct {
	api        *tgbotapi.BotAPI
	sender     Sender
	handler    Handler
	dispatcher *worker.Dispatcher
	metrics    Metrics
	log        zerolog.Logger
}

// Config holds the bot's collaborators
type Config struct {
	Token string
	// Endpoint is a Bot API URL format with token and method verbs; the
	// library default is used when empty.
	Endpoint   string
	Debug      bool
	Handler    Handler
	Dispatcher *worker.Dispatcher
	Metrics    Metrics
	Log        zerolog.Logger
}

// New connects to Telegram and creates a bot instance
func New(cfg Config) (*Bot, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = cfg.Debug

	b := newBot(api, cfg)
	b.api = api
	return b, nil
}

func newBot(sender Sender, cfg Config) *Bot {
	return &Bot{
		sender:     sender,
		handler:    cfg.Handler,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		log:        cfg.Log.With().Str("component", "bot").Logger(),
	}
}

// Start receives updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.log.Info().Str("username", b.api.Self.UserName).Msg("Bot started")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info().Msg("Stopped receiving updates")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(update)
		}
	}
}
