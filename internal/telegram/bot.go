package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"psybot/internal/conversation"
	"psybot/internal/models"
	"psybot/internal/moderation"
)

// Conversation handles ordinary user updates.
type Conversation interface {
	Handle(ctx context.Context, in conversation.Input) error
}

// Moderator is the moderation queue as seen by admin commands.
type Moderator interface {
	ListPending(ctx context.Context) ([]*models.Submission, error)
	Decide(ctx context.Context, id string, decision models.SubmissionStatus) (moderation.Result, error)
}

// AdminList tells admins apart from regular users.
type AdminList interface {
	IsAdmin(userID int64) bool
}

// TokenIssuer signs admin API tokens.
type TokenIssuer interface {
	Issue(adminID int64) (string, time.Time, error)
}

// Bot is the long-polling update loop.
type Bot struct {
	client       *Client
	conversation Conversation
	moderator    Moderator
	admins       AdminList
	dispatcher   *Dispatcher
	tokens       TokenIssuer
	pollTimeout  int
	dropPending  bool
	logger       *zap.Logger
}

// Options tune the update loop.
type Options struct {
	PollTimeout int
	// DropPending skips updates that arrived while the bot was offline.
	DropPending bool
	// Tokens issues admin API tokens for /token. Nil when the API is off.
	Tokens      TokenIssuer
}

// NewBot creates the update loop around client.
func NewBot(client *Client, conv Conversation, moderator Moderator, admins AdminList, opts Options, logger *zap.Logger) *Bot {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30
	}
	return &Bot{
		client:       client,
		conversation: conv,
		moderator:    moderator,
		admins:       admins,
		dispatcher:   NewDispatcher(logger),
		tokens:       opts.Tokens,
		pollTimeout:  opts.PollTimeout,
		dropPending:  opts.DropPending,
		logger:       logger,
	}
}

// Start receives updates until ctx is cancelled, then waits for the turns
// already in progress.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	if b.dropPending {
		u.Offset = -1
	}

	updates := b.client.api.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started, waiting for updates...")

	// in-flight turns finish even after shutdown begins
	work := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.client.api.StopReceivingUpdates()
			b.dispatcher.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.dispatcher.Wait()
				return nil
			}
			b.dispatch(work, update)
		}
	}
}

// dispatch routes an update to the per-user queue of its sender.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		query := update.CallbackQuery
		b.dispatcher.Submit(ctx, query.From.ID, func(ctx context.Context) {
			b.handleCallbackQuery(ctx, query)
		})
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		b.dispatcher.Submit(ctx, msg.From.ID, func(ctx context.Context) {
			b.handleMessage(ctx, msg)
		})
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() && isAdminCommand(message.Command()) {
		b.handleAdminCommand(ctx, message)
		return
	}

	in := conversation.Input{
		UserID:   message.From.ID,
		ChatID:   message.Chat.ID,
		Username: message.From.UserName,
		Text:     message.Text,
		NonText:  message.Text == "",
	}
	if err := b.conversation.Handle(ctx, in); err != nil {
		b.logger.Error("Conversation turn failed",
			zap.Int64("user_id", in.UserID),
			zap.Error(err))
	}
}
