package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"psybot/internal/models"
	"psybot/internal/moderation"
)

const (
	textAccessDenied  = "⛔ У вас нет прав администратора."
	textNoPending     = "Нет карт, ожидающих модерации."
	textDecideFailed  = "❌ Не удалось обработать карту. Попробуйте позже."
	textBadCallback   = "❌ Ошибка обработки запроса"
	textPendingFailed = "❌ Не удалось получить список карт."
	textAPIDisabled   = "HTTP API модерации отключён."
	textTokenPrivate  = "🔒 Токен выдаётся только в личном чате с ботом."
	textTokenFailed   = "❌ Не удалось выпустить токен."
)

const textAdminHelp = `🛠 Панель администратора

/pending - карты, ожидающие модерации
/approve <id> - одобрить карту
/reject <id> - отклонить карту
/token - токен для HTTP API модерации

Новые карты приходят сюда автоматически с кнопками «✅ Одобрить» и «❌ Отклонить».`

func isAdminCommand(cmd string) bool {
	switch cmd {
	case "admin", "pending", "approve", "reject", "token":
		return true
	default:
		return false
	}
}

func (b *Bot) handleAdminCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.admins.IsAdmin(message.From.ID) {
		b.logger.Warn("Admin command from non-admin",
			zap.Int64("user_id", message.From.ID),
			zap.String("command", message.Command()))
		b.reply(ctx, chatID, models.TextReply(textAccessDenied))
		return
	}

	switch message.Command() {
	case "admin":
		b.reply(ctx, chatID, models.TextReply(textAdminHelp))
	case "pending":
		b.sendPending(ctx, chatID)
	case "approve":
		b.decideCommand(ctx, chatID, message.CommandArguments(), models.StatusApproved)
	case "reject":
		b.decideCommand(ctx, chatID, message.CommandArguments(), models.StatusRejected)
	case "token":
		b.issueToken(ctx, message)
	}
}

func (b *Bot) issueToken(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if b.tokens == nil {
		b.reply(ctx, chatID, models.TextReply(textAPIDisabled))
		return
	}
	if !message.Chat.IsPrivate() {
		b.reply(ctx, chatID, models.TextReply(textTokenPrivate))
		return
	}

	token, expires, err := b.tokens.Issue(message.From.ID)
	if err != nil {
		b.logger.Error("Failed to issue admin token", zap.Int64("admin_id", message.From.ID), zap.Error(err))
		b.reply(ctx, chatID, models.TextReply(textTokenFailed))
		return
	}
	b.logger.Info("Issued admin API token",
		zap.Int64("admin_id", message.From.ID),
		zap.Time("expires", expires))
	b.reply(ctx, chatID, models.Reply{
		Text: fmt.Sprintf("🔑 Токен действует до %s UTC:\n\n<code>%s</code>\n\nЗаголовок: <code>Authorization: Bearer &lt;токен&gt;</code>",
			expires.UTC().Format("2006-01-02 15:04"), token),
		HTML: true,
	})
}

func (b *Bot) sendPending(ctx context.Context, chatID int64) {
	subs, err := b.moderator.ListPending(ctx)
	if err != nil {
		b.logger.Error("Failed to list pending submissions", zap.Error(err))
		b.reply(ctx, chatID, models.TextReply(textPendingFailed))
		return
	}
	if len(subs) == 0 {
		b.reply(ctx, chatID, models.TextReply(textNoPending))
		return
	}

	b.reply(ctx, chatID, models.TextReply(fmt.Sprintf("На модерации: %d", len(subs))))
	for _, sub := range subs {
		b.reply(ctx, chatID, models.Reply{
			Text:   moderation.PendingSummary(sub),
			HTML:   true,
			Inline: moderation.DecisionButtons(sub.ID),
		})
	}
}

func (b *Bot) decideCommand(ctx context.Context, chatID int64, args string, decision models.SubmissionStatus) {
	id := strings.TrimSpace(args)
	if id == "" {
		verb := "approve"
		if decision == models.StatusRejected {
			verb = "reject"
		}
		b.reply(ctx, chatID, models.TextReply(fmt.Sprintf("Использование: /%s <id карты>", verb)))
		return
	}

	res, err := b.moderator.Decide(ctx, id, decision)
	if err != nil {
		b.logger.Error("Failed to decide submission", zap.String("submission_id", id), zap.Error(err))
		b.reply(ctx, chatID, models.TextReply(textDecideFailed))
		return
	}
	b.reply(ctx, chatID, models.TextReply(moderation.DecisionSummary(res, id)))
}

// handleCallbackQuery processes the inline approve/reject buttons.
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	b.logger.Info("Received callback query",
		zap.String("data", query.Data),
		zap.Int64("user_id", query.From.ID))

	if !b.admins.IsAdmin(query.From.ID) {
		b.client.answerCallback(query.ID, textAccessDenied)
		return
	}
	b.client.answerCallback(query.ID, "")

	decision, id, ok := moderation.ParseCallback(query.Data)
	if !ok {
		b.logger.Error("Failed to parse callback data: invalid format", zap.String("data", query.Data))
		b.reply(ctx, query.From.ID, models.TextReply(textBadCallback))
		return
	}

	res, err := b.moderator.Decide(ctx, id, decision)
	if err != nil {
		b.logger.Error("Failed to decide submission", zap.String("submission_id", id), zap.Error(err))
		b.reply(ctx, query.From.ID, models.TextReply(textDecideFailed))
		return
	}

	summary := moderation.DecisionSummary(res, id)
	if query.Message == nil || query.Message.Chat == nil {
		b.reply(ctx, query.From.ID, models.TextReply(summary))
		return
	}
	// keep room for the summary within one message
	text := moderation.Preview(query.Message.Text, MaxMessageLength-300) + "\n\n" + summary
	if err := b.client.edit(query.Message.Chat.ID, query.Message.MessageID, text); err != nil {
		b.logger.Error("Failed to edit message", zap.Error(err))
		b.reply(ctx, query.From.ID, models.TextReply(summary))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, r models.Reply) {
	if err := b.client.Send(ctx, chatID, r); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
