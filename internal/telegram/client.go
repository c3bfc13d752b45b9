// Package telegram connects the conversation engine and the moderation
// queue to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"psybot/internal/models"
)

// MaxMessageLength is Telegram's limit for one text message.
const MaxMessageLength = 4096

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client sends replies through the Bot API.
type Client struct {
	api    API
	logger *zap.Logger
}

// NewClient authorizes the bot token.
func NewClient(token string, logger *zap.Logger) (*Client, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}
	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))
	return NewClientWithAPI(botAPI, logger), nil
}

// NewClientWithAPI creates a client around an already authorized API.
func NewClientWithAPI(api API, logger *zap.Logger) *Client {
	return &Client{api: api, logger: logger}
}

// Send delivers reply to chatID. Texts longer than MaxMessageLength are
// split into several messages; keyboards go with the last one.
func (c *Client) Send(ctx context.Context, chatID int64, reply models.Reply) error {
	var chunks []string
	if reply.HTML {
		chunks = splitHTML(reply.Text, MaxMessageLength)
	} else {
		chunks = splitText(reply.Text, MaxMessageLength)
	}
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, chunk)
		if reply.HTML {
			msg.ParseMode = tgbotapi.ModeHTML
		}
		if i == len(chunks)-1 {
			if markup := replyMarkup(reply); markup != nil {
				msg.ReplyMarkup = markup
			}
		}
		if _, err := c.api.Send(msg); err != nil {
			return fmt.Errorf("send message to %d: %w", chatID, err)
		}
	}
	return nil
}

// edit replaces the text of an earlier message and drops its buttons.
func (c *Client) edit(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := c.api.Send(edit); err != nil {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

// answerCallback stops the loading indicator on an inline button.
func (c *Client) answerCallback(id, text string) {
	if _, err := c.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		c.logger.Error("Failed to send callback response", zap.Error(err))
	}
}

func replyMarkup(reply models.Reply) interface{} {
	switch {
	case len(reply.Inline) > 0:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reply.Inline))
		for _, row := range reply.Inline {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	case len(reply.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Keyboard))
		for _, row := range reply.Keyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		return kb
	case reply.RemoveKeyboard:
		return tgbotapi.NewRemoveKeyboard(true)
	default:
		return nil
	}
}

// splitText cuts text into pieces of at most limit runes, preferring
// paragraph and line boundaries.
func splitText(text string, limit int) []string {
	return split(text, limit, nil)
}

var htmlTag = regexp.MustCompile(`<(/?)([a-zA-Z-]+)[^<>]*>`)

// splitHTML splits an HTML formatted text like splitText but never inside a
// tag or an entity. Tags left open at a cut are closed at the end of the
// chunk and reopened at the start of the next one.
func splitHTML(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	// room for the closing and reopening tags
	chunks := split(text, limit-limit/8, htmlSafeCut)

	type tag struct{ open, name string }
	var open []tag
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		var b strings.Builder
		for _, t := range open {
			b.WriteString(t.open)
		}
		b.WriteString(chunk)

		for _, m := range htmlTag.FindAllStringSubmatch(chunk, -1) {
			name := strings.ToLower(m[2])
			if m[1] == "" {
				open = append(open, tag{open: m[0], name: name})
				continue
			}
			for i := len(open) - 1; i >= 0; i-- {
				if open[i].name == name {
					open = append(open[:i:i], open[i+1:]...)
					break
				}
			}
		}
		for i := len(open) - 1; i >= 0; i-- {
			b.WriteString("</" + open[i].name + ">")
		}
		out = append(out, b.String())
	}
	return out
}

// htmlSafeCut moves cut back before a tag or an entity it would tear.
func htmlSafeCut(s string, cut int) int {
	safe := cut
	if i := strings.LastIndexByte(s[:safe], '<'); i >= 0 && strings.IndexByte(s[i:safe], '>') < 0 {
		safe = i
	}
	if i := strings.LastIndexByte(s[:safe], '&'); i >= 0 && strings.IndexByte(s[i:safe], ';') < 0 {
		safe = i
	}
	if safe <= 0 {
		return cut
	}
	return safe
}

func split(text string, limit int, adjust func(s string, cut int) int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	rest := text
	for utf8.RuneCountInString(rest) > limit {
		head := string([]rune(rest)[:limit])
		cut := strings.LastIndex(head, "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(head, "\n")
		}
		if cut <= 0 {
			cut = len(head)
		}
		if adjust != nil {
			cut = adjust(head, cut)
		}
		chunks = append(chunks, strings.TrimRight(rest[:cut], "\n"))
		rest = strings.TrimLeft(rest[cut:], "\n")
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}
