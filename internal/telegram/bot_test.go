package telegram

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"

	"psybot/internal/conversation"
	"psybot/internal/middleware"
	"psybot/internal/models"
	"psybot/internal/moderation"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

type fakeConversation struct {
	mu     sync.Mutex
	inputs []conversation.Input
}

func (c *fakeConversation) Handle(_ context.Context, in conversation.Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, in)
	return nil
}

type fakeModerator struct {
	pending   []*models.Submission
	decisions []string
	result    moderation.Result
}

func (m *fakeModerator) ListPending(context.Context) ([]*models.Submission, error) {
	return m.pending, nil
}

func (m *fakeModerator) Decide(_ context.Context, id string, d models.SubmissionStatus) (moderation.Result, error) {
	m.decisions = append(m.decisions, string(d)+":"+id)
	return m.result, nil
}

type adminSet map[int64]bool

func (a adminSet) IsAdmin(id int64) bool { return a[id] }

const testAdmin int64 = 100

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *fakeConversation, *fakeModerator) {
	t.Helper()
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
	logger := zaptest.NewLogger(t)
	conv := &fakeConversation{}
	mod := &fakeModerator{}
	bot := NewBot(NewClientWithAPI(api, logger), conv, mod, adminSet{testAdmin: true}, Options{}, logger)
	return bot, api, conv, mod
}

func textMessage(from int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, UserName: "someone"},
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func TestUserMessagesReachConversation(t *testing.T) {
	bot, _, conv, _ := newTestBot(t)
	ctx := context.Background()

	bot.handleMessage(ctx, textMessage(5, "/start"))
	bot.handleMessage(ctx, &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 5},
		Chat:  &tgbotapi.Chat{ID: 5},
		Photo: []tgbotapi.PhotoSize{{FileID: "x"}},
	})

	if len(conv.inputs) != 2 {
		t.Fatalf("inputs = %d", len(conv.inputs))
	}
	if in := conv.inputs[0]; in.Text != "/start" || in.UserID != 5 || in.Username != "someone" || in.NonText {
		t.Errorf("unexpected input %+v", in)
	}
	if !conv.inputs[1].NonText {
		t.Error("photo should be marked as non-text")
	}
}

func TestAdminCommandsRequireAllowList(t *testing.T) {
	bot, api, conv, mod := newTestBot(t)

	bot.handleMessage(context.Background(), textMessage(5, "/approve map_1_1"))

	if len(mod.decisions) != 0 || len(conv.inputs) != 0 {
		t.Fatal("non-admin command must not be processed")
	}
	msgs := api.messages()
	if len(msgs) != 1 || msgs[0].Text != textAccessDenied {
		t.Fatalf("unexpected replies %+v", msgs)
	}
}

func TestTokenCommand(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	bot, api, _, _ := newTestBot(t)
	bot.tokens = middleware.NewTokenIssuer(secret, time.Hour)
	ctx := context.Background()

	bot.handleMessage(ctx, textMessage(5, "/token"))
	group := textMessage(testAdmin, "/token")
	group.Chat = &tgbotapi.Chat{ID: -1001, Type: "supergroup"}
	bot.handleMessage(ctx, group)
	bot.handleMessage(ctx, textMessage(testAdmin, "/token"))

	msgs := api.messages()
	if len(msgs) != 3 {
		t.Fatalf("replies = %d", len(msgs))
	}
	if msgs[0].Text != textAccessDenied {
		t.Errorf("non-admin got %q", msgs[0].Text)
	}
	if msgs[1].Text != textTokenPrivate || msgs[1].ChatID != -1001 {
		t.Errorf("group chat got %q", msgs[1].Text)
	}
	if msgs[2].ParseMode != tgbotapi.ModeHTML {
		t.Errorf("parse mode = %q", msgs[2].ParseMode)
	}

	text := msgs[2].Text
	start := strings.Index(text, "<code>") + len("<code>")
	end := strings.Index(text, "</code>")
	if start < len("<code>") || end < start {
		t.Fatalf("no token in %q", text)
	}
	claims := &middleware.AdminClaims{}
	if _, err := jwt.ParseWithClaims(text[start:end], claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}); err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.AdminID != testAdmin {
		t.Errorf("admin id = %d, want %d", claims.AdminID, testAdmin)
	}
}

func TestTokenCommandWithAPIDisabled(t *testing.T) {
	bot, api, _, _ := newTestBot(t)

	bot.handleMessage(context.Background(), textMessage(testAdmin, "/token"))

	msgs := api.messages()
	if len(msgs) != 1 || msgs[0].Text != textAPIDisabled {
		t.Fatalf("unexpected replies %+v", msgs)
	}
}

func TestPendingCommandListsSubmissions(t *testing.T) {
	bot, api, _, mod := newTestBot(t)
	mod.pending = []*models.Submission{
		{ID: "map_1_1", OwnerUserID: 1, Variant: models.VariantBasic, GeneratedText: "карта один", CreatedAt: time.Now()},
		{ID: "map_2_2", OwnerUserID: 2, Variant: models.VariantExtended, GeneratedText: "карта два", CreatedAt: time.Now()},
	}

	bot.handleMessage(context.Background(), textMessage(testAdmin, "/pending"))

	msgs := api.messages()
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want header + 2", len(msgs))
	}
	second := msgs[2]
	if second.ParseMode != tgbotapi.ModeHTML || !strings.Contains(second.Text, "map_2_2") {
		t.Errorf("unexpected entry %+v", second)
	}
	kb, ok := second.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || *kb.InlineKeyboard[0][1].CallbackData != "reject:map_2_2" {
		t.Errorf("missing decision buttons: %#v", second.ReplyMarkup)
	}
}

func TestApproveCommand(t *testing.T) {
	bot, api, _, mod := newTestBot(t)
	mod.result = moderation.Result{
		Outcome:    moderation.OutcomeApplied,
		Submission: &models.Submission{ID: "map_1_1", Status: models.StatusApproved},
		Delivered:  true,
	}

	bot.handleMessage(context.Background(), textMessage(testAdmin, "/approve map_1_1"))

	if len(mod.decisions) != 1 || mod.decisions[0] != "approved:map_1_1" {
		t.Fatalf("decisions = %v", mod.decisions)
	}
	msgs := api.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "одобрена") {
		t.Fatalf("unexpected replies %+v", msgs)
	}

	bot.handleMessage(context.Background(), textMessage(testAdmin, "/reject"))
	if len(mod.decisions) != 1 {
		t.Fatal("reject without id must not decide")
	}
}

func TestCallbackEditsAdminMessage(t *testing.T) {
	bot, api, _, mod := newTestBot(t)
	mod.result = moderation.Result{
		Outcome:    moderation.OutcomeApplied,
		Submission: &models.Submission{ID: "map_3_7", Status: models.StatusRejected},
		Delivered:  true,
	}

	bot.handleCallbackQuery(context.Background(), &tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: testAdmin},
		Data: "reject:map_3_7",
		Message: &tgbotapi.Message{
			MessageID: 42,
			Chat:      &tgbotapi.Chat{ID: testAdmin},
			Text:      "Новая карта map_3_7",
		},
	})

	if len(mod.decisions) != 1 || mod.decisions[0] != "rejected:map_3_7" {
		t.Fatalf("decisions = %v", mod.decisions)
	}
	edits := api.edits()
	if len(edits) != 1 || edits[0].MessageID != 42 || !strings.Contains(edits[0].Text, "отклонена") {
		t.Fatalf("unexpected edits %+v", edits)
	}
	if len(api.requests) != 1 {
		t.Errorf("callback not acknowledged")
	}
}

func TestCallbackFromNonAdminIgnored(t *testing.T) {
	bot, api, _, mod := newTestBot(t)

	bot.handleCallbackQuery(context.Background(), &tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 5},
		Data: "approve:map_1_1",
	})

	if len(mod.decisions) != 0 || len(api.edits()) != 0 {
		t.Fatal("non-admin callback must not decide")
	}
}

func TestStartDispatchesUntilCancelled(t *testing.T) {
	bot, api, conv, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- bot.Start(ctx) }()

	api.updates <- tgbotapi.Update{UpdateID: 1, Message: textMessage(8, "привет")}

	deadline := time.After(2 * time.Second)
	for {
		conv.mu.Lock()
		n := len(conv.inputs)
		conv.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("update was not handled")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestSendSplitsLongTextAndAttachesKeyboard(t *testing.T) {
	api := &fakeAPI{}
	client := NewClientWithAPI(api, zaptest.NewLogger(t))

	para := strings.Repeat("слово ", 500)
	text := para + "\n\n" + para + "\n\n" + para
	err := client.Send(context.Background(), 1, models.Reply{
		Text:     text,
		Keyboard: [][]string{{"a", "b"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	msgs := api.messages()
	if len(msgs) < 2 {
		t.Fatalf("expected split, got %d messages", len(msgs))
	}
	for i, m := range msgs {
		if n := len([]rune(m.Text)); n > MaxMessageLength {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if (m.ReplyMarkup != nil) != (i == len(msgs)-1) {
			t.Errorf("keyboard on chunk %d", i)
		}
	}
	kb, ok := msgs[len(msgs)-1].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok || len(kb.Keyboard[0]) != 2 || !kb.ResizeKeyboard {
		t.Errorf("unexpected keyboard %#v", msgs[len(msgs)-1].ReplyMarkup)
	}
}

func TestReplyMarkup(t *testing.T) {
	if _, ok := replyMarkup(models.Reply{RemoveKeyboard: true}).(tgbotapi.ReplyKeyboardRemove); !ok {
		t.Error("RemoveKeyboard should map to ReplyKeyboardRemove")
	}
	if replyMarkup(models.TextReply("x")) != nil {
		t.Error("plain reply should carry no markup")
	}
}

func TestSplitText(t *testing.T) {
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text split: %q", got)
	}
	got := splitText("aaaa\nbbbb\ncccc", 10)
	if len(got) != 2 || got[0] != "aaaa\nbbbb" || got[1] != "cccc" {
		t.Errorf("line split = %q", got)
	}
	got = splitText(strings.Repeat("x", 25), 10)
	if len(got) != 3 || got[2] != "xxxxx" {
		t.Errorf("hard split = %q", got)
	}
}

func TestSplitHTMLKeepsEntitiesAndTagsIntact(t *testing.T) {
	stripTags := func(s string) string { return htmlTag.ReplaceAllString(s, "") }
	cases := map[string]string{
		"no newlines":     "<b>" + strings.Repeat("x &amp; y &lt;z&gt; ", 30) + "</b>",
		"bold over lines": "<b>" + strings.Repeat("строка &quot;а&quot;\n", 20) + "</b>\n<code>" + strings.Repeat("&#39;", 40) + "</code>",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			const limit = 120
			chunks := splitHTML(text, limit)
			if len(chunks) < 2 {
				t.Fatalf("expected split, got %d chunks", len(chunks))
			}
			var joined strings.Builder
			for i, c := range chunks {
				if n := utf8.RuneCountInString(c); n > limit {
					t.Errorf("chunk %d has %d runes", i, n)
				}
				if strings.Count(c, "&") != len(entity.FindAllString(c, -1)) {
					t.Errorf("chunk %d tears an entity: %q", i, c)
				}
				if strings.Count(c, "<") != len(htmlTag.FindAllString(c, -1)) {
					t.Errorf("chunk %d tears a tag: %q", i, c)
				}
				for _, name := range []string{"b", "code"} {
					if strings.Count(c, "<"+name+">") != strings.Count(c, "</"+name+">") {
						t.Errorf("chunk %d leaves <%s> unbalanced: %q", i, name, c)
					}
				}
				joined.WriteString(stripTags(c))
			}
			want := strings.ReplaceAll(stripTags(text), "\n", "")
			if got := strings.ReplaceAll(joined.String(), "\n", ""); got != want {
				t.Errorf("content changed:\n got %q\nwant %q", got, want)
			}
		})
	}
}

func TestSendUsesHTMLSplitting(t *testing.T) {
	api := &fakeAPI{}
	client := NewClientWithAPI(api, zaptest.NewLogger(t))

	text := "<b>" + strings.Repeat("&lt;", 2000) + "</b>"
	if err := client.Send(context.Background(), 1, models.Reply{Text: text, HTML: true}); err != nil {
		t.Fatal(err)
	}
	msgs := api.messages()
	if len(msgs) < 2 {
		t.Fatalf("expected split, got %d messages", len(msgs))
	}
	for i, m := range msgs {
		if !strings.HasPrefix(m.Text, "<b>&lt;") || !strings.HasSuffix(m.Text, "&lt;</b>") {
			t.Errorf("chunk %d is not self-contained: %q...%q", i, m.Text[:10], m.Text[len(m.Text)-10:])
		}
	}
}

var entity = regexp.MustCompile(`&(#[0-9]+|[a-z]+);`)
