// Package conversation implements the per-user dialogue: main menu,
// consultation, and the psychological map questionnaire with back/home
// navigation.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"psybot/internal/generator"
	"psybot/internal/models"
	"psybot/internal/questionnaire"
	"psybot/internal/ratelimit"
	"psybot/internal/repository"
)

// Sender delivers a reply to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply models.Reply) error
}

// AdminNotifier fans a message out to every configured admin.
type AdminNotifier interface {
	Notify(ctx context.Context, reply models.Reply)
}

// Submitter hands a finished questionnaire over to moderation.
type Submitter interface {
	Enqueue(ctx context.Context, userID int64, username string, draft models.SubmissionDraft) (string, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Store     repository.Store
	Generator generator.Generator
	Limiter   ratelimit.Limiter
	Sender    Sender
	Admins    AdminNotifier
	Submitter Submitter
	Catalog   *questionnaire.Catalog
}

// Engine runs conversation turns. It keeps no per-user state of its own;
// the caller must not run two turns of the same user concurrently.
type Engine struct {
	store     repository.Store
	gen       generator.Generator
	limiter   ratelimit.Limiter
	sender    Sender
	admins    AdminNotifier
	submitter Submitter
	catalog   *questionnaire.Catalog
	timeout   time.Duration
	logger    *zap.Logger
}

// NewEngine wires an Engine. timeout bounds every generation call.
func NewEngine(deps Deps, timeout time.Duration, logger *zap.Logger) *Engine {
	if deps.Catalog == nil {
		deps.Catalog = questionnaire.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{
		store:     deps.Store,
		gen:       deps.Generator,
		limiter:   deps.Limiter,
		sender:    deps.Sender,
		admins:    deps.Admins,
		submitter: deps.Submitter,
		catalog:   deps.Catalog,
		timeout:   timeout,
		logger:    logger,
	}
}

// turn is the working copy of one update being handled.
type turn struct {
	in      Input
	rec     *models.UserRecord
	m       *machine
	replies []models.Reply
	logger  *zap.Logger
}

func (t *turn) reply(r models.Reply) {
	t.replies = append(t.replies, r)
}

// Handle processes one inbound update. The new state is persisted before
// any reply is sent; if persisting fails the stored state is left as it
// was and the user gets an apology.
func (e *Engine) Handle(ctx context.Context, in Input) error {
	logger := e.logger.With(
		zap.String("turn_id", uuid.NewString()),
		zap.Int64("user_id", in.UserID))

	stored, err := e.store.GetUser(ctx, in.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		stored = models.NewUserRecord(in.UserID)
	case err != nil:
		logger.Error("Failed to load user", zap.Error(err))
		e.send(ctx, logger, in.ChatID, models.TextReply(textStoreFailed))
		return fmt.Errorf("load user %d: %w", in.UserID, err)
	}

	rec := stored.Clone()
	if !rec.State.Valid() {
		logger.Warn("Stored state is unknown, resetting", zap.String("state", string(rec.State)))
		rec.State = models.StateMenu
	}
	if in.Username != "" {
		rec.Username = in.Username
	}

	t := &turn{in: in, rec: rec, m: newMachine(rec), logger: logger}
	from := rec.State

	if err := e.step(ctx, t); err != nil {
		logger.Error("Turn failed", zap.String("state", string(from)), zap.Error(err))
		e.send(ctx, logger, in.ChatID, models.TextReply(textStoreFailed))
		return err
	}

	rec.UpdatedAt = time.Now().UTC()
	if err := e.store.SaveUser(ctx, rec); err != nil {
		logger.Error("Failed to persist user", zap.Error(err))
		e.send(ctx, logger, in.ChatID, models.TextReply(textStoreFailed))
		return fmt.Errorf("save user %d: %w", in.UserID, err)
	}

	if from != rec.State {
		logger.Info("State changed",
			zap.String("from", string(from)),
			zap.String("to", string(rec.State)))
	}

	for _, r := range t.replies {
		e.send(ctx, logger, in.ChatID, r)
	}
	return nil
}

// step dispatches the input to the handler of the current state. The
// returned error is reserved for store failures.
func (e *Engine) step(ctx context.Context, t *turn) error {
	if t.in.NonText {
		t.reply(models.TextReply(textNonText))
		return nil
	}

	switch classify(t.in.Text) {
	case cmdStart:
		t.m.reset()
		t.reply(menuReply(textWelcome))
		return nil
	case cmdHelp:
		t.reply(models.TextReply(textHelp))
		return nil
	case cmdHome:
		if err := t.m.fire(ctx, evHome); err != nil {
			return err
		}
		t.reply(menuReply(textMenu))
		return nil
	case cmdBack:
		prev := t.m.back()
		t.logger.Debug("Navigated back", zap.String("to", string(prev)))
		return e.enter(t, prev)
	case cmdUnknown:
		t.reply(models.TextReply(textUnknownCmd))
		return nil
	}

	switch t.rec.State {
	case models.StateMenu:
		return e.handleMenu(ctx, t)
	case models.StateConsult:
		return e.handleConsult(ctx, t)
	case models.StateMapSelect:
		return e.handleMapSelect(ctx, t)
	case models.StateMapType:
		return e.handleMapType(ctx, t)
	case models.StateMapQuestions:
		return e.handleMapQuestions(ctx, t)
	default:
		return e.contextLost(t)
	}
}

func (e *Engine) contextLost(t *turn) error {
	t.logger.Warn("Session context lost", zap.String("state", string(t.rec.State)))
	t.m.reset()
	t.reply(models.Reply{Text: textContextLost, Keyboard: mainKeyboard()})
	return nil
}

func (e *Engine) send(ctx context.Context, logger *zap.Logger, chatID int64, r models.Reply) {
	if err := e.sender.Send(ctx, chatID, r); err != nil {
		logger.Error("Failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
