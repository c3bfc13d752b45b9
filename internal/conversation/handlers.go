package conversation

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"psybot/internal/generator"
	"psybot/internal/models"
)

// enter re-renders the prompt of state, used after navigating back.
func (e *Engine) enter(t *turn, state models.State) error {
	s := &t.rec.Session
	switch state {
	case models.StateMenu:
		t.reply(menuReply(textMenu))
	case models.StateConsult:
		t.reply(models.Reply{Text: textConsultPrompt, Keyboard: navKeyboard()})
	case models.StateMapSelect:
		t.reply(models.Reply{Text: textTopicPrompt, Keyboard: topicKeyboard(e.catalog)})
	case models.StateMapType:
		topic, ok := e.catalog.Topic(s.TopicID)
		if !ok {
			return e.contextLost(t)
		}
		t.reply(models.Reply{Text: typePrompt(topic.Title), Keyboard: variantKeyboard()})
	case models.StateMapQuestions:
		if !s.HasQuestionnaire() {
			return e.contextLost(t)
		}
		t.reply(models.Reply{
			Text:     questionLabel(s.CurrentIndex, len(s.Questions), s.Questions[s.CurrentIndex]),
			Keyboard: navKeyboard(),
		})
	default:
		return e.contextLost(t)
	}
	return nil
}

func typePrompt(topicTitle string) string {
	return fmt.Sprintf("Тема: %s\n\n%s", topicTitle, textTypePrompt)
}

func (e *Engine) handleMenu(ctx context.Context, t *turn) error {
	switch parseMenuChoice(t.in.Text) {
	case choiceConsult:
		if err := t.m.fire(ctx, evConsult); err != nil {
			return err
		}
		t.reply(models.Reply{Text: textConsultPrompt, Keyboard: navKeyboard()})
	case choiceMap:
		if err := t.m.fire(ctx, evMap); err != nil {
			return err
		}
		t.reply(models.Reply{Text: textTopicPrompt, Keyboard: topicKeyboard(e.catalog)})
	default:
		t.reply(menuReply(textMenuInvalid))
	}
	return nil
}

func (e *Engine) handleConsult(ctx context.Context, t *turn) error {
	question := strings.TrimSpace(t.in.Text)
	if question == "" {
		t.reply(models.Reply{Text: textConsultEmpty, Keyboard: navKeyboard()})
		return nil
	}

	allowed, wait, err := e.limiter.Allow(ctx, t.in.UserID)
	if err != nil {
		// a broken limiter backend must not lock users out
		t.logger.Error("Rate limiter failed, allowing request", zap.Error(err))
		allowed = true
	}
	if !allowed {
		t.logger.Info("Consultation rate limited", zap.Duration("wait", wait))
		if err := t.m.fire(ctx, evConsultDone); err != nil {
			return err
		}
		t.reply(menuReply(textRateLimited(waitSeconds(wait))))
		return nil
	}

	e.admins.Notify(ctx, models.Reply{Text: consultNotice(t.in, question), HTML: true})
	e.send(ctx, t.logger, t.in.ChatID, models.Reply{Text: textConsultWait, RemoveKeyboard: true})

	answer, err := e.consult(ctx, question)
	if err != nil {
		t.logger.Error("Consultation failed", zap.Error(err))
		answer = textConsultFailed
	}

	if err := t.m.fire(ctx, evConsultDone); err != nil {
		return err
	}
	t.reply(menuReply(answer))
	return nil
}

func (e *Engine) consult(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.gen.Consult(ctx, question)
}

func waitSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func (e *Engine) handleMapSelect(ctx context.Context, t *turn) error {
	topic, ok := e.catalog.ParseSelection(t.in.Text)
	if !ok {
		t.reply(models.Reply{Text: textTopicInvalid, Keyboard: topicKeyboard(e.catalog)})
		return nil
	}

	s := &t.rec.Session
	if s.TopicID != topic.ID {
		s.ResetQuestionnaire()
		s.TopicID = topic.ID
	}
	if err := t.m.fire(ctx, evSelectTopic); err != nil {
		return err
	}
	t.reply(models.Reply{Text: typePrompt(topic.Title), Keyboard: variantKeyboard()})
	return nil
}

func (e *Engine) handleMapType(ctx context.Context, t *turn) error {
	s := &t.rec.Session
	topic, ok := e.catalog.Topic(s.TopicID)
	if !ok {
		return e.contextLost(t)
	}

	variant, ok := parseVariant(t.in.Text)
	if !ok {
		t.reply(models.Reply{Text: textTypeInvalid, Keyboard: variantKeyboard()})
		return nil
	}

	// Same questionnaire as before going back: continue where the user stopped.
	resume := s.Variant == variant && s.HasQuestionnaire()
	if !resume {
		s.ResetQuestionnaire()
		s.TopicID = topic.ID
		s.Variant = variant
		s.Questions = topic.Questions(variant)
		s.Answers = []string{}
		s.CurrentIndex = 0
	}
	if len(s.Questions) == 0 {
		return e.contextLost(t)
	}

	if err := t.m.fire(ctx, evSelectVariant); err != nil {
		return err
	}

	text := textQuestionnaireIntro(len(s.Questions), s.Questions[0])
	if resume {
		text = questionLabel(s.CurrentIndex, len(s.Questions), s.Questions[s.CurrentIndex])
	}
	t.reply(models.Reply{Text: text, Keyboard: navKeyboard()})
	return nil
}

func (e *Engine) handleMapQuestions(ctx context.Context, t *turn) error {
	s := &t.rec.Session
	if !s.HasQuestionnaire() {
		return e.contextLost(t)
	}

	answer := strings.TrimSpace(t.in.Text)
	if answer == "" {
		t.reply(models.Reply{
			Text:     textAnswerEmpty + "\n\n" + s.Questions[s.CurrentIndex],
			Keyboard: navKeyboard(),
		})
		return nil
	}

	s.Answers = append(s.Answers, answer)
	s.CurrentIndex++
	if s.CurrentIndex < len(s.Questions) {
		t.reply(models.Reply{
			Text:     questionLabel(s.CurrentIndex, len(s.Questions), s.Questions[s.CurrentIndex]),
			Keyboard: navKeyboard(),
		})
		return nil
	}

	return e.submit(ctx, t)
}

// submit generates the map for a completed questionnaire and hands it to
// moderation.
func (e *Engine) submit(ctx context.Context, t *turn) error {
	s := &t.rec.Session
	topic, _ := e.catalog.Topic(s.TopicID)

	draft := models.SubmissionDraft{
		Variant:    s.Variant,
		TopicID:    s.TopicID,
		TopicTitle: topic.Title,
		Questions:  append([]string(nil), s.Questions...),
		Answers:    append([]string(nil), s.Answers...),
	}

	if id, ok := e.queuedDuplicate(ctx, t, draft); ok {
		t.logger.Info("Submission already queued, not enqueuing again",
			zap.String("submission_id", id))
	} else {
		e.send(ctx, t.logger, t.in.ChatID, models.Reply{Text: textMapWait, RemoveKeyboard: true})

		text, err := e.generateMap(ctx, draft)
		if err != nil {
			t.logger.Error("Map generation failed", zap.Error(err))
			if err := t.m.fire(ctx, evSubmit); err != nil {
				return err
			}
			t.reply(menuReply(textMapFailed))
			return nil
		}
		draft.GeneratedText = text

		id, err := e.submitter.Enqueue(ctx, t.in.UserID, t.rec.Username, draft)
		if err != nil {
			return fmt.Errorf("enqueue submission: %w", err)
		}
		t.logger.Info("Submission queued for moderation",
			zap.String("submission_id", id),
			zap.String("variant", string(draft.Variant)),
			zap.String("topic_id", draft.TopicID))
	}

	if err := t.m.fire(ctx, evSubmit); err != nil {
		return err
	}
	t.reply(menuReply(textMapSent))
	return nil
}

// queuedDuplicate finds a pending submission of the user with the same
// questionnaire and answers. It exists when an earlier turn enqueued the map
// but could not save the session, and the user sent the last answer again.
func (e *Engine) queuedDuplicate(ctx context.Context, t *turn, draft models.SubmissionDraft) (string, bool) {
	subs, err := e.store.ListUserSubmissions(ctx, t.in.UserID)
	if err != nil {
		t.logger.Warn("Failed to look up earlier submissions", zap.Error(err))
		return "", false
	}
	for i := len(subs) - 1; i >= 0; i-- {
		sub := subs[i]
		if sub.Status == models.StatusPending &&
			sub.Variant == draft.Variant &&
			sub.TopicID == draft.TopicID &&
			slices.Equal(sub.Answers, draft.Answers) &&
			slices.Equal(sub.Questions, draft.Questions) {
			return sub.ID, true
		}
	}
	return "", false
}

func (e *Engine) generateMap(ctx context.Context, draft models.SubmissionDraft) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.gen.GenerateMap(ctx, generator.MapRequest{
		Questions: draft.Questions,
		Answers:   draft.Answers,
		Variant:   draft.Variant,
		Topic:     draft.TopicTitle,
	})
}
