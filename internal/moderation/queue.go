// Package moderation holds generated maps until an admin approves or
// rejects them, and delivers the decision to the map's owner.
package moderation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"psybot/internal/models"
	"psybot/internal/repository"
)

// Outcome describes what a Decide call did.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyDecided Outcome = "already_decided"
	OutcomeNotFound       Outcome = "not_found"
)

// ErrInvalidDecision is returned for decisions other than approve/reject.
var ErrInvalidDecision = errors.New("decision must be approved or rejected")

const (
	textApproved = "✅ Ваша психологическая карта одобрена!\n\n"
	textRejected = "❌ Ваша психологическая карта была отклонена модератором. Попробуйте создать новую карту."
)

// Sender delivers a reply to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply models.Reply) error
}

// Notifier fans a message out to the admins.
type Notifier interface {
	Notify(ctx context.Context, reply models.Reply)
}

// Result is returned by Decide.
type Result struct {
	Outcome    Outcome
	Submission *models.Submission
	// Delivered reports whether the owner was told about the decision.
	Delivered bool
}

// Queue is the moderation queue on top of the store's submissions.
type Queue struct {
	store  repository.Store
	admins Notifier
	sender Sender
	logger *zap.Logger
}

// NewQueue creates a moderation queue backed by store.
func NewQueue(store repository.Store, admins Notifier, sender Sender, logger *zap.Logger) *Queue {
	return &Queue{store: store, admins: admins, sender: sender, logger: logger}
}

// Enqueue persists a pending submission and sends the admins its full
// transcript with approve/reject buttons. Notification failures are
// logged; the submission stays queued.
func (q *Queue) Enqueue(ctx context.Context, userID int64, username string, draft models.SubmissionDraft) (string, error) {
	id, err := q.store.SaveSubmission(ctx, userID, draft)
	if err != nil {
		return "", fmt.Errorf("save submission: %w", err)
	}

	sub, err := q.store.GetSubmission(ctx, id)
	if err != nil {
		q.logger.Error("Failed to reload submission for notification",
			zap.String("submission_id", id),
			zap.Error(err))
		return id, nil
	}

	q.admins.Notify(ctx, models.Reply{
		Text:   SubmissionNotice(sub, username),
		HTML:   true,
		Inline: DecisionButtons(id),
	})
	q.logger.Info("Submission enqueued",
		zap.String("submission_id", id),
		zap.Int64("user_id", userID))
	return id, nil
}

// ListPending returns pending submissions in insertion order.
func (q *Queue) ListPending(ctx context.Context) ([]*models.Submission, error) {
	subs, err := q.store.ListPendingSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return subs, nil
}

// Get returns one submission.
func (q *Queue) Get(ctx context.Context, id string) (*models.Submission, error) {
	return q.store.GetSubmission(ctx, id)
}

// ListByUser returns every submission of one user.
func (q *Queue) ListByUser(ctx context.Context, userID int64) ([]*models.Submission, error) {
	return q.store.ListUserSubmissions(ctx, userID)
}

// Decide applies the admin's decision. The status change is final even if
// the owner cannot be reached. Unknown and already decided submissions
// are reported through the outcome, not as errors.
func (q *Queue) Decide(ctx context.Context, id string, decision models.SubmissionStatus) (Result, error) {
	if decision != models.StatusApproved && decision != models.StatusRejected {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
	logger := q.logger.With(zap.String("submission_id", id), zap.String("decision", string(decision)))

	sub, err := q.store.GetSubmission(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn("Decision for unknown submission")
		return Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("get submission: %w", err)
	}

	changed, err := q.store.SetSubmissionStatus(ctx, id, decision)
	if err != nil {
		return Result{}, fmt.Errorf("set status: %w", err)
	}
	if !changed {
		current, err := q.store.GetSubmission(ctx, id)
		if err != nil {
			current = sub
		}
		logger.Info("Submission already decided", zap.String("status", string(current.Status)))
		return Result{Outcome: OutcomeAlreadyDecided, Submission: current}, nil
	}

	if updated, err := q.store.GetSubmission(ctx, id); err == nil {
		sub = updated
	} else {
		sub.Status = decision
	}
	logger.Info("Submission decided", zap.Int64("owner_user_id", sub.OwnerUserID))

	res := Result{Outcome: OutcomeApplied, Submission: sub}
	if err := q.sender.Send(ctx, sub.OwnerUserID, ownerNotice(sub)); err != nil {
		logger.Error("Failed to deliver decision to user",
			zap.Int64("owner_user_id", sub.OwnerUserID),
			zap.Error(err))
		return res, nil
	}
	res.Delivered = true
	return res, nil
}

func ownerNotice(sub *models.Submission) models.Reply {
	if sub.Status == models.StatusApproved {
		return models.TextReply(textApproved + sub.GeneratedText)
	}
	return models.TextReply(textRejected)
}
