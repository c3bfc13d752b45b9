// Package repository persists user conversation records and submissions.
package repository

import (
	"context"
	"errors"
	"fmt"

	"psybot/internal/models"
)

var (
	// ErrNotFound is returned when a user or submission does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSubmission is returned for drafts whose answers do not
	// line up with their questions.
	ErrInvalidSubmission = errors.New("invalid submission")
)

// Store is the persistent store for users and submissions. Every mutating
// call is durable before it returns.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*models.UserRecord, error)
	SaveUser(ctx context.Context, rec *models.UserRecord) error

	GetState(ctx context.Context, userID int64) (models.State, bool, error)
	SetState(ctx context.Context, userID int64, state models.State) error

	SaveSubmission(ctx context.Context, userID int64, draft models.SubmissionDraft) (string, error)
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	ListPendingSubmissions(ctx context.Context) ([]*models.Submission, error)
	ListUserSubmissions(ctx context.Context, userID int64) ([]*models.Submission, error)
	// SetSubmissionStatus moves a pending submission to a final status.
	// It reports whether the status changed; unknown ids and already
	// decided submissions are left untouched.
	SetSubmissionStatus(ctx context.Context, id string, status models.SubmissionStatus) (bool, error)

	Close() error
}

func submissionID(userID, seq int64) string {
	return fmt.Sprintf("map_%d_%d", userID, seq)
}

func validateDraft(draft models.SubmissionDraft) error {
	if len(draft.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidSubmission)
	}
	if len(draft.Questions) != len(draft.Answers) {
		return fmt.Errorf("%w: %d answers for %d questions", ErrInvalidSubmission, len(draft.Answers), len(draft.Questions))
	}
	if !draft.Variant.Valid() {
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidSubmission, draft.Variant)
	}
	return nil
}

func validateDecision(status models.SubmissionStatus) error {
	if status != models.StatusApproved && status != models.StatusRejected {
		return fmt.Errorf("invalid decision status %q", status)
	}
	return nil
}

func cloneSubmission(s *models.Submission) *models.Submission {
	c := *s
	c.Questions = append([]string(nil), s.Questions...)
	c.Answers = append([]string(nil), s.Answers...)
	if s.DecidedAt != nil {
		t := *s.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}
