package models

import "time"

// Variant selects the short or the long question set of a topic.
type Variant string

const (
	VariantBasic    Variant = "basic"
	VariantExtended Variant = "extended"
)

// Valid reports whether v is a known questionnaire variant.
func (v Variant) Valid() bool {
	return v == VariantBasic || v == VariantExtended
}

// Title is the user-facing name of the variant.
func (v Variant) Title() string {
	switch v {
	case VariantBasic:
		return "Базовая"
	case VariantExtended:
		return "Расширенная"
	default:
		return string(v)
	}
}

// SubmissionStatus is the moderation status of a submission.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

// CanTransition reports whether a submission may move from s to next.
// Only pending submissions can be decided, and only once.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

// SubmissionDraft is what the conversation hands over for moderation.
type SubmissionDraft struct {
	Variant       Variant
	TopicID       string
	TopicTitle    string
	Questions     []string
	Answers       []string
	GeneratedText string
}

// Submission is a generated psychological map waiting for, or past, moderation.
type Submission struct {
	ID            string           `json:"id" db:"id"`
	Seq           int64            `json:"seq" db:"seq"`
	OwnerUserID   int64            `json:"owner_user_id" db:"owner_user_id"`
	Variant       Variant          `json:"questionnaire_variant" db:"variant"`
	TopicID       string           `json:"topic_id" db:"topic_id"`
	TopicTitle    string           `json:"topic_title,omitempty" db:"topic_title"`
	Questions     []string         `json:"questions"`
	Answers       []string         `json:"answers"`
	GeneratedText string           `json:"generated_text" db:"generated_text"`
	Status        SubmissionStatus `json:"status" db:"status"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	DecidedAt     *time.Time       `json:"decided_at,omitempty" db:"decided_at"`
}
