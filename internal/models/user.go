package models

import "time"

// Session is the working set of an in-progress conversation.
type Session struct {
	TopicID      string   `json:"topic_id,omitempty"`
	Variant      Variant  `json:"variant,omitempty"`
	Questions    []string `json:"questions,omitempty"`
	Answers      []string `json:"answers,omitempty"`
	CurrentIndex int      `json:"current_index"`
	Nav          NavStack `json:"nav,omitempty"`
}

// HasQuestionnaire reports whether a questionnaire has been picked and
// the cursor points at a question that still needs an answer.
func (s *Session) HasQuestionnaire() bool {
	if s == nil || s.TopicID == "" || !s.Variant.Valid() || len(s.Questions) == 0 {
		return false
	}
	return s.CurrentIndex >= 0 &&
		s.CurrentIndex < len(s.Questions) &&
		len(s.Answers) == s.CurrentIndex
}

// ResetQuestionnaire drops the selected questionnaire and collected answers
// but keeps the navigation history.
func (s *Session) ResetQuestionnaire() {
	s.TopicID = ""
	s.Variant = ""
	s.Questions = nil
	s.Answers = nil
	s.CurrentIndex = 0
}

// UserRecord is the persisted conversation state of a single user.
type UserRecord struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	Username  string    `json:"username,omitempty" db:"username"`
	State     State     `json:"state" db:"state"`
	Session   Session   `json:"session_data"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewUserRecord returns a record in the initial state.
func NewUserRecord(userID int64) *UserRecord {
	now := time.Now().UTC()
	return &UserRecord{
		UserID:    userID,
		State:     StateMenu,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so that a turn can mutate it without touching
// the stored original.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	c.Session.Questions = append([]string(nil), u.Session.Questions...)
	c.Session.Answers = append([]string(nil), u.Session.Answers...)
	c.Session.Nav = append(NavStack(nil), u.Session.Nav...)
	return &c
}
