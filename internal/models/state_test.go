package models

import "testing"

func TestNavStack(t *testing.T) {
	var nav NavStack

	if got := nav.Pop(); got != StateMenu {
		t.Errorf("empty pop = %s, want MENU", got)
	}

	nav.Push(StateMenu)
	nav.Push(StateMapSelect)
	nav.Push(StateMapSelect)
	if len(nav) != 2 {
		t.Fatalf("duplicate top pushed: %v", nav)
	}
	if top, ok := nav.Peek(); !ok || top != StateMapSelect {
		t.Errorf("Peek = %s, %v", top, ok)
	}
	if !nav.Contains(StateMenu) || nav.Contains(StateMapQuestions) {
		t.Errorf("Contains wrong for %v", nav)
	}

	if got := nav.Pop(); got != StateMapSelect {
		t.Errorf("pop = %s", got)
	}
	nav.Clear()
	if len(nav) != 0 {
		t.Errorf("Clear left %v", nav)
	}
}

func TestSessionHasQuestionnaire(t *testing.T) {
	s := Session{TopicID: "career", Variant: VariantBasic, Questions: []string{"a", "b"}}
	if !s.HasQuestionnaire() {
		t.Fatal("fresh questionnaire should be valid")
	}
	s.Answers = []string{"x"}
	if s.HasQuestionnaire() {
		t.Error("answers ahead of cursor must be rejected")
	}
	s.CurrentIndex = 1
	if !s.HasQuestionnaire() {
		t.Error("cursor at 1 with one answer should be valid")
	}
	s.Answers, s.CurrentIndex = []string{"x", "y"}, 2
	if s.HasQuestionnaire() {
		t.Error("completed questionnaire has no pending question")
	}

	s.ResetQuestionnaire()
	if s.TopicID != "" || s.Answers != nil || s.CurrentIndex != 0 {
		t.Errorf("reset left %+v", s)
	}
}

func TestStatusTransitions(t *testing.T) {
	if !StatusPending.CanTransition(StatusApproved) || !StatusPending.CanTransition(StatusRejected) {
		t.Error("pending must be decidable")
	}
	for _, from := range []SubmissionStatus{StatusApproved, StatusRejected} {
		for _, to := range []SubmissionStatus{StatusPending, StatusApproved, StatusRejected} {
			if from.CanTransition(to) {
				t.Errorf("%s -> %s allowed", from, to)
			}
		}
	}
}

func TestUserRecordClone(t *testing.T) {
	rec := NewUserRecord(1)
	rec.Session.Answers = []string{"a"}
	rec.Session.Nav = NavStack{StateMenu}

	c := rec.Clone()
	c.Session.Answers[0] = "changed"
	c.Session.Nav.Push(StateMapSelect)

	if rec.Session.Answers[0] != "a" || len(rec.Session.Nav) != 1 {
		t.Errorf("clone shares memory with original: %+v", rec.Session)
	}
}
