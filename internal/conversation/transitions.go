package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"psybot/internal/models"
)

// Transition events. Inputs that keep the user in place (re-prompts,
// intermediate answers) are not events.
const (
	evConsult       = "consult"
	evMap           = "map"
	evConsultDone   = "consult_done"
	evSelectTopic   = "select_topic"
	evSelectVariant = "select_variant"
	evSubmit        = "submit"
	evHome          = "home"
)

var allStates = func() []string {
	s := make([]string, len(models.AllStates))
	for i, st := range models.AllStates {
		s[i] = string(st)
	}
	return s
}()

var transitionTable = fsm.Events{
	{Name: evConsult, Src: []string{string(models.StateMenu)}, Dst: string(models.StateConsult)},
	{Name: evMap, Src: []string{string(models.StateMenu)}, Dst: string(models.StateMapSelect)},
	{Name: evConsultDone, Src: []string{string(models.StateConsult)}, Dst: string(models.StateMenu)},
	{Name: evSelectTopic, Src: []string{string(models.StateMapSelect)}, Dst: string(models.StateMapType)},
	{Name: evSelectVariant, Src: []string{string(models.StateMapType)}, Dst: string(models.StateMapQuestions)},
	{Name: evSubmit, Src: []string{string(models.StateMapQuestions)}, Dst: string(models.StateMenu)},
	{Name: evHome, Src: allStates, Dst: string(models.StateMenu)},
}

// reversible events push their source state so that "back" can return to it.
var reversible = map[string]bool{
	evConsult:       true,
	evMap:           true,
	evSelectTopic:   true,
	evSelectVariant: true,
}

// machine drives one user's record through the transition table for the
// duration of a turn.
type machine struct {
	fsm *fsm.FSM
	rec *models.UserRecord
}

func newMachine(rec *models.UserRecord) *machine {
	m := &machine{rec: rec}
	m.fsm = fsm.NewFSM(
		string(rec.State),
		transitionTable,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.rec.State = models.State(e.Dst)
				if reversible[e.Event] {
					m.rec.Session.Nav.Push(models.State(e.Src))
				}
				if models.State(e.Dst) == models.StateMenu {
					m.rec.Session.Nav.Clear()
					m.rec.Session.ResetQuestionnaire()
				}
			},
		},
	)
	return m
}

// fire applies event. Going home from MENU is not an error.
func (m *machine) fire(ctx context.Context, event string) error {
	err := m.fsm.Event(ctx, event)
	if err == nil {
		return nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		m.rec.Session.Nav.Clear()
		m.rec.Session.ResetQuestionnaire()
		return nil
	}
	return fmt.Errorf("event %s from %s: %w", event, m.fsm.Current(), err)
}

// back pops the navigation stack and re-enters the popped state. Collected
// answers are kept.
func (m *machine) back() models.State {
	prev := m.rec.Session.Nav.Pop()
	for prev == m.rec.State && prev != models.StateMenu {
		prev = m.rec.Session.Nav.Pop()
	}
	m.fsm.SetState(string(prev))
	m.rec.State = prev
	if prev == models.StateMenu {
		m.rec.Session.Nav.Clear()
	}
	return prev
}

// reset forces the record back to MENU without consulting the table.
func (m *machine) reset() {
	m.fsm.SetState(string(models.StateMenu))
	m.rec.State = models.StateMenu
	m.rec.Session.Nav.Clear()
	m.rec.Session.ResetQuestionnaire()
}
