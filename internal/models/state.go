package models

// State is a named point of the conversation a user is currently at.
type State string

const (
	StateMenu         State = "MENU"
	StateConsult      State = "CONSULT"
	StateMapSelect    State = "MAP_SELECT"
	StateMapType      State = "MAP_TYPE"
	StateMapQuestions State = "MAP_QUESTIONS"
)

// AllStates lists every conversation state in flow order.
var AllStates = []State{
	StateMenu,
	StateConsult,
	StateMapSelect,
	StateMapType,
	StateMapQuestions,
}

// Valid reports whether s is one of the known conversation states.
func (s State) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// NavStack is the per-user history of states used by "back" and "home".
// The most recently pushed state is the last element.
type NavStack []State

// Push appends state unless it is already on top of the stack.
func (n *NavStack) Push(state State) {
	if top, ok := n.Peek(); ok && top == state {
		return
	}
	*n = append(*n, state)
}

// Pop removes and returns the most recently pushed state.
// An empty stack yields StateMenu.
func (n *NavStack) Pop() State {
	if len(*n) == 0 {
		return StateMenu
	}
	last := len(*n) - 1
	state := (*n)[last]
	*n = (*n)[:last]
	return state
}

// Peek returns the top of the stack without removing it.
func (n NavStack) Peek() (State, bool) {
	if len(n) == 0 {
		return "", false
	}
	return n[len(n)-1], true
}

// Clear drops every entry.
func (n *NavStack) Clear() {
	*n = (*n)[:0]
}

// Contains reports whether state is anywhere in the stack.
func (n NavStack) Contains(state State) bool {
	for _, s := range n {
		if s == state {
			return true
		}
	}
	return false
}
