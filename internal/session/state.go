package session

import "fmt"

// State is the top-level mode of a session.
type State int

const (
	Configuring State = iota
	Generating
	Previewing
	Editing
	Failed
)

var stateNames = [...]string{"configuring", "generating", "previewing", "editing", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// StateError is returned when a command is not valid in the current state.
type StateError struct {
	Command string
	State   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s is not allowed while %s", e.Command, e.State)
}
