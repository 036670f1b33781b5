package fsrs

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strings"
)

// State is where a card sits in the scheduling lifecycle. The zero value is
// New, so a freshly constructed Card needs no explicit state.
type State int

const (
	New State = iota
	Learning
	Review
	Relearning
)

var (
	_ encoding.TextMarshaler   = State(0)
	_ encoding.TextUnmarshaler = (*State)(nil)
	_ json.Marshaler           = State(0)
	_ json.Unmarshaler         = (*State)(nil)
)

// ParseState resolves a state name, ignoring case and surrounding space.
// "known" is accepted as an alias for Review, the term some card stores use.
func ParseState(name string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "new":
		return New, nil
	case "learning":
		return Learning, nil
	case "review", "known":
		return Review, nil
	case "relearning":
		return Relearning, nil
	}
	return 0, fmt.Errorf("%w: state %q", ErrInvalidInput, name)
}

// IsValid reports whether s is a known lifecycle state.
func (s State) IsValid() bool { return s >= New && s <= Relearning }

func (s State) String() string {
	switch s {
	case New:
		return "New"
	case Learning:
		return "Learning"
	case Review:
		return "Review"
	case Relearning:
		return "Relearning"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: state %d", ErrInvalidInput, int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalJSON writes the state name as a JSON string.
func (s State) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON only accepts a JSON string; numbers and null are rejected so
// a card never silently falls back to New.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil || string(data) == "null" {
		return fmt.Errorf("%w: state %s", ErrInvalidInput, data)
	}
	return s.UnmarshalText([]byte(name))
}
