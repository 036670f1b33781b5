package fsrs

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Rating is the grade a learner gives a recall attempt, 1 (Again) to 4
// (Easy). The zero value is not a valid rating.
type Rating int

const (
	Again Rating = iota + 1
	Hard
	Good
	Easy
)

// Ratings holds every valid grade from Again to Easy.
var Ratings = [...]Rating{Again, Hard, Good, Easy}

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

var (
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
	_ json.Marshaler           = Rating(0)
	_ json.Unmarshaler         = (*Rating)(nil)
)

func (r Rating) IsValid() bool { return r >= Again && r <= Easy }

func (r Rating) String() string {
	if !r.IsValid() {
		return "Rating(" + strconv.Itoa(int(r)) + ")"
	}
	return ratingNames[r]
}

func gradeToRating(n int) (Rating, error) {
	if r := Rating(n); r.IsValid() {
		return r, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidRating, n)
}

// ParseRating resolves either a grade name in any letter case or the bare
// numeric grade, e.g. "good", "Good" and "3" all yield Good.
func ParseRating(s string) (Rating, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return gradeToRating(n)
	}
	for _, r := range Ratings {
		if strings.EqualFold(s, ratingNames[r]) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// MarshalJSON writes the grade name, e.g. "Good".
func (r Rating) MarshalJSON() ([]byte, error) {
	text, err := r.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON takes a grade name string or a bare number from 1 to 4.
func (r *Rating) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidRating, data)
		}
		return r.UnmarshalText([]byte(name))
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil || string(data) == "null" {
		return fmt.Errorf("%w: %s", ErrInvalidRating, data)
	}
	v, err := gradeToRating(n)
	if err != nil {
		return err
	}
	*r = v
	return nil
}
