package fsrs

import (
	"fmt"
	"time"
)

// Card represents a flashcard with its scheduling state.
type Card struct {
	ID            string     `json:"id" validate:"required"`
	State         State      `json:"state"`
	Step          *int       `json:"step"`       // nil in New and Review.
	Stability     *float64   `json:"stability"`  // nil before first review.
	Difficulty    *float64   `json:"difficulty"` // nil before first review.
	Due           time.Time  `json:"due"`
	LastReview    *time.Time `json:"last_review"` // nil before first review.
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	ElapsedDays   int        `json:"elapsed_days"`   // days since the previous review, at the last review.
	ScheduledDays int        `json:"scheduled_days"` // whole-day interval set by the last review; 0 for steps.
}

// NewCard creates a never-reviewed card that is due at now.
func NewCard(id string, now time.Time) Card {
	return Card{
		ID:    id,
		State: New,
		Due:   now,
	}
}

// MemoryState returns the card's stability and difficulty, or nil when
// either has not been set yet.
func (c Card) MemoryState() *MemoryState {
	if c.Stability == nil || c.Difficulty == nil {
		return nil
	}
	return &MemoryState{Stability: *c.Stability, Difficulty: *c.Difficulty}
}

// validate checks the fields the scheduler relies on. New cards are not
// required to carry a memory state; any they do carry is ignored.
func (c Card) validate() error {
	if !c.State.IsValid() {
		return fmt.Errorf("%w: card %q has unknown state %d", ErrInvalidInput, c.ID, int(c.State))
	}
	if c.Reps < 0 || c.Lapses < 0 {
		return fmt.Errorf("%w: card %q has negative reps or lapses", ErrInvalidInput, c.ID)
	}
	if c.State == New {
		return nil
	}
	ms := c.MemoryState()
	if ms == nil {
		return fmt.Errorf("%w: card %q in state %s has no memory state", ErrInvalidInput, c.ID, c.State)
	}
	if !isFinite(ms.Stability) || ms.Stability < StabilityMin {
		return fmt.Errorf("%w: card %q stability %v below %v", ErrInvalidInput, c.ID, ms.Stability, StabilityMin)
	}
	if !isFinite(ms.Difficulty) || ms.Difficulty < DifficultyMin || ms.Difficulty > DifficultyMax {
		return fmt.Errorf("%w: card %q difficulty %v outside [%v, %v]",
			ErrInvalidInput, c.ID, ms.Difficulty, DifficultyMin, DifficultyMax)
	}
	if c.Step != nil && *c.Step < 0 {
		return fmt.Errorf("%w: card %q has negative step %d", ErrInvalidInput, c.ID, *c.Step)
	}
	return nil
}

// clone returns a deep copy of the card. Pointer fields are copied by value.
func (c Card) clone() Card {
	out := c
	if c.Step != nil {
		v := *c.Step
		out.Step = &v
	}
	if c.Stability != nil {
		v := *c.Stability
		out.Stability = &v
	}
	if c.Difficulty != nil {
		v := *c.Difficulty
		out.Difficulty = &v
	}
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return out
}

func (c *Card) setMemoryState(ms MemoryState) {
	s, d := ms.Stability, ms.Difficulty
	c.Stability = &s
	c.Difficulty = &d
}

func (c *Card) setStep(step int) {
	c.Step = &step
}

func (c *Card) clearStep() {
	c.Step = nil
}
