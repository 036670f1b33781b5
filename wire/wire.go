// Package wire defines the typed request and response contract for callers
// that reach the scheduler across a process boundary: the HTTP server and
// the command line tool both speak it.
//
// Requests are decoded strictly. Unknown fields are rejected and every
// request is validated before it reaches the engine. The current time is
// always part of the request; nothing here reads the clock.
package wire

import (
	"time"

	"github.com/sky-flux/fsrs"
)

// Config overrides the hosting process's scheduler settings for one call.
// Absent fields keep the process defaults. An explicit empty
// relearning_steps list disables relearning.
type Config struct {
	Weights          []float64 `json:"weights,omitempty" validate:"weights"`
	DesiredRetention float64   `json:"desired_retention,omitempty" validate:"omitempty,gt=0,lt=1"`
	MaximumInterval  int       `json:"maximum_interval,omitempty" validate:"omitempty,gte=1,lte=106751"`
	EnableFuzzing    *bool     `json:"enable_fuzzing,omitempty"`
	LearningSteps    []string  `json:"learning_steps,omitempty" validate:"dive,step"`
	RelearningSteps  []string  `json:"relearning_steps,omitempty" validate:"dive,step"`
}

// Request asks for one review of a card.
type Request struct {
	Card             fsrs.Card   `json:"card"`
	Rating           fsrs.Rating `json:"rating" validate:"rating"`
	Now              time.Time   `json:"now" validate:"required"`
	ReviewDurationMS *int        `json:"review_duration_ms,omitempty" validate:"omitempty,gte=0"`
	Config           *Config     `json:"config,omitempty"`
}

// Response carries the reviewed card and its log. Retrievability is the
// card's recall probability at the review time, before the review.
type Response struct {
	Card           fsrs.Card      `json:"card"`
	Log            fsrs.ReviewLog `json:"log"`
	Retrievability float64        `json:"retrievability"`
}

// PreviewRequest asks for the outcome of every rating without committing
// to one.
type PreviewRequest struct {
	Card   fsrs.Card `json:"card"`
	Now    time.Time `json:"now" validate:"required"`
	Config *Config   `json:"config,omitempty"`
}

// PreviewResponse maps each rating name to its outcome.
type PreviewResponse struct {
	Outcomes       map[string]fsrs.Outcome `json:"outcomes"`
	Retrievability float64                 `json:"retrievability"`
}

// RescheduleRequest asks for a card rebuilt from its review history.
type RescheduleRequest struct {
	Card   fsrs.Card        `json:"card"`
	Logs   []fsrs.ReviewLog `json:"logs"`
	Config *Config          `json:"config,omitempty"`
}

// RescheduleResponse carries the rebuilt card.
type RescheduleResponse struct {
	Card fsrs.Card `json:"card"`
}

// BatchRequest reviews many independent cards in one call. The cards must
// be distinct; reviews of the same card are not ordered.
type BatchRequest struct {
	Reviews []Request `json:"reviews" validate:"required,min=1"`
}

// BatchResult is the outcome of one review in a batch: exactly one of
// Response and Error is set.
type BatchResult struct {
	Index    int       `json:"index"`
	Response *Response `json:"response,omitempty"`
	Error    *Error    `json:"error,omitempty"`
}

// BatchResponse holds one result per request, in request order.
type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

// Observer receives events from a Handler. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveReview(rating fsrs.Rating, from, to fsrs.State, scheduledDays int)
	ObserveError(code Code)
	ObserveBatch(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveReview(fsrs.Rating, fsrs.State, fsrs.State, int) {}
func (nopObserver) ObserveError(Code)                                      {}
func (nopObserver) ObserveBatch(int)                                       {}
