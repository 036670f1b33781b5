package fsrs

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ReviewLog records a single review event for a card. It is produced by
// ReviewCard and never modified afterwards.
type ReviewLog struct {
	ID              uuid.UUID `json:"id"`
	CardID          string    `json:"card_id"`
	Rating          Rating    `json:"rating"`
	State           State     `json:"state"` // state before the review.
	Due             time.Time `json:"due"`   // due date before the review.
	ReviewDatetime  time.Time `json:"review_datetime"`
	ElapsedDays     int       `json:"elapsed_days"`
	LastElapsedDays int       `json:"last_elapsed_days"`
	ScheduledDays   int       `json:"scheduled_days"`
	Stability       float64   `json:"stability"`  // after the review.
	Difficulty      float64   `json:"difficulty"` // after the review.
	ReviewDuration  *int      `json:"review_duration,omitempty"` // milliseconds, optional.
}

// reviewLogNamespace scopes the name-based UUIDs of review logs.
var reviewLogNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("fsrs.review_log"))

// ReviewLogID returns the deterministic ID of the review of cardID with
// rating r at t. Replaying a review yields the same ID.
func ReviewLogID(cardID string, r Rating, t time.Time) uuid.UUID {
	name := make([]byte, 0, len(cardID)+24)
	name = append(name, cardID...)
	name = append(name, '|')
	name = strconv.AppendInt(name, int64(r), 10)
	name = append(name, '|')
	name = strconv.AppendInt(name, t.UnixNano(), 10)
	return uuid.NewSHA1(reviewLogNamespace, name)
}

// WithDuration returns a copy of the log carrying the review duration in
// milliseconds.
func (l ReviewLog) WithDuration(ms int) ReviewLog {
	l.ReviewDuration = &ms
	return l
}
