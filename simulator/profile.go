package simulator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sky-flux/fsrs"
)

// MinLogs is the smallest review history FromLogs accepts.
const MinLogs = 512

var (
	// ErrInsufficientLogs is returned when fewer than MinLogs review logs are provided.
	ErrInsufficientLogs = errors.New("simulator: at least 512 review logs required")

	// ErrMissingDuration is returned when any ReviewDuration is nil.
	ErrMissingDuration = errors.New("simulator: review logs must carry a review duration")
)

// Profile describes a learner. Arrays are indexed by rating, Again first.
// Durations are in milliseconds.
type Profile struct {
	// FirstRating is the rating distribution of a card's first review.
	FirstRating [4]float64 `json:"first_rating" yaml:"first_rating"`
	// FirstDuration is the mean duration of a first review per rating.
	FirstDuration [4]float64 `json:"first_duration" yaml:"first_duration"`
	// RecallRating is the distribution of Hard, Good and Easy among
	// successful later reviews; index 0 (Again) is unused.
	RecallRating [4]float64 `json:"recall_rating" yaml:"recall_rating"`
	// Duration is the mean duration of a later review per rating.
	Duration [4]float64 `json:"duration" yaml:"duration"`
}

// DefaultProfile is a typical learner, used when no history is available.
func DefaultProfile() Profile {
	return Profile{
		FirstRating:   [4]float64{0.30, 0.05, 0.55, 0.10},
		FirstDuration: [4]float64{8000, 6000, 4000, 2000},
		RecallRating:  [4]float64{0, 0.10, 0.80, 0.10},
		Duration:      [4]float64{10000, 7000, 4000, 2000},
	}
}

// Validate reports whether both distributions are probability vectors.
func (p Profile) Validate() error {
	check := func(name string, probs []float64) error {
		var sum float64
		for _, v := range probs {
			if v < 0 {
				return fmt.Errorf("%w: %s has a negative probability", fsrs.ErrInvalidInput, name)
			}
			sum += v
		}
		if sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("%w: %s sums to %v, want 1", fsrs.ErrInvalidInput, name, sum)
		}
		return nil
	}
	if err := check("first_rating", p.FirstRating[:]); err != nil {
		return err
	}
	return check("recall_rating", p.RecallRating[1:])
}

// FromLogs estimates a profile from review history. A card's earliest log
// is its first review; every later log counts towards the recall
// distribution unless it is Again. Ratings never seen get a mean duration
// of zero.
func FromLogs(logs []fsrs.ReviewLog) (Profile, error) {
	if len(logs) < MinLogs {
		return Profile{}, fmt.Errorf("%w: got %d", ErrInsufficientLogs, len(logs))
	}
	for i, l := range logs {
		if l.ReviewDuration == nil {
			return Profile{}, fmt.Errorf("%w: log %d of card %q", ErrMissingDuration, i, l.CardID)
		}
		if !l.Rating.IsValid() {
			return Profile{}, fmt.Errorf("log %d: %w: %d", i, fsrs.ErrInvalidRating, int(l.Rating))
		}
	}

	byCard := make(map[string][]fsrs.ReviewLog)
	for _, l := range logs {
		byCard[l.CardID] = append(byCard[l.CardID], l)
	}

	var (
		firstCount, firstDur, laterCount, laterDur [4]float64
		firstTotal, recallTotal                    float64
	)
	for _, group := range byCard {
		slices.SortStableFunc(group, func(a, b fsrs.ReviewLog) int {
			return a.ReviewDatetime.Compare(b.ReviewDatetime)
		})
		for i, l := range group {
			idx := int(l.Rating) - 1
			d := float64(*l.ReviewDuration)
			if i == 0 {
				firstTotal++
				firstCount[idx]++
				firstDur[idx] += d
				continue
			}
			laterCount[idx]++
			laterDur[idx] += d
			if l.Rating != fsrs.Again {
				recallTotal++
			}
		}
	}

	var p Profile
	for i := range 4 {
		p.FirstRating[i] = firstCount[i] / firstTotal
		p.FirstDuration[i] = mean(firstDur[i], firstCount[i])
		p.Duration[i] = mean(laterDur[i], laterCount[i])
	}
	if recallTotal > 0 {
		for i := 1; i < 4; i++ {
			p.RecallRating[i] = laterCount[i] / recallTotal
		}
	} else {
		p.RecallRating = [4]float64{0, 1.0 / 3, 1.0 / 3, 1.0 / 3}
	}
	return p, nil
}

func mean(sum, n float64) float64 {
	if n == 0 {
		return 0
	}
	return sum / n
}
