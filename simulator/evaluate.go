package simulator

import (
	"fmt"
	"math"
	"slices"

	"github.com/sky-flux/fsrs"
)

const bceClamp = 1e-7

// Evaluation measures how well a weight table predicts recall in a review
// history. Only cross-day reviews, at least one day after the previous
// review of the same card, are scored.
type Evaluation struct {
	// LogLoss is the mean binary cross-entropy of predicted recall.
	LogLoss float64 `json:"log_loss" yaml:"log_loss"`
	// RMSE is the root mean squared error of predicted recall.
	RMSE    float64 `json:"rmse" yaml:"rmse"`
	Reviews int     `json:"reviews" yaml:"reviews"`
	Cards   int     `json:"cards" yaml:"cards"`
}

// review is one scored event of a card's history.
type review struct {
	rating      fsrs.Rating
	elapsedDays float64 // days since the previous review, 0 for the first
	recalled    float64 // 0 for Again, 1 otherwise
	log         fsrs.ReviewLog
}

// groupByCard groups logs by card and orders each history by review time.
func groupByCard(logs []fsrs.ReviewLog) map[string][]review {
	groups := make(map[string][]fsrs.ReviewLog)
	for _, l := range logs {
		groups[l.CardID] = append(groups[l.CardID], l)
	}

	out := make(map[string][]review, len(groups))
	for id, history := range groups {
		slices.SortStableFunc(history, func(a, b fsrs.ReviewLog) int {
			return a.ReviewDatetime.Compare(b.ReviewDatetime)
		})
		reviews := make([]review, len(history))
		for i, l := range history {
			var elapsed float64
			if i > 0 {
				elapsed = l.ReviewDatetime.Sub(history[i-1].ReviewDatetime).Hours() / 24
			}
			recalled := 1.0
			if l.Rating == fsrs.Again {
				recalled = 0
			}
			reviews[i] = review{rating: l.Rating, elapsedDays: elapsed, recalled: recalled, log: l}
		}
		out[id] = reviews
	}
	return out
}

// bceLoss is -[y ln p + (1-y) ln(1-p)] with p clamped away from 0 and 1.
func bceLoss(p, y float64) float64 {
	p = math.Max(bceClamp, math.Min(p, 1-bceClamp))
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// Evaluate replays each card's history with weights w and scores the
// predicted recall probability before every cross-day review against what
// the learner actually answered.
func Evaluate(w fsrs.WeightSet, logs []fsrs.ReviewLog) (Evaluation, error) {
	s, err := fsrs.NewScheduler(fsrs.SchedulerConfig{Weights: w})
	if err != nil {
		return Evaluation{}, err
	}

	data := groupByCard(logs)
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var loss, sq float64
	var n int
	for _, id := range ids {
		reviews := data[id]
		card := fsrs.NewCard(id, reviews[0].log.ReviewDatetime)
		for _, rev := range reviews {
			if card.LastReview != nil && rev.elapsedDays >= 1 {
				p := s.Retrievability(card, rev.log.ReviewDatetime)
				loss += bceLoss(p, rev.recalled)
				sq += (p - rev.recalled) * (p - rev.recalled)
				n++
			}
			next, _, err := s.ReviewCard(card, rev.rating, rev.log.ReviewDatetime)
			if err != nil {
				return Evaluation{}, fmt.Errorf("replay card %q: %w", id, err)
			}
			card = next
		}
	}

	ev := Evaluation{Reviews: n, Cards: len(data)}
	if n > 0 {
		ev.LogLoss = loss / float64(n)
		ev.RMSE = math.Sqrt(sq / float64(n))
	}
	return ev, nil
}
