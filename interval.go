package fsrs

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// nextInterval inverts the forgetting curve: it returns the whole number of
// days after which recall probability falls to desiredRetention, clamped to
// [1, maxIvl].
//
//	I = S / FACTOR * (r^(1/DECAY) - 1)
func (m *model) nextInterval(stability, desiredRetention float64, maxIvl int) (int, error) {
	raw := stability / m.factor * (math.Pow(desiredRetention, 1.0/m.decay) - 1)
	if !isFinite(raw) {
		return 0, fmt.Errorf("%w: interval for stability %v is %v", ErrArithmeticDomain, stability, raw)
	}
	ivl := math.Min(math.Max(math.Round(raw), 1), float64(maxIvl))
	return int(ivl), nil
}

type fuzzBand struct {
	start, end float64
	factor     float64
}

var fuzzBands = []fuzzBand{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// fuzzMinInterval is the smallest interval fuzzing applies to.
const fuzzMinInterval = 2.5

// fuzzDelta computes the half-width of the fuzz range for an interval.
// delta = 1.0 + Σ(factor * max(min(interval, end) - start, 0))
func fuzzDelta(interval float64) float64 {
	delta := 1.0
	for _, b := range fuzzBands {
		delta += b.factor * math.Max(math.Min(interval, b.end)-b.start, 0)
	}
	return delta
}

// fuzzRange returns the inclusive range a fuzzed interval is drawn from.
func fuzzRange(interval, maxIvl int) (lo, hi int) {
	ivl := float64(interval)
	delta := fuzzDelta(ivl)
	lo = max(2, int(math.Round(ivl-delta)))
	hi = min(int(math.Round(ivl+delta)), maxIvl)
	lo = min(lo, hi)
	return max(lo, 1), max(hi, 1)
}

// fuzzSeed derives the random seed for one review of one card, so that
// replaying the same review produces the same interval.
func fuzzSeed(cardID string, now time.Time) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(cardID)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatInt(now.UnixNano(), 10))
	return d.Sum64()
}

// fuzzInterval spreads an interval uniformly over its fuzz range.
// Intervals shorter than 2.5 days are returned unchanged.
func fuzzInterval(interval, maxIvl int, seed uint64) int {
	if float64(interval) < fuzzMinInterval {
		return interval
	}
	lo, hi := fuzzRange(interval, maxIvl)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return lo + rng.IntN(hi-lo+1)
}
