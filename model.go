package fsrs

import (
	"fmt"
	"math"
)

const (
	// StabilityMin is the smallest stability, in days, any update may produce.
	StabilityMin = 0.001

	DifficultyMin = 1.0
	DifficultyMax = 10.0
)

// MemoryState is the pair of memory variables FSRS tracks per card.
type MemoryState struct {
	Stability  float64 `json:"stability"`  // days until R drops to 90%
	Difficulty float64 `json:"difficulty"` // in [1, 10]
}

// model evaluates the memory equations for one normalized weight table.
// The term helpers return raw values; next is the only place results are
// floored, clamped and checked.
type model struct {
	w      [WeightsFSRS6]float64
	decay  float64 // -w[20]
	factor float64 // chosen so that R(S, S) = 0.9
}

func newModel(w WeightSet) model {
	p := w.normalize()
	decay := -p[20]
	return model{w: p, decay: decay, factor: math.Pow(0.9, 1/decay) - 1}
}

// retrievability is the forgetting curve (1 + factor·t/S)^decay.
func (m *model) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+m.factor*elapsedDays/stability, m.decay)
}

// next returns the memory state after a review graded r. A nil prior means
// the card has never been reviewed and is seeded from the weight table.
func (m *model) next(prior *MemoryState, elapsedDays int, r Rating) (MemoryState, error) {
	var ms MemoryState
	switch {
	case prior == nil:
		ms = MemoryState{Stability: m.w[r-1], Difficulty: m.initialDifficulty(r)}
	case elapsedDays == 0:
		ms = MemoryState{
			Stability:  prior.Stability * m.sameDayGrowth(prior.Stability, r),
			Difficulty: m.difficulty(prior.Difficulty, r),
		}
	default:
		ret := m.retrievability(float64(elapsedDays), prior.Stability)
		ms.Difficulty = m.difficulty(prior.Difficulty, r)
		if r == Again {
			ms.Stability = m.lapse(prior.Difficulty, prior.Stability, ret)
		} else {
			ms.Stability = m.recall(prior.Difficulty, prior.Stability, ret, r)
		}
	}

	ms.Stability = max(ms.Stability, StabilityMin)
	ms.Difficulty = min(max(ms.Difficulty, DifficultyMin), DifficultyMax)
	if !isFinite(ms.Stability) {
		return MemoryState{}, fmt.Errorf("%w: stability %v", ErrArithmeticDomain, ms.Stability)
	}
	if !isFinite(ms.Difficulty) {
		return MemoryState{}, fmt.Errorf("%w: difficulty %v", ErrArithmeticDomain, ms.Difficulty)
	}
	return ms, nil
}

// initialDifficulty is w4 - e^(w5·(G-1)) + 1, unclamped. Its Easy value is
// also the anchor difficulty drifts back towards.
func (m *model) initialDifficulty(r Rating) float64 {
	return m.w[4] - math.Exp(m.w[5]*float64(r-1)) + 1
}

// difficulty moves d by -w6·(G-3), damped as d nears 10, then blends the
// result with the Easy anchor using weight w7.
func (m *model) difficulty(d float64, r Rating) float64 {
	damped := d + (10-d)*(-m.w[6]*(float64(r)-3))/9
	return m.w[7]*m.initialDifficulty(Easy) + (1-m.w[7])*damped
}

// sameDayGrowth is the stability multiplier for a review on the day of the
// previous one. Good and Easy never shrink stability.
func (m *model) sameDayGrowth(s float64, r Rating) float64 {
	g := math.Exp(m.w[17]*(float64(r)-3+m.w[18])) * math.Pow(s, -m.w[19])
	if r >= Good {
		g = max(g, 1)
	}
	return g
}

// recall is the stability after a successful cross-day review. Hard is
// scaled by w15 and Easy by w16.
func (m *model) recall(d, s, ret float64, r Rating) float64 {
	grade := 1.0
	switch r {
	case Hard:
		grade = m.w[15]
	case Easy:
		grade = m.w[16]
	}
	growth := math.Exp(m.w[8]) * (11 - d) * math.Pow(s, -m.w[9]) * (math.Exp((1-ret)*m.w[10]) - 1)
	return s * (1 + growth*grade)
}

// lapse is the stability after a cross-day Again, capped so that forgetting
// never leaves a card more stable than a same-day Again would.
func (m *model) lapse(d, s, ret float64) float64 {
	long := m.w[11] * math.Pow(d, -m.w[12]) * (math.Pow(s+1, m.w[13]) - 1) * math.Exp((1-ret)*m.w[14])
	return min(long, s/math.Exp(m.w[17]*m.w[18]))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
