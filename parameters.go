package fsrs

import (
	"fmt"
	"math"
)

// WeightSet is an ordered FSRS weight table. Two arities are accepted:
// 21 weights (FSRS-6) and 19 weights (FSRS-5, which has no short-term
// stability exponent and a fixed decay of 0.5).
type WeightSet []float64

// Supported weight-table arities.
const (
	WeightsFSRS6 = 21
	WeightsFSRS5 = 19
)

// fsrs5Decay is the fixed forgetting-curve decay of FSRS-5.
const fsrs5Decay = 0.5

// defaultWeights are the FSRS-6 defaults from py-fsrs / the fsrs4anki wiki.
var defaultWeights = [WeightsFSRS6]float64{
	0.212, 1.2931, 2.3065, 8.2956, // w[0..3]  initial stability S₀(G)
	6.4133, 0.8334, 3.0194, 0.001, // w[4..7]  difficulty params
	1.8722, 0.1666, 0.796, 1.4835, // w[8..11] recall stability params
	0.0614, 0.2629, 1.6483, 0.6014, // w[12..15] forget stability params
	1.8729, 0.5425, 0.0912, 0.0658, // w[16..19] easy/short-term params
	0.1542, // w[20] decay exponent
}

// LowerBounds defines the minimum allowed value for each FSRS-6 weight.
var LowerBounds = [WeightsFSRS6]float64{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.001,
	0.0, 0.0, 0.001, 0.001,
	0.001, 0.001, 0.0, 0.0,
	1.0, 0.0, 0.0, 0.0,
	0.1,
}

// UpperBounds defines the maximum allowed value for each FSRS-6 weight.
var UpperBounds = [WeightsFSRS6]float64{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5, 5.0,
	0.25, 0.9, 4.0, 1.0,
	6.0, 2.0, 2.0, 0.8,
	0.8,
}

// DefaultWeights returns a fresh copy of the FSRS-6 default weight table.
func DefaultWeights() WeightSet {
	w := make(WeightSet, WeightsFSRS6)
	copy(w, defaultWeights[:])
	return w
}

// Validate checks arity and that every weight is a finite number.
// It does not check bounds; see CheckBounds.
func (w WeightSet) Validate() error {
	if len(w) != WeightsFSRS6 && len(w) != WeightsFSRS5 {
		return fmt.Errorf("%w: got %d weights, want %d or %d",
			ErrInvalidParameters, len(w), WeightsFSRS6, WeightsFSRS5)
	}
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: w[%d] = %v is not finite", ErrInvalidParameters, i, v)
		}
	}
	return nil
}

// CheckBounds validates arity and checks every weight against
// [LowerBounds, UpperBounds].
func (w WeightSet) CheckBounds() error {
	if err := w.Validate(); err != nil {
		return err
	}
	for i, v := range w {
		if v < LowerBounds[i] || v > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidParameters, i, v, LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// normalize expands a validated table to the 21-weight FSRS-6 layout.
// FSRS-5 tables get w[19] = 0 and w[20] = 0.5.
func (w WeightSet) normalize() [WeightsFSRS6]float64 {
	var out [WeightsFSRS6]float64
	copy(out[:], w)
	if len(w) == WeightsFSRS5 {
		out[19] = 0
		out[20] = fsrs5Decay
	}
	return out
}

// clone returns an independent copy of w.
func (w WeightSet) clone() WeightSet {
	if w == nil {
		return nil
	}
	out := make(WeightSet, len(w))
	copy(out, w)
	return out
}
