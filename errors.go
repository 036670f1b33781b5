package fsrs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fsrs package.
// Use errors.Is to check: errors.Is(err, fsrs.ErrInvalidInput)
//
// ErrInvalidRating, ErrInvalidParameters and ErrCardIDMismatch are all
// kinds of ErrInvalidInput.
var (
	ErrInvalidInput      = errors.New("fsrs: invalid input")
	ErrArithmeticDomain  = errors.New("fsrs: arithmetic domain error")
	ErrInvalidRating     = fmt.Errorf("%w: rating", ErrInvalidInput)
	ErrInvalidParameters = fmt.Errorf("%w: weights", ErrInvalidInput)
	ErrCardIDMismatch    = fmt.Errorf("%w: card ID mismatch in review log", ErrInvalidInput)
)
