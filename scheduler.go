package fsrs

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
)

// Scheduler defaults applied to zero-valued SchedulerConfig fields.
const (
	DefaultDesiredRetention = 0.9
	DefaultMaximumInterval  = 36500
)

// MaxMaximumInterval is the longest interval, in days, that still fits in a
// time.Duration. Larger MaximumInterval values are rejected.
const MaxMaximumInterval = int(math.MaxInt64 / int64(day))

// DefaultLearningSteps returns the learning steps used when none are configured.
func DefaultLearningSteps() []time.Duration {
	return []time.Duration{time.Minute, 10 * time.Minute}
}

// DefaultRelearningSteps returns the relearning steps used when none are configured.
func DefaultRelearningSteps() []time.Duration {
	return []time.Duration{10 * time.Minute}
}

const day = 24 * time.Hour

// SchedulerConfig configures a Scheduler.
// Zero values produce sensible defaults; see field comments.
type SchedulerConfig struct {
	Weights          WeightSet       `json:"weights"`           // nil → DefaultWeights
	DesiredRetention float64         `json:"desired_retention"` // zero → 0.9; must be in (0, 1)
	LearningSteps    []time.Duration `json:"learning_steps"`    // nil → [1m, 10m]; must not be empty
	RelearningSteps  []time.Duration `json:"relearning_steps"`  // nil → [10m]; empty → lapses stay in Review
	MaximumInterval  int             `json:"maximum_interval"`  // zero → 36500
	EnableFuzzing    bool            `json:"enable_fuzzing"`
}

// Scheduler schedules card reviews with the FSRS model. It holds only
// immutable data after construction and is safe for concurrent use.
// Callers must serialize reviews of the same card themselves.
type Scheduler struct {
	weights          WeightSet
	model            model
	desiredRetention float64
	learningSteps    []time.Duration
	relearningSteps  []time.Duration
	maximumInterval  int
	enableFuzzing    bool
}

// Outcome is the result of reviewing a card with one rating.
type Outcome struct {
	Card Card      `json:"card"`
	Log  ReviewLog `json:"log"`
}

// NewScheduler creates a Scheduler from the given config.
// Zero-value fields are filled with defaults; invalid values return an
// error wrapping ErrInvalidInput.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	w := cfg.Weights.clone()
	if w == nil {
		w = DefaultWeights()
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	dr := cfg.DesiredRetention
	if dr == 0 {
		dr = DefaultDesiredRetention
	}
	if !(dr > 0 && dr < 1) {
		return nil, fmt.Errorf("%w: desired retention %v out of range (0, 1)", ErrInvalidInput, dr)
	}

	maxIvl := cfg.MaximumInterval
	if maxIvl == 0 {
		maxIvl = DefaultMaximumInterval
	}
	if maxIvl < 1 || maxIvl > MaxMaximumInterval {
		return nil, fmt.Errorf("%w: maximum interval %d out of range [1, %d]", ErrInvalidInput, maxIvl, MaxMaximumInterval)
	}

	ls := slices.Clone(cfg.LearningSteps)
	if cfg.LearningSteps == nil {
		ls = DefaultLearningSteps()
	}
	if len(ls) == 0 {
		return nil, fmt.Errorf("%w: at least one learning step is required", ErrInvalidInput)
	}
	if err := checkSteps("learning", ls); err != nil {
		return nil, err
	}

	rs := slices.Clone(cfg.RelearningSteps)
	if cfg.RelearningSteps == nil {
		rs = DefaultRelearningSteps()
	}
	if err := checkSteps("relearning", rs); err != nil {
		return nil, err
	}

	return &Scheduler{
		weights:          w,
		model:            newModel(w),
		desiredRetention: dr,
		learningSteps:    ls,
		relearningSteps:  rs,
		maximumInterval:  maxIvl,
		enableFuzzing:    cfg.EnableFuzzing,
	}, nil
}

func checkSteps(kind string, steps []time.Duration) error {
	for i, d := range steps {
		if d <= 0 {
			return fmt.Errorf("%w: %s step %d is %v, must be positive", ErrInvalidInput, kind, i, d)
		}
	}
	return nil
}

// Config returns the effective configuration, defaults filled in.
func (s *Scheduler) Config() SchedulerConfig {
	return SchedulerConfig{
		Weights:          s.weights.clone(),
		DesiredRetention: s.desiredRetention,
		LearningSteps:    slices.Clone(s.learningSteps),
		RelearningSteps:  slices.Clone(s.relearningSteps),
		MaximumInterval:  s.maximumInterval,
		EnableFuzzing:    s.enableFuzzing,
	}
}

// ReviewCard processes a review of the card at the given time.
// It returns the updated card and a review log. The input card is not mutated.
func (s *Scheduler) ReviewCard(card Card, rating Rating, now time.Time) (Card, ReviewLog, error) {
	if !rating.IsValid() {
		return Card{}, ReviewLog{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if err := card.validate(); err != nil {
		return Card{}, ReviewLog{}, err
	}
	elapsed, err := elapsedDays(card, now)
	if err != nil {
		return Card{}, ReviewLog{}, err
	}

	c := card.clone()

	var prior *MemoryState
	if c.State != New {
		prior = c.MemoryState()
	}
	ms, err := s.model.next(prior, elapsed, rating)
	if err != nil {
		return Card{}, ReviewLog{}, fmt.Errorf("card %q: %w", c.ID, err)
	}
	c.setMemoryState(ms)

	interval, days, err := s.transition(&c, rating, now)
	if err != nil {
		return Card{}, ReviewLog{}, fmt.Errorf("card %q: %w", c.ID, err)
	}

	c.Due = now.Add(interval)
	c.LastReview = &now
	c.Reps++
	c.ElapsedDays = elapsed
	c.ScheduledDays = days

	log := ReviewLog{
		ID:              ReviewLogID(c.ID, rating, now),
		CardID:          c.ID,
		Rating:          rating,
		State:           card.State,
		Due:             card.Due,
		ReviewDatetime:  now,
		ElapsedDays:     elapsed,
		LastElapsedDays: card.ElapsedDays,
		ScheduledDays:   days,
		Stability:       ms.Stability,
		Difficulty:      ms.Difficulty,
	}

	return c, log, nil
}

// elapsedDays counts the whole days between the card's last review (its due
// date when it was never reviewed) and now.
func elapsedDays(c Card, now time.Time) (int, error) {
	if c.LastReview == nil {
		if c.State != New {
			return 0, fmt.Errorf("%w: card %q in state %s has no last review", ErrInvalidInput, c.ID, c.State)
		}
		return max(int(now.Sub(c.Due)/day), 0), nil
	}
	if now.Before(*c.LastReview) {
		return 0, fmt.Errorf("%w: review time %s precedes last review %s of card %q",
			ErrInvalidInput, now.Format(time.RFC3339), c.LastReview.Format(time.RFC3339), c.ID)
	}
	return int(now.Sub(*c.LastReview) / day), nil
}

// PreviewCard returns the result of reviewing the card with each possible rating.
func (s *Scheduler) PreviewCard(card Card, now time.Time) (map[Rating]Outcome, error) {
	result := make(map[Rating]Outcome, len(Ratings))
	for _, r := range Ratings {
		c, log, err := s.ReviewCard(card, r, now)
		if err != nil {
			return nil, err
		}
		result[r] = Outcome{Card: c, Log: log}
	}
	return result, nil
}

// RescheduleCard rebuilds the card's scheduling state by replaying the given
// review logs, in review-time order, onto a fresh card with the same ID.
// Returns ErrCardIDMismatch if any log's CardID does not match the card's ID.
func (s *Scheduler) RescheduleCard(card Card, logs []ReviewLog) (Card, error) {
	for _, log := range logs {
		if log.CardID != card.ID {
			return Card{}, fmt.Errorf("%w: card %q, log %q", ErrCardIDMismatch, card.ID, log.CardID)
		}
	}
	ordered := slices.Clone(logs)
	slices.SortStableFunc(ordered, func(a, b ReviewLog) int {
		return a.ReviewDatetime.Compare(b.ReviewDatetime)
	})

	c := NewCard(card.ID, card.Due)
	for i, log := range ordered {
		next, _, err := s.ReviewCard(c, log.Rating, log.ReviewDatetime)
		if err != nil {
			return Card{}, fmt.Errorf("replaying log %d of card %q: %w", i, card.ID, err)
		}
		c = next
	}
	return c, nil
}

// NextMemoryState applies the memory model directly: it initializes a state
// from the weight table when prior is nil and otherwise updates prior for a
// review elapsedDays after the previous one.
func (s *Scheduler) NextMemoryState(prior *MemoryState, elapsedDays int, rating Rating) (MemoryState, error) {
	if !rating.IsValid() {
		return MemoryState{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if elapsedDays < 0 {
		return MemoryState{}, fmt.Errorf("%w: elapsed days %d is negative", ErrInvalidInput, elapsedDays)
	}
	if prior != nil {
		c := Card{State: Review, Stability: &prior.Stability, Difficulty: &prior.Difficulty}
		if err := c.validate(); err != nil {
			return MemoryState{}, err
		}
	}
	return s.model.next(prior, elapsedDays, rating)
}

// NextInterval returns the number of days until a memory of the given
// stability decays to the desired retention, clamped to [1, MaximumInterval].
// Fuzzing is not applied.
func (s *Scheduler) NextInterval(stability float64) (int, error) {
	if !isFinite(stability) || stability < StabilityMin {
		return 0, fmt.Errorf("%w: stability %v", ErrInvalidInput, stability)
	}
	return s.model.nextInterval(stability, s.desiredRetention, s.maximumInterval)
}

// RetrievabilityAt returns the recall probability of a memory with the given
// stability after elapsedDays.
func (s *Scheduler) RetrievabilityAt(stability, elapsedDays float64) (float64, error) {
	if !isFinite(stability) || stability < StabilityMin {
		return 0, fmt.Errorf("%w: stability %v", ErrInvalidInput, stability)
	}
	if !isFinite(elapsedDays) || elapsedDays < 0 {
		return 0, fmt.Errorf("%w: elapsed days %v", ErrInvalidInput, elapsedDays)
	}
	return s.model.retrievability(elapsedDays, stability), nil
}

// Retrievability returns the probability of recall for the card at the given time.
// Returns 0 if the card has never been reviewed or has no stability.
func (s *Scheduler) Retrievability(card Card, now time.Time) float64 {
	if card.LastReview == nil || card.Stability == nil {
		return 0
	}
	elapsed := max(now.Sub(*card.LastReview).Hours()/24.0, 0)
	return s.model.retrievability(elapsed, max(*card.Stability, StabilityMin))
}

// SortByDue orders cards for study at now: earliest due first, ties broken
// by lower retrievability and then by ID. The slice is sorted in place.
func (s *Scheduler) SortByDue(cards []Card, now time.Time) {
	slices.SortStableFunc(cards, func(a, b Card) int {
		if c := a.Due.Compare(b.Due); c != 0 {
			return c
		}
		if c := cmp.Compare(s.Retrievability(a, now), s.Retrievability(b, now)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// MostDue returns the card that should be studied next at now, or false if
// no card is due.
func (s *Scheduler) MostDue(cards []Card, now time.Time) (Card, bool) {
	var best *Card
	for i := range cards {
		c := &cards[i]
		if c.Due.After(now) {
			continue
		}
		if best == nil || s.dueBefore(*c, *best, now) {
			best = c
		}
	}
	if best == nil {
		return Card{}, false
	}
	return best.clone(), true
}

func (s *Scheduler) dueBefore(a, b Card, now time.Time) bool {
	if !a.Due.Equal(b.Due) {
		return a.Due.Before(b.Due)
	}
	ra, rb := s.Retrievability(a, now), s.Retrievability(b, now)
	if ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}

// schedulerJSON is the serialized form of a Scheduler. Steps are Go
// duration strings such as "10m0s".
type schedulerJSON struct {
	Weights          WeightSet `json:"weights"`
	DesiredRetention float64   `json:"desired_retention"`
	LearningSteps    []string  `json:"learning_steps"`
	RelearningSteps  []string  `json:"relearning_steps"`
	MaximumInterval  int       `json:"maximum_interval"`
	EnableFuzzing    bool      `json:"enable_fuzzing"`
}

// MarshalJSON implements json.Marshaler.
func (s *Scheduler) MarshalJSON() ([]byte, error) {
	return json.Marshal(schedulerJSON{
		Weights:          s.weights,
		DesiredRetention: s.desiredRetention,
		LearningSteps:    FormatSteps(s.learningSteps),
		RelearningSteps:  FormatSteps(s.relearningSteps),
		MaximumInterval:  s.maximumInterval,
		EnableFuzzing:    s.enableFuzzing,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
// It rebuilds the internal precomputed state from the serialized config.
func (s *Scheduler) UnmarshalJSON(data []byte) error {
	var j schedulerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: scheduler: %v", ErrInvalidInput, err)
	}
	ls, err := ParseSteps(j.LearningSteps)
	if err != nil {
		return err
	}
	rs, err := ParseSteps(j.RelearningSteps)
	if err != nil {
		return err
	}
	rebuilt, err := NewScheduler(SchedulerConfig{
		Weights:          j.Weights,
		DesiredRetention: j.DesiredRetention,
		LearningSteps:    ls,
		RelearningSteps:  rs,
		MaximumInterval:  j.MaximumInterval,
		EnableFuzzing:    j.EnableFuzzing,
	})
	if err != nil {
		return err
	}
	*s = *rebuilt
	return nil
}

// FormatSteps renders step durations as Go duration strings.
func FormatSteps(ds []time.Duration) []string {
	if ds == nil {
		return nil
	}
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

// ParseSteps parses Go duration strings. A nil input yields nil so that
// defaults still apply.
func ParseSteps(ss []string) ([]time.Duration, error) {
	if ss == nil {
		return nil, nil
	}
	out := make([]time.Duration, len(ss))
	for i, str := range ss {
		d, err := time.ParseDuration(str)
		if err != nil {
			return nil, fmt.Errorf("%w: step %q: %v", ErrInvalidInput, str, err)
		}
		out[i] = d
	}
	return out, nil
}

// transition applies the state machine and returns the time until the next
// review together with the whole-day interval (0 for step intervals).
func (s *Scheduler) transition(c *Card, rating Rating, now time.Time) (time.Duration, int, error) {
	switch c.State {
	case New:
		return s.transitionNew(c, rating, now)
	case Learning:
		return s.transitionSteps(c, rating, s.learningSteps, now)
	case Relearning:
		return s.transitionRelearning(c, rating, now)
	default:
		return s.transitionReview(c, rating, now)
	}
}

// transitionNew moves a first-time card into Learning, or straight to
// Review on Easy. Good advances to the second learning step when there is
// one and otherwise repeats the only step.
func (s *Scheduler) transitionNew(c *Card, rating Rating, now time.Time) (time.Duration, int, error) {
	if rating == Easy {
		return s.graduate(c, now)
	}
	c.State = Learning
	steps := s.learningSteps
	switch rating {
	case Again:
		c.setStep(0)
		return steps[0], 0, nil
	case Hard:
		c.setStep(0)
		return hardStep(steps, 0), 0, nil
	default:
		next := min(1, len(steps)-1)
		c.setStep(next)
		return steps[next], 0, nil
	}
}

// transitionSteps handles the Learning state.
func (s *Scheduler) transitionSteps(c *Card, rating Rating, steps []time.Duration, now time.Time) (time.Duration, int, error) {
	step := 0
	if c.Step != nil {
		step = *c.Step
	}

	// Step overflow after a config change → graduate.
	if step >= len(steps) && rating != Again {
		return s.graduate(c, now)
	}

	switch rating {
	case Again:
		c.setStep(0)
		return steps[0], 0, nil

	case Hard:
		c.setStep(step)
		return hardStep(steps, step), 0, nil

	case Good:
		next := step + 1
		if next >= len(steps) {
			return s.graduate(c, now)
		}
		c.setStep(next)
		return steps[next], 0, nil

	default:
		return s.graduate(c, now)
	}
}

// hardStep is the delay for a Hard answer on the given step.
func hardStep(steps []time.Duration, step int) time.Duration {
	if step == 0 && len(steps) == 1 {
		return time.Duration(float64(steps[0]) * 1.5)
	}
	if step == 0 && len(steps) >= 2 {
		return (steps[0] + steps[1]) / 2
	}
	return steps[step]
}

// transitionRelearning handles the Relearning state: Again restarts the
// relearning steps and any successful answer returns the card to Review.
// A card left in Relearning after its steps were configured away repeats on
// the first learning step instead.
func (s *Scheduler) transitionRelearning(c *Card, rating Rating, now time.Time) (time.Duration, int, error) {
	if rating != Again {
		return s.graduate(c, now)
	}
	c.setStep(0)
	if len(s.relearningSteps) == 0 {
		return s.learningSteps[0], 0, nil
	}
	return s.relearningSteps[0], 0, nil
}

// transitionReview handles the Review state.
func (s *Scheduler) transitionReview(c *Card, rating Rating, now time.Time) (time.Duration, int, error) {
	if rating == Again {
		c.Lapses++
		if len(s.relearningSteps) > 0 {
			c.State = Relearning
			c.setStep(0)
			return s.relearningSteps[0], 0, nil
		}
		// Empty relearning steps → stay in Review with nextInterval.
	}
	return s.graduate(c, now)
}

// graduate puts the card in Review and schedules it by stability.
func (s *Scheduler) graduate(c *Card, now time.Time) (time.Duration, int, error) {
	c.State = Review
	c.clearStep()
	days, err := s.model.nextInterval(*c.Stability, s.desiredRetention, s.maximumInterval)
	if err != nil {
		return 0, 0, err
	}
	if s.enableFuzzing {
		days = fuzzInterval(days, s.maximumInterval, fuzzSeed(c.ID, now))
	}
	return time.Duration(days) * day, days, nil
}
