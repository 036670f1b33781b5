package fsrs

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

func mustScheduler(t *testing.T, cfg SchedulerConfig) *Scheduler {
	t.Helper()
	s, err := NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func mustReview(t *testing.T, s *Scheduler, c Card, r Rating, now time.Time) (Card, ReviewLog) {
	t.Helper()
	out, log, err := s.ReviewCard(c, r, now)
	if err != nil {
		t.Fatalf("ReviewCard(%s, %v, %v): %v", c.ID, r, now, err)
	}
	return out, log
}

// reviewCard returns a Review-state card last reviewed at t0 and due ten
// days later.
func reviewCard(stability, difficulty float64) Card {
	return Card{
		ID:            "review-card",
		State:         Review,
		Stability:     ptr(stability),
		Difficulty:    ptr(difficulty),
		Due:           t0.Add(10 * day),
		LastReview:    ptr(t0),
		Reps:          3,
		ElapsedDays:   4,
		ScheduledDays: 10,
	}
}

func assertDue(t *testing.T, c Card, want time.Time) {
	t.Helper()
	if !c.Due.Equal(want) {
		t.Errorf("Due = %v, want %v", c.Due, want)
	}
}

// --- NewScheduler ---

func TestNewSchedulerDefault(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	cfg := s.Config()
	if cfg.DesiredRetention != DefaultDesiredRetention {
		t.Errorf("DesiredRetention = %v, want %v", cfg.DesiredRetention, DefaultDesiredRetention)
	}
	if cfg.MaximumInterval != DefaultMaximumInterval {
		t.Errorf("MaximumInterval = %d, want %d", cfg.MaximumInterval, DefaultMaximumInterval)
	}
	if !reflect.DeepEqual(cfg.LearningSteps, DefaultLearningSteps()) {
		t.Errorf("LearningSteps = %v", cfg.LearningSteps)
	}
	if !reflect.DeepEqual(cfg.RelearningSteps, DefaultRelearningSteps()) {
		t.Errorf("RelearningSteps = %v", cfg.RelearningSteps)
	}
	if !reflect.DeepEqual(cfg.Weights, DefaultWeights()) {
		t.Errorf("Weights = %v", cfg.Weights)
	}
	if cfg.EnableFuzzing {
		t.Error("fuzzing should be off by default")
	}
}

func TestNewSchedulerInvalidConfig(t *testing.T) {
	nan := DefaultWeights()
	nan[3] = math.NaN()
	tests := []struct {
		name string
		cfg  SchedulerConfig
		want error
	}{
		{"20 weights", SchedulerConfig{Weights: make(WeightSet, 20)}, ErrInvalidParameters},
		{"non-finite weight", SchedulerConfig{Weights: nan}, ErrInvalidParameters},
		{"retention above 1", SchedulerConfig{DesiredRetention: 1.5}, ErrInvalidInput},
		{"retention 1", SchedulerConfig{DesiredRetention: 1}, ErrInvalidInput},
		{"negative retention", SchedulerConfig{DesiredRetention: -0.1}, ErrInvalidInput},
		{"negative max interval", SchedulerConfig{MaximumInterval: -1}, ErrInvalidInput},
		{"max interval past Duration range", SchedulerConfig{MaximumInterval: MaxMaximumInterval + 1}, ErrInvalidInput},
		{"max interval 200000", SchedulerConfig{MaximumInterval: 200_000}, ErrInvalidInput},
		{"empty learning steps", SchedulerConfig{LearningSteps: []time.Duration{}}, ErrInvalidInput},
		{"zero learning step", SchedulerConfig{LearningSteps: []time.Duration{0}}, ErrInvalidInput},
		{"negative relearning step", SchedulerConfig{RelearningSteps: []time.Duration{-time.Minute}}, ErrInvalidInput},
	}
	for _, tt := range tests {
		_, err := NewScheduler(tt.cfg)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: NewScheduler = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestReviewLongestIntervalStaysAhead(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{MaximumInterval: MaxMaximumInterval})
	now := t0.Add(2 * day)
	c, log := mustReview(t, s, reviewCard(900_000, 1), Good, now)

	if c.ScheduledDays != MaxMaximumInterval || log.ScheduledDays != MaxMaximumInterval {
		t.Fatalf("ScheduledDays = %d / log %d, want %d", c.ScheduledDays, log.ScheduledDays, MaxMaximumInterval)
	}
	if !c.Due.After(now) {
		t.Fatalf("Due %v is not after review time %v", c.Due, now)
	}
	assertDue(t, c, now.Add(time.Duration(MaxMaximumInterval)*day))
}

func TestNewSchedulerOutOfBoundsWeightsAccepted(t *testing.T) {
	w := DefaultWeights()
	w[0] = -1.0 // only arity and finiteness are checked
	mustScheduler(t, SchedulerConfig{Weights: w})
}

func TestNewSchedulerFSRS5(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{Weights: DefaultWeights()[:WeightsFSRS5]})
	if got := len(s.Config().Weights); got != WeightsFSRS5 {
		t.Errorf("len(Weights) = %d, want %d", got, WeightsFSRS5)
	}
	assertFloat(t, "decay", s.model.decay, -0.5)
}

func TestNewSchedulerCopiesConfig(t *testing.T) {
	w := DefaultWeights()
	steps := []time.Duration{time.Minute}
	s := mustScheduler(t, SchedulerConfig{Weights: w, LearningSteps: steps})
	w[0] = 50
	steps[0] = time.Hour
	if s.weights[0] == 50 || s.learningSteps[0] == time.Hour {
		t.Error("scheduler shares memory with its config")
	}
	cfg := s.Config()
	cfg.Weights[0] = 50
	if s.weights[0] == 50 {
		t.Error("Config() exposes internal weights")
	}
}

// --- New cards ---

func TestNewAgain(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, _ := mustReview(t, s, NewCard("c", t0), Again, t0)

	if c.State != Learning {
		t.Errorf("State = %v, want Learning", c.State)
	}
	if c.Step == nil || *c.Step != 0 {
		t.Errorf("Step = %v, want 0", c.Step)
	}
	assertFloat(t, "Stability", *c.Stability, mustNext(t, &s.model, nil, 0, Again).Stability)
	assertFloat(t, "Difficulty", *c.Difficulty, mustNext(t, &s.model, nil, 0, Again).Difficulty)
	assertDue(t, c, t0.Add(time.Minute))
	if c.Reps != 1 || c.ScheduledDays != 0 {
		t.Errorf("Reps/ScheduledDays = %d/%d, want 1/0", c.Reps, c.ScheduledDays)
	}
}

func TestNewHard(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, _ := mustReview(t, s, NewCard("c", t0), Hard, t0)

	if c.State != Learning {
		t.Errorf("State = %v, want Learning", c.State)
	}
	// Hard at step 0 with two steps → (1m + 10m) / 2.
	assertDue(t, c, t0.Add((time.Minute+10*time.Minute)/2))
}

func TestNewGood(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, _ := mustReview(t, s, NewCard("c", t0), Good, t0)

	if c.State != Learning {
		t.Errorf("State = %v, want Learning", c.State)
	}
	if c.Step == nil || *c.Step != 1 {
		t.Errorf("Step = %v, want 1", c.Step)
	}
	assertFloat(t, "Stability", *c.Stability, defaultWeights[2])
	assertDue(t, c, t0.Add(10*time.Minute))
}

func TestNewGoodSingleStep(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{LearningSteps: []time.Duration{5 * time.Minute}})
	c, _ := mustReview(t, s, NewCard("c", t0), Good, t0)

	if c.State != Learning {
		t.Errorf("State = %v, want Learning", c.State)
	}
	if c.Step == nil || *c.Step != 0 {
		t.Errorf("Step = %v, want 0", c.Step)
	}
	assertDue(t, c, t0.Add(5*time.Minute))
}

func TestNewEasy(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, _ := mustReview(t, s, NewCard("c", t0), Easy, t0)

	if c.State != Review {
		t.Errorf("State = %v, want Review", c.State)
	}
	if c.Step != nil {
		t.Errorf("Step = %v, want nil", c.Step)
	}
	want, err := s.model.nextInterval(mustNext(t, &s.model, nil, 0, Easy).Stability, 0.9, 36500)
	if err != nil {
		t.Fatal(err)
	}
	if c.ScheduledDays != want {
		t.Errorf("ScheduledDays = %d, want %d", c.ScheduledDays, want)
	}
	assertDue(t, c, t0.Add(time.Duration(want)*day))
}

func TestNewEasyAlwaysReview(t *testing.T) {
	configs := []SchedulerConfig{
		{},
		{EnableFuzzing: true},
		{LearningSteps: []time.Duration{time.Minute, time.Hour, 4 * time.Hour}},
		{Weights: DefaultWeights()[:WeightsFSRS5], DesiredRetention: 0.8},
		{MaximumInterval: 1},
	}
	for i, cfg := range configs {
		s := mustScheduler(t, cfg)
		c, _ := mustReview(t, s, NewCard("c", t0), Easy, t0.Add(time.Duration(i)*day))
		if c.State != Review {
			t.Errorf("config %d: State = %v, want Review", i, c.State)
		}
	}
}

func TestNewIgnoresPriorMemory(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	card := NewCard("c", t0)
	card.Stability = ptr(77.0)
	card.Difficulty = ptr(2.0)
	c, _ := mustReview(t, s, card, Good, t0)
	assertFloat(t, "Stability", *c.Stability, mustNext(t, &s.model, nil, 0, Good).Stability)
	assertFloat(t, "Difficulty", *c.Difficulty, mustNext(t, &s.model, nil, 0, Good).Difficulty)
}

func TestNewElapsedDaysFromDue(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, log := mustReview(t, s, NewCard("c", t0), Good, t0.Add(3*day+time.Hour))
	if c.ElapsedDays != 3 || log.ElapsedDays != 3 {
		t.Errorf("ElapsedDays = %d/%d, want 3", c.ElapsedDays, log.ElapsedDays)
	}
	// Reviewing a new card before it is due clamps to zero.
	c, _ = mustReview(t, s, NewCard("c", t0), Good, t0.Add(-2*day))
	if c.ElapsedDays != 0 {
		t.Errorf("early ElapsedDays = %d, want 0", c.ElapsedDays)
	}
}

// --- Learning ---

func TestLearningGoodLastStep(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, _ := mustReview(t, s, NewCard("c", t0), Good, t0) // step 1
	now := t0.Add(10 * time.Minute)
	prior := *c.Stability
	c, _ = mustReview(t, s, c, Good, now)

	if c.State != Review {
		t.Errorf("State = %v, want Review", c.State)
	}
	if c.Step != nil {
		t.Errorf("Step = %v, want nil", c.Step)
	}
	// Same day → short-term stability.
	assertFloat(t, "Stability", *c.Stability, mustNext(t, &s.model, &MemoryState{Stability: prior, Difficulty: 5}, 0, Good).Stability)
	if c.ScheduledDays < 1 {
		t.Errorf("ScheduledDays = %d, want >= 1", c.ScheduledDays)
	}
	assertDue(t, c, now.Add(time.Duration(c.ScheduledDays)*day))
}

func TestLearningAgainResets(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, _ := mustReview(t, s, NewCard("c", t0), Good, t0)
	now := t0.Add(10 * time.Minute)
	c, _ = mustReview(t, s, c, Again, now)

	if c.State != Learning || c.Step == nil || *c.Step != 0 {
		t.Errorf("State/Step = %v/%v, want Learning/0", c.State, c.Step)
	}
	assertDue(t, c, now.Add(time.Minute))
}

func TestLearningCrossDay(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, _ := mustReview(t, s, NewCard("c", t0), Again, t0)
	priorS, priorD := *c.Stability, *c.Difficulty
	now := t0.Add(2 * day)
	c, _ = mustReview(t, s, c, Good, now)

	want := mustNext(t, &s.model, &MemoryState{Stability: priorS, Difficulty: priorD}, 2, Good)
	assertFloat(t, "Stability", *c.Stability, want.Stability)
	assertFloat(t, "Difficulty", *c.Difficulty, want.Difficulty)
	if c.ElapsedDays != 2 {
		t.Errorf("ElapsedDays = %d, want 2", c.ElapsedDays)
	}
}

func TestLearningHardSingleStep(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{LearningSteps: []time.Duration{10 * time.Minute}})
	c, _ := mustReview(t, s, NewCard("c", t0), Hard, t0)
	assertDue(t, c, t0.Add(15*time.Minute))
}

func TestLearningHardMidStep(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{
		LearningSteps: []time.Duration{time.Minute, 10 * time.Minute, time.Hour},
	})
	c, _ := mustReview(t, s, NewCard("c", t0), Good, t0) // step 1
	now := t0.Add(10 * time.Minute)
	c, _ = mustReview(t, s, c, Hard, now)

	if c.State != Learning || c.Step == nil || *c.Step != 1 {
		t.Errorf("State/Step = %v/%v, want Learning/1", c.State, c.Step)
	}
	assertDue(t, c, now.Add(10*time.Minute))
}

func TestLearningStepOverflow(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c := reviewCard(2, 5)
	c.State = Learning
	c.Step = ptr(5)
	c, _ = mustReview(t, s, c, Good, t0.Add(time.Hour))
	if c.State != Review {
		t.Errorf("State = %v, want Review", c.State)
	}
}

func TestLearningEasyGraduates(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, _ := mustReview(t, s, NewCard("c", t0), Again, t0)
	c, _ = mustReview(t, s, c, Easy, t0.Add(time.Minute))
	if c.State != Review || c.Step != nil {
		t.Errorf("State/Step = %v/%v, want Review/nil", c.State, c.Step)
	}
}

// --- Review ---

func TestReviewCrossDayGood(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	now := t0.Add(10 * day)
	c, _ := mustReview(t, s, reviewCard(10, 5), Good, now)

	if c.State != Review {
		t.Errorf("State = %v, want Review", c.State)
	}
	r := s.model.retrievability(10, 10)
	assertFloat(t, "R", r, 0.9)
	want := mustNext(t, &s.model, &MemoryState{Stability: 10, Difficulty: 5}, 10, Good)
	wantS := want.Stability
	assertFloat(t, "Stability", *c.Stability, wantS)
	assertFloat(t, "Difficulty", *c.Difficulty, want.Difficulty)
	wantDays, _ := s.model.nextInterval(wantS, 0.9, 36500)
	if c.ScheduledDays != wantDays {
		t.Errorf("ScheduledDays = %d, want %d", c.ScheduledDays, wantDays)
	}
	assertDue(t, c, now.Add(time.Duration(wantDays)*day))
	if c.Reps != 4 || c.Lapses != 0 || c.ElapsedDays != 10 {
		t.Errorf("Reps/Lapses/ElapsedDays = %d/%d/%d, want 4/0/10", c.Reps, c.Lapses, c.ElapsedDays)
	}
}

func TestReviewRatingOrdering(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	now := t0.Add(10 * day)
	hard, _ := mustReview(t, s, reviewCard(10, 5), Hard, now)
	good, _ := mustReview(t, s, reviewCard(10, 5), Good, now)
	easy, _ := mustReview(t, s, reviewCard(10, 5), Easy, now)
	if !(*hard.Stability < *good.Stability && *good.Stability < *easy.Stability) {
		t.Errorf("stability ordering: %v, %v, %v", *hard.Stability, *good.Stability, *easy.Stability)
	}
	if !(hard.ScheduledDays <= good.ScheduledDays && good.ScheduledDays <= easy.ScheduledDays) {
		t.Errorf("interval ordering: %d, %d, %d", hard.ScheduledDays, good.ScheduledDays, easy.ScheduledDays)
	}
}

func TestReviewSameDay(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	c, _ := mustReview(t, s, reviewCard(10, 5), Good, t0.Add(23*time.Hour))
	assertFloat(t, "Stability", *c.Stability, mustNext(t, &s.model, &MemoryState{Stability: 10, Difficulty: 5}, 0, Good).Stability)
	if c.ElapsedDays != 0 {
		t.Errorf("ElapsedDays = %d, want 0", c.ElapsedDays)
	}
}

func TestReviewAgainRelearning(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	now := t0.Add(10 * day)
	c, _ := mustReview(t, s, reviewCard(10, 5), Again, now)

	if c.State != Relearning {
		t.Errorf("State = %v, want Relearning", c.State)
	}
	if c.Lapses != 1 {
		t.Errorf("Lapses = %d, want 1", c.Lapses)
	}
	if *c.Stability >= 10 {
		t.Errorf("Stability = %v, want < 10", *c.Stability)
	}
	if c.Step == nil || *c.Step != 0 {
		t.Errorf("Step = %v, want 0", c.Step)
	}
	assertDue(t, c, now.Add(10*time.Minute))
	if c.ScheduledDays != 0 {
		t.Errorf("ScheduledDays = %d, want 0", c.ScheduledDays)
	}
}

func TestReviewAgainEmptyRelearningSteps(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{RelearningSteps: []time.Duration{}})
	now := t0.Add(10 * day)
	c, _ := mustReview(t, s, reviewCard(10, 5), Again, now)

	if c.State != Review {
		t.Errorf("State = %v, want Review", c.State)
	}
	if c.Lapses != 1 {
		t.Errorf("Lapses = %d, want 1", c.Lapses)
	}
	if c.ScheduledDays < 1 {
		t.Errorf("ScheduledDays = %d, want >= 1", c.ScheduledDays)
	}
}

func TestReviewMaximumIntervalClamp(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{MaximumInterval: 30})
	card := reviewCard(200, 5)
	now := t0.Add(200 * day)

	ideal, _ := mustReview(t, mustScheduler(t, SchedulerConfig{}), card, Good, now)
	if ideal.ScheduledDays <= 30 {
		t.Fatalf("unclamped interval %d should exceed 30", ideal.ScheduledDays)
	}
	c, log := mustReview(t, s, card, Good, now)
	if c.ScheduledDays != 30 || log.ScheduledDays != 30 {
		t.Errorf("ScheduledDays = %d, want 30", c.ScheduledDays)
	}
	assertDue(t, c, now.Add(30*day))
}

// --- Relearning ---

func relearningCard(t *testing.T, s *Scheduler) (Card, time.Time) {
	t.Helper()
	now := t0.Add(10 * day)
	c, _ := mustReview(t, s, reviewCard(10, 5), Again, now)
	return c, now.Add(10 * time.Minute)
}

func TestRelearningAgain(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{RelearningSteps: []time.Duration{10 * time.Minute, time.Hour}})
	c, now := relearningCard(t, s)
	c, _ = mustReview(t, s, c, Again, now)

	if c.State != Relearning || c.Step == nil || *c.Step != 0 {
		t.Errorf("State/Step = %v/%v, want Relearning/0", c.State, c.Step)
	}
	if c.Lapses != 1 {
		t.Errorf("Lapses = %d, want 1 (only Review lapses count)", c.Lapses)
	}
	assertDue(t, c, now.Add(10*time.Minute))
}

func TestRelearningAgainWithoutRelearningSteps(t *testing.T) {
	withSteps := mustScheduler(t, SchedulerConfig{})
	c, now := relearningCard(t, withSteps)

	s := mustScheduler(t, SchedulerConfig{RelearningSteps: []time.Duration{}})
	c, _ = mustReview(t, s, c, Again, now)
	if c.State != Relearning || c.Step == nil || *c.Step != 0 {
		t.Fatalf("State/Step = %v/%v, want Relearning/0", c.State, c.Step)
	}
	if c.Lapses != 1 || c.ScheduledDays != 0 {
		t.Errorf("Lapses/ScheduledDays = %d/%d, want 1/0", c.Lapses, c.ScheduledDays)
	}
	assertDue(t, c, now.Add(time.Minute))

	c, _ = mustReview(t, s, c, Good, now.Add(time.Minute))
	if c.State != Review || c.Step != nil {
		t.Errorf("after Good: State/Step = %v/%v, want Review/nil", c.State, c.Step)
	}
}

func TestRelearningSuccessReturnsToReview(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{RelearningSteps: []time.Duration{10 * time.Minute, time.Hour}})
	for _, r := range []Rating{Hard, Good, Easy} {
		c, now := relearningCard(t, s)
		c, _ = mustReview(t, s, c, r, now)
		if c.State != Review || c.Step != nil {
			t.Errorf("%v: State/Step = %v/%v, want Review/nil", r, c.State, c.Step)
		}
		if c.ScheduledDays < 1 {
			t.Errorf("%v: ScheduledDays = %d, want >= 1", r, c.ScheduledDays)
		}
	}
}

// --- Errors ---

func TestReviewCardErrors(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	tests := []struct {
		name   string
		card   Card
		rating Rating
		now    time.Time
		want   error
	}{
		{"now before last review", reviewCard(10, 5), Good, t0.Add(-time.Second), ErrInvalidInput},
		{"rating zero", reviewCard(10, 5), Rating(0), t0, ErrInvalidRating},
		{"rating five", NewCard("c", t0), Rating(5), t0, ErrInvalidRating},
		{"unknown state", func() Card { c := reviewCard(10, 5); c.State = State(7); return c }(), Good, t0, ErrInvalidInput},
		{"review without stability", func() Card { c := reviewCard(10, 5); c.Stability = nil; return c }(), Good, t0, ErrInvalidInput},
		{"review without last review", func() Card { c := reviewCard(10, 5); c.LastReview = nil; return c }(), Good, t0, ErrInvalidInput},
		{"difficulty out of range", reviewCard(10, 12), Good, t0, ErrInvalidInput},
	}
	for _, tt := range tests {
		_, _, err := s.ReviewCard(tt.card, tt.rating, tt.now)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestReviewCardArithmeticDomain(t *testing.T) {
	w := DefaultWeights()
	w[20] = 1e-300
	s := mustScheduler(t, SchedulerConfig{Weights: w})
	_, _, err := s.ReviewCard(NewCard("c", t0), Easy, t0)
	if !errors.Is(err, ErrArithmeticDomain) {
		t.Errorf("err = %v, want ErrArithmeticDomain", err)
	}
	if errors.Is(err, ErrInvalidInput) {
		t.Error("domain errors must not be reported as invalid input")
	}
}

// --- Properties ---

func TestReviewCardLog(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	card := reviewCard(10, 5)
	now := t0.Add(12 * day)
	c, log := mustReview(t, s, card, Hard, now)

	if log.ID != ReviewLogID(card.ID, Hard, now) {
		t.Errorf("ID = %s, want deterministic ID", log.ID)
	}
	if log.CardID != card.ID || log.Rating != Hard || !log.ReviewDatetime.Equal(now) {
		t.Errorf("identity fields mismatch: %+v", log)
	}
	if log.State != Review || !log.Due.Equal(card.Due) {
		t.Errorf("log should carry the prior state and due, got %v / %v", log.State, log.Due)
	}
	if log.ElapsedDays != 12 || log.LastElapsedDays != card.ElapsedDays {
		t.Errorf("ElapsedDays/LastElapsedDays = %d/%d, want 12/%d", log.ElapsedDays, log.LastElapsedDays, card.ElapsedDays)
	}
	if log.ScheduledDays != c.ScheduledDays || log.Stability != *c.Stability || log.Difficulty != *c.Difficulty {
		t.Errorf("log should carry the resulting schedule, got %+v", log)
	}
	if log.ReviewDuration != nil {
		t.Error("engine should not invent a review duration")
	}
	if c.LastReview == nil || !c.LastReview.Equal(now) {
		t.Errorf("LastReview = %v, want %v", c.LastReview, now)
	}
}

func TestReviewCardDoesNotMutateInput(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	card := reviewCard(10, 5)
	before := card.clone()
	mustReview(t, s, card, Again, t0.Add(10*day))
	if !reflect.DeepEqual(card, before) {
		t.Errorf("input card mutated: %+v, was %+v", card, before)
	}
}

func TestReviewCardDeterministic(t *testing.T) {
	for _, fuzz := range []bool{false, true} {
		s := mustScheduler(t, SchedulerConfig{EnableFuzzing: fuzz})
		a, la := mustReview(t, s, reviewCard(40, 6), Good, t0.Add(41*day))
		b, lb := mustReview(t, s, reviewCard(40, 6), Good, t0.Add(41*day))
		if !reflect.DeepEqual(a, b) || !reflect.DeepEqual(la, lb) {
			t.Errorf("fuzz=%v: identical reviews diverged: %+v vs %+v", fuzz, a, b)
		}
	}
}

func TestFuzzStaysInRange(t *testing.T) {
	plain := mustScheduler(t, SchedulerConfig{})
	fuzzed := mustScheduler(t, SchedulerConfig{EnableFuzzing: true})
	now := t0.Add(30 * day)
	base, _ := mustReview(t, plain, reviewCard(30, 5), Good, now)
	lo, hi := fuzzRange(base.ScheduledDays, DefaultMaximumInterval)

	differs := false
	for i := range 50 {
		card := reviewCard(30, 5)
		card.ID = "card-" + string(rune('a'+i%26)) + strings.Repeat("x", i/26)
		c, _ := mustReview(t, fuzzed, card, Good, now)
		if c.ScheduledDays < lo || c.ScheduledDays > hi {
			t.Fatalf("fuzzed interval %d outside [%d, %d]", c.ScheduledDays, lo, hi)
		}
		if c.ScheduledDays != base.ScheduledDays {
			differs = true
		}
		assertDue(t, c, now.Add(time.Duration(c.ScheduledDays)*day))
	}
	if !differs {
		t.Errorf("fuzzing never moved interval %d", base.ScheduledDays)
	}
}

func TestFuzzSkipsLearningSteps(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{EnableFuzzing: true})
	c, _ := mustReview(t, s, NewCard("c", t0), Good, t0)
	assertDue(t, c, t0.Add(10*time.Minute))
}

func TestReviewSequenceInvariants(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{EnableFuzzing: true})
	pattern := []Rating{Good, Again, Hard, Good, Easy, Again, Again, Good, Hard, Easy, Good, Good}
	gaps := []time.Duration{0, 10 * time.Minute, day, 3 * day, 5 * time.Hour, 20 * day, time.Minute, 2 * day, 40 * day, 0, 7 * day, 90 * day}

	c := NewCard("seq", t0)
	now := t0
	for i, r := range pattern {
		now = now.Add(gaps[i])
		next, log := mustReview(t, s, c, r, now)
		if *next.Stability < StabilityMin {
			t.Errorf("step %d: stability %v below floor", i, *next.Stability)
		}
		if *next.Difficulty < DifficultyMin || *next.Difficulty > DifficultyMax {
			t.Errorf("step %d: difficulty %v outside [1, 10]", i, *next.Difficulty)
		}
		if next.Due.Before(now) {
			t.Errorf("step %d: due %v before review time %v", i, next.Due, now)
		}
		if log.ElapsedDays < 0 {
			t.Errorf("step %d: negative elapsed days", i)
		}
		if next.Reps != i+1 {
			t.Errorf("step %d: Reps = %d", i, next.Reps)
		}
		c = next
	}
}

// --- Preview ---

func TestPreviewCard(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	card := reviewCard(10, 5)
	now := t0.Add(10 * day)
	before := card.clone()

	outcomes, err := s.PreviewCard(card, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 4 {
		t.Fatalf("len = %d, want 4", len(outcomes))
	}
	for _, r := range Ratings {
		want, wantLog := mustReview(t, s, card, r, now)
		got := outcomes[r]
		if !reflect.DeepEqual(got.Card, want) || !reflect.DeepEqual(got.Log, wantLog) {
			t.Errorf("%v: preview differs from ReviewCard", r)
		}
	}
	if !reflect.DeepEqual(card, before) {
		t.Error("PreviewCard mutated its input")
	}
}

func TestPreviewCardError(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	if _, err := s.PreviewCard(reviewCard(10, 5), t0.Add(-day)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

// --- Reschedule ---

func TestRescheduleCardReplay(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{EnableFuzzing: true})
	ratings := []Rating{Good, Good, Again, Good, Easy}
	times := []time.Time{t0, t0.Add(10 * time.Minute), t0.Add(3 * day), t0.Add(3*day + 10*time.Minute), t0.Add(9 * day)}

	c := NewCard("r", t0)
	var logs []ReviewLog
	for i, r := range ratings {
		var log ReviewLog
		c, log = mustReview(t, s, c, r, times[i])
		logs = append(logs, log)
	}

	// Order of the supplied logs does not matter.
	shuffled := []ReviewLog{logs[3], logs[0], logs[4], logs[2], logs[1]}
	got, err := s.RescheduleCard(c, shuffled)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, c) {
		t.Errorf("rescheduled card = %+v, want %+v", got, c)
	}
}

func TestRescheduleCardIDMismatch(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	logs := []ReviewLog{{CardID: "other", Rating: Good, ReviewDatetime: t0}}
	_, err := s.RescheduleCard(NewCard("c", t0), logs)
	if !errors.Is(err, ErrCardIDMismatch) || !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrCardIDMismatch", err)
	}
}

func TestRescheduleCardEmptyLogs(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	got, err := s.RescheduleCard(reviewCard(10, 5), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := NewCard("review-card", t0.Add(10*day))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want fresh card %+v", got, want)
	}
}

func TestRescheduleCardInvalidRating(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	logs := []ReviewLog{{CardID: "c", Rating: Rating(9), ReviewDatetime: t0}}
	if _, err := s.RescheduleCard(NewCard("c", t0), logs); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("err = %v, want ErrInvalidRating", err)
	}
}

// --- Direct model access ---

func TestNextMemoryState(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	init, err := s.NextMemoryState(nil, 0, Good)
	if err != nil {
		t.Fatal(err)
	}
	assertFloat(t, "S0(Good)", init.Stability, defaultWeights[2])

	next, err := s.NextMemoryState(&MemoryState{Stability: 10, Difficulty: 5}, 10, Again)
	if err != nil {
		t.Fatal(err)
	}
	if next.Stability >= 10 {
		t.Errorf("Again should shrink stability, got %v", next.Stability)
	}

	for _, tc := range []struct {
		prior   *MemoryState
		elapsed int
		rating  Rating
	}{
		{nil, -1, Good},
		{nil, 0, Rating(0)},
		{&MemoryState{Stability: 0, Difficulty: 5}, 1, Good},
		{&MemoryState{Stability: 3, Difficulty: 0}, 1, Good},
	} {
		if _, err := s.NextMemoryState(tc.prior, tc.elapsed, tc.rating); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("NextMemoryState(%+v, %d, %v) = %v, want ErrInvalidInput", tc.prior, tc.elapsed, tc.rating, err)
		}
	}
}

func TestNextIntervalExported(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{MaximumInterval: 30})
	if got, err := s.NextInterval(10); err != nil || got != 10 {
		t.Errorf("NextInterval(10) = %d, %v; want 10", got, err)
	}
	if got, _ := s.NextInterval(200); got != 30 {
		t.Errorf("NextInterval(200) = %d, want 30", got)
	}
	if _, err := s.NextInterval(0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("NextInterval(0) err = %v, want ErrInvalidInput", err)
	}
}

func TestRetrievabilityAt(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	r, err := s.RetrievabilityAt(7, 7)
	if err != nil {
		t.Fatal(err)
	}
	assertFloat(t, "R(7, 7)", r, 0.9)
	if _, err := s.RetrievabilityAt(7, -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative elapsed err = %v", err)
	}
	if _, err := s.RetrievabilityAt(0, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero stability err = %v", err)
	}
}

func TestRetrievability(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	if got := s.Retrievability(NewCard("c", t0), t0.Add(day)); got != 0 {
		t.Errorf("never-reviewed card R = %v, want 0", got)
	}
	card := reviewCard(10, 5)
	assertFloat(t, "R at last review", s.Retrievability(card, t0), 1)
	assertFloat(t, "R after S days", s.Retrievability(card, t0.Add(10*day)), 0.9)
}

// --- Due ordering ---

func TestSortByDue(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	strong := reviewCard(100, 5)
	strong.ID = "strong"
	weak := reviewCard(2, 5)
	weak.ID = "weak"
	later := reviewCard(10, 5)
	later.ID = "later"
	later.Due = t0.Add(20 * day)
	fresh := NewCard("fresh", t0.Add(10*day))

	cards := []Card{later, strong, weak, fresh}
	s.SortByDue(cards, t0.Add(10*day))

	var ids []string
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	want := []string{"fresh", "weak", "strong", "later"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestMostDue(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{})
	a := reviewCard(50, 5)
	a.ID = "a"
	b := reviewCard(3, 5)
	b.ID = "b"
	future := NewCard("future", t0.Add(100*day))

	got, ok := s.MostDue([]Card{a, future, b}, t0.Add(10*day))
	if !ok || got.ID != "b" {
		t.Errorf("MostDue = %q, %v; want b", got.ID, ok)
	}
	if _, ok := s.MostDue([]Card{future}, t0); ok {
		t.Error("MostDue should report no due card")
	}
}

// --- JSON ---

func TestSchedulerJSONRoundTrip(t *testing.T) {
	s := mustScheduler(t, SchedulerConfig{
		Weights:          DefaultWeights()[:WeightsFSRS5],
		DesiredRetention: 0.85,
		LearningSteps:    []time.Duration{30 * time.Second, 5 * time.Minute},
		RelearningSteps:  []time.Duration{},
		MaximumInterval:  365,
		EnableFuzzing:    true,
	})
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"learning_steps":["30s","5m0s"]`) {
		t.Errorf("steps should serialize as durations, got %s", data)
	}

	var got Scheduler
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got.Config(), s.Config()) {
		t.Errorf("config = %+v, want %+v", got.Config(), s.Config())
	}
	assertFloat(t, "decay", got.model.decay, -0.5)
}

func TestSchedulerJSONNullSteps(t *testing.T) {
	var s Scheduler
	if err := json.Unmarshal([]byte(`{"desired_retention":0.9}`), &s); err != nil {
		t.Fatal(err)
	}
	cfg := s.Config()
	if !reflect.DeepEqual(cfg.LearningSteps, DefaultLearningSteps()) || !reflect.DeepEqual(cfg.Weights, DefaultWeights()) {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestSchedulerJSONErrors(t *testing.T) {
	tests := []struct {
		name, data string
		want       error
	}{
		{"wrong field type", `{"maximum_interval":"long"}`, ErrInvalidInput},
		{"bad step", `{"learning_steps":["soon"]}`, ErrInvalidInput},
		{"bad weights", `{"weights":[1,2,3]}`, ErrInvalidParameters},
		{"bad retention", `{"desired_retention":2}`, ErrInvalidInput},
	}
	for _, tt := range tests {
		var s Scheduler
		if err := json.Unmarshal([]byte(tt.data), &s); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}
