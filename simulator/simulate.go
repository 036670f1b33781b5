package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sky-flux/fsrs"
)

// DefaultCandidates are the retentions compared when Config.Candidates is empty.
var DefaultCandidates = []float64{0.70, 0.75, 0.80, 0.85, 0.90, 0.95}

const (
	defaultCards = 1000
	defaultDays  = 365
	defaultSeed  = 42
)

// simulationStart anchors every simulated deck.
var simulationStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Config controls a simulation. Zero values select defaults.
type Config struct {
	Weights    fsrs.WeightSet
	Candidates []float64
	Cards      int    // deck size, default 1000
	Days       int    // simulated period, default 365
	Seed       uint64 // default 42
	Workers    int    // candidates simulated at once, default GOMAXPROCS
}

// Result is the simulated cost of one retention.
type Result struct {
	Retention float64 `json:"retention" yaml:"retention"`
	// Cost is review time in milliseconds per remembered card.
	Cost    float64 `json:"cost" yaml:"cost"`
	Reviews int     `json:"reviews" yaml:"reviews"`
}

// Report holds the cheapest candidate and every candidate's result, in
// candidate order.
type Report struct {
	Best    Result   `json:"best" yaml:"best"`
	Results []Result `json:"results" yaml:"results"`
}

func (c Config) withDefaults() Config {
	if len(c.Candidates) == 0 {
		c.Candidates = DefaultCandidates
	}
	if c.Cards <= 0 {
		c.Cards = defaultCards
	}
	if c.Days <= 0 {
		c.Days = defaultDays
	}
	if c.Seed == 0 {
		c.Seed = defaultSeed
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// OptimalRetention simulates every candidate retention and returns the one
// with the lowest cost per remembered card. Ties go to the earlier
// candidate. Every candidate sees the same random stream.
func OptimalRetention(ctx context.Context, cfg Config, p Profile) (Report, error) {
	cfg = cfg.withDefaults()
	if err := p.Validate(); err != nil {
		return Report{}, err
	}

	schedulers := make([]*fsrs.Scheduler, len(cfg.Candidates))
	for i, r := range cfg.Candidates {
		s, err := fsrs.NewScheduler(fsrs.SchedulerConfig{
			Weights:          cfg.Weights,
			DesiredRetention: r,
		})
		if err != nil {
			return Report{}, fmt.Errorf("candidate %v: %w", r, err)
		}
		schedulers[i] = s
	}

	results := make([]Result, len(cfg.Candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, s := range schedulers {
		g.Go(func() error {
			res, err := simulate(ctx, s, cfg, p)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Cost < best.Cost {
			best = r
		}
	}
	return Report{Best: best, Results: slices.Clone(results)}, nil
}

// simulate reviews a deck of new cards for cfg.Days. A non-first review is
// recalled with probability equal to the desired retention, since that is
// the recall probability at each scheduled due date.
func simulate(ctx context.Context, s *fsrs.Scheduler, cfg Config, p Profile) (Result, error) {
	retention := s.Config().DesiredRetention
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d))
	end := simulationStart.AddDate(0, 0, cfg.Days)

	var total float64
	var reviews int
	for i := range cfg.Cards {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		card := fsrs.NewCard("sim-"+strconv.Itoa(i), simulationStart)
		now := simulationStart
		first := true

		for !now.After(end) {
			var r fsrs.Rating
			switch {
			case first:
				r = pick(rng.Float64(), p.FirstRating[:], fsrs.Again)
				total += p.FirstDuration[r-1]
				first = false
			case rng.Float64() < retention:
				r = pick(rng.Float64(), p.RecallRating[1:], fsrs.Hard)
				total += p.Duration[r-1]
			default:
				r = fsrs.Again
				total += p.Duration[0]
			}

			next, _, err := s.ReviewCard(card, r, now)
			if err != nil {
				return Result{}, fmt.Errorf("simulate retention %v: %w", retention, err)
			}
			card, now = next, next.Due
			reviews++
		}
	}

	cost := total / (retention * float64(cfg.Cards))
	if math.IsNaN(cost) {
		cost = math.Inf(1)
	}
	return Result{Retention: retention, Cost: cost, Reviews: reviews}, nil
}

// pick maps u in [0,1) onto probs and returns the chosen rating, counting
// from base.
func pick(u float64, probs []float64, base fsrs.Rating) fsrs.Rating {
	var acc float64
	for i, pr := range probs {
		acc += pr
		if u < acc {
			return base + fsrs.Rating(i)
		}
	}
	return base + fsrs.Rating(len(probs)-1)
}
