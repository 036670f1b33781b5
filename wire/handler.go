package wire

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/sky-flux/fsrs"
	"github.com/sky-flux/fsrs/internal/validation"
)

// DefaultMaxBatch bounds the number of reviews in one batch.
const DefaultMaxBatch = 1000

// Handler serves wire requests against a default scheduler. It is safe for
// concurrent use.
type Handler struct {
	scheduler *fsrs.Scheduler
	observer  Observer
	maxBatch  int
	workers   int
}

// Option configures a Handler.
type Option func(*Handler)

// WithObserver reports reviews and failures to o.
func WithObserver(o Observer) Option {
	return func(h *Handler) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithMaxBatch sets the largest accepted batch.
func WithMaxBatch(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBatch = n
		}
	}
}

// WithWorkers sets how many batch reviews run at once.
func WithWorkers(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.workers = n
		}
	}
}

// NewHandler returns a Handler that schedules with s unless a request
// carries its own config.
func NewHandler(s *fsrs.Scheduler, opts ...Option) *Handler {
	h := &Handler{
		scheduler: s,
		observer:  nopObserver{},
		maxBatch:  DefaultMaxBatch,
		workers:   runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Scheduler returns the default scheduler.
func (h *Handler) Scheduler() *fsrs.Scheduler {
	return h.scheduler
}

// Review reviews one card.
func (h *Handler) Review(req Request) (Response, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return Response{}, h.fail(err)
	}
	resp, err := h.review(req)
	if err != nil {
		return Response{}, h.fail(err)
	}
	return resp, nil
}

func (h *Handler) review(req Request) (Response, error) {
	s, err := h.schedulerFor(req.Config)
	if err != nil {
		return Response{}, err
	}
	card, log, err := s.ReviewCard(req.Card, req.Rating, req.Now)
	if err != nil {
		return Response{}, err
	}
	if req.ReviewDurationMS != nil {
		log = log.WithDuration(*req.ReviewDurationMS)
	}
	h.observer.ObserveReview(req.Rating, req.Card.State, card.State, card.ScheduledDays)
	return Response{
		Card:           card,
		Log:            log,
		Retrievability: s.Retrievability(req.Card, req.Now),
	}, nil
}

// Preview returns the outcome of each rating for one card.
func (h *Handler) Preview(req PreviewRequest) (PreviewResponse, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return PreviewResponse{}, h.fail(err)
	}
	s, err := h.schedulerFor(req.Config)
	if err != nil {
		return PreviewResponse{}, h.fail(err)
	}
	outcomes, err := s.PreviewCard(req.Card, req.Now)
	if err != nil {
		return PreviewResponse{}, h.fail(err)
	}

	named := make(map[string]fsrs.Outcome, len(outcomes))
	for r, o := range outcomes {
		named[r.String()] = o
	}
	return PreviewResponse{
		Outcomes:       named,
		Retrievability: s.Retrievability(req.Card, req.Now),
	}, nil
}

// Reschedule rebuilds one card from its review logs.
func (h *Handler) Reschedule(req RescheduleRequest) (RescheduleResponse, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return RescheduleResponse{}, h.fail(err)
	}
	s, err := h.schedulerFor(req.Config)
	if err != nil {
		return RescheduleResponse{}, h.fail(err)
	}
	card, err := s.RescheduleCard(req.Card, req.Logs)
	if err != nil {
		return RescheduleResponse{}, h.fail(err)
	}
	return RescheduleResponse{Card: card}, nil
}

// ReviewBatch reviews every request concurrently. A failed review is
// reported in its result, validation failures included, and does not stop
// the others. Only an empty or oversized batch or a cancelled context fails
// the call.
func (h *Handler) ReviewBatch(ctx context.Context, req BatchRequest) (BatchResponse, error) {
	if len(req.Reviews) > h.maxBatch {
		return BatchResponse{}, h.fail(invalidInput("batch of %d reviews exceeds the limit of %d", len(req.Reviews), h.maxBatch))
	}
	if err := validation.ValidateStruct(req); err != nil {
		return BatchResponse{}, h.fail(err)
	}
	h.observer.ObserveBatch(len(req.Reviews))

	results := make([]BatchResult, len(req.Reviews))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for i, r := range req.Reviews {
		results[i].Index = i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := validation.ValidateStruct(r); err != nil {
				results[i].Error = h.fail(err)
				return nil
			}
			resp, err := h.review(r)
			if err != nil {
				results[i].Error = h.fail(err)
				return nil
			}
			results[i].Response = &resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResponse{}, err
	}
	return BatchResponse{Results: results}, nil
}

func (h *Handler) fail(err error) *Error {
	we := AsError(err)
	h.observer.ObserveError(we.Code)
	return we
}

// schedulerFor returns the default scheduler, or a new one with cfg laid
// over the default settings.
func (h *Handler) schedulerFor(cfg *Config) (*fsrs.Scheduler, error) {
	if cfg == nil {
		return h.scheduler, nil
	}
	base := h.scheduler.Config()
	if cfg.Weights != nil {
		base.Weights = fsrs.WeightSet(cfg.Weights)
	}
	if cfg.DesiredRetention != 0 {
		base.DesiredRetention = cfg.DesiredRetention
	}
	if cfg.MaximumInterval != 0 {
		base.MaximumInterval = cfg.MaximumInterval
	}
	if cfg.EnableFuzzing != nil {
		base.EnableFuzzing = *cfg.EnableFuzzing
	}
	if cfg.LearningSteps != nil {
		steps, err := fsrs.ParseSteps(cfg.LearningSteps)
		if err != nil {
			return nil, err
		}
		base.LearningSteps = steps
	}
	if cfg.RelearningSteps != nil {
		steps, err := fsrs.ParseSteps(cfg.RelearningSteps)
		if err != nil {
			return nil, err
		}
		base.RelearningSteps = steps
	}
	return fsrs.NewScheduler(base)
}
