// Package fsrs implements the FSRS spaced repetition scheduling algorithm.
//
// A Scheduler turns a card's memory state, a rating and the review time
// into the next memory state, the next due date and a ReviewLog. It accepts
// FSRS-6 (21 weights) and FSRS-5 (19 weights) tables, never reads the clock
// and never mutates its inputs, so one Scheduler can serve any number of
// goroutines. Fuzzed intervals are seeded from the card ID and review time,
// which keeps replays reproducible.
//
// Basic usage:
//
//	s, err := fsrs.NewScheduler(fsrs.SchedulerConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	now := time.Now()
//	card := fsrs.NewCard("card-1", now)
//	card, rlog, err := s.ReviewCard(card, fsrs.Good, now)
//
// The wire package carries the same operations across a process boundary
// as validated JSON requests, and the simulator package picks a desired
// retention by Monte Carlo simulation.
package fsrs
