// Package simulator picks a desired retention by Monte Carlo simulation.
//
// A [Profile] describes how a learner rates cards and how long each review
// takes. [FromLogs] estimates one from review history; [DefaultProfile]
// stands in when there is none. [OptimalRetention] simulates a deck for each
// candidate retention with a fixed weight set and returns the candidate with
// the lowest review time per remembered card.
//
// # Usage
//
//	profile, err := simulator.FromLogs(logs)
//	report, err := simulator.OptimalRetention(ctx, simulator.Config{Weights: w}, profile)
//	fmt.Println(report.Best.Retention)
//
// # Data Requirements
//
// FromLogs requires at least 512 logs, all with ReviewDuration set.
//
// [Evaluate] scores how well a weight table predicts recall in a review
// history. Weights are never fitted here; both tools apply them as given.
package simulator
