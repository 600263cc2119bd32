package domain

import "time"

// PollStats holds statistics about one feed poll pass.
type PollStats struct {
	Fetched   int
	New       int
	Updated   int
	Skipped   int
	Errors    int
	Published int
	Duration  time.Duration
}

// SweepStats holds statistics about one sweeper tier iteration.
type SweepStats struct {
	Checked int
	Removed int
	Errors  int
}
