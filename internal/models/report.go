package models

import "time"

// Report summarises a batch run.
type Report struct {
	RunID     string        `json:"run_id"`
	Mode      Mode          `json:"mode"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Add tallies one photo result.
func (r *Report) Add(res PhotoResult) {
	switch res.Outcome {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
}

// Total returns the number of photos accounted for.
func (r Report) Total() int {
	return r.Succeeded + r.Failed + r.Skipped
}
