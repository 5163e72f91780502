package models

import "time"

// PhotoEntry is a photo queued for processing. Timestamp is nil when the
// capture time could not be read.
type PhotoEntry struct {
	Path      string     `json:"path"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// MatchResult pairs a photo with the closest GPS record, if any.
type MatchResult struct {
	Photo  PhotoEntry
	Record GPSRecord
	Delta  time.Duration
	Found  bool
}

// Outcome of processing a single photo.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// PhotoResult is sent by a worker once a photo has been handled.
type PhotoResult struct {
	Path    string
	Outcome Outcome
	Err     error
}
