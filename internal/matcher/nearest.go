// Package matcher pairs photo capture times with the closest GPS record.
package matcher

import (
	"sort"
	"time"

	"github.com/benmeehan/photogps/internal/gpslog"
	"github.com/benmeehan/photogps/internal/models"
)

// FindNearest returns the record of sorted closest to target and the absolute
// time between them. When two records are equally close the earlier one wins,
// and among identical timestamps the first in slice order wins.
// ok is false only when sorted is empty.
func FindNearest(sorted []models.GPSRecord, target time.Time) (record models.GPSRecord, delta time.Duration, ok bool) {
	if len(sorted) == 0 {
		return models.GPSRecord{}, 0, false
	}

	// First index whose timestamp is not before target.
	i := sort.Search(len(sorted), func(i int) bool {
		return !sorted[i].Timestamp.Before(target)
	})

	if i == 0 {
		return sorted[0], sorted[0].Delta(target), true
	}

	// sorted[i-1] may be the last of several equal timestamps; take the first.
	prev := sorted[i-1].Timestamp
	before := sort.Search(i, func(j int) bool {
		return !sorted[j].Timestamp.Before(prev)
	})
	beforeDelta := sorted[before].Delta(target)
	if i == len(sorted) {
		return sorted[before], beforeDelta, true
	}

	afterDelta := sorted[i].Delta(target)
	if beforeDelta <= afterDelta {
		return sorted[before], beforeDelta, true
	}
	return sorted[i], afterDelta, true
}

// Matcher holds an immutable sorted copy of a GPS log. It is safe for
// concurrent use by any number of workers.
type Matcher struct {
	records  []models.GPSRecord
	maxDelta time.Duration
}

// NewMatcher sorts a private copy of records once. A maxDelta of zero means
// any distance is accepted.
func NewMatcher(records []models.GPSRecord, maxDelta time.Duration) *Matcher {
	sorted := make([]models.GPSRecord, len(records))
	copy(sorted, records)
	gpslog.SortRecords(sorted)

	return &Matcher{
		records:  sorted,
		maxDelta: maxDelta,
	}
}

// Len returns the number of records available for matching.
func (m *Matcher) Len() int {
	return len(m.records)
}

// MaxDelta returns the configured threshold, zero when unbounded.
func (m *Matcher) MaxDelta() time.Duration {
	return m.maxDelta
}

// Match finds the record for a photo. Found is false when the photo has no
// timestamp, the log is empty, or the closest record is beyond the threshold;
// in the last case Record and Delta still describe the rejected candidate.
func (m *Matcher) Match(photo models.PhotoEntry) models.MatchResult {
	result := models.MatchResult{Photo: photo}
	if photo.Timestamp == nil {
		return result
	}

	record, delta, ok := FindNearest(m.records, *photo.Timestamp)
	if !ok {
		return result
	}
	result.Record = record
	result.Delta = delta
	result.Found = m.maxDelta == 0 || delta <= m.maxDelta
	return result
}
