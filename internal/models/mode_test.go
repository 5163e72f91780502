package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logExtensions = []string{".csv", ".nmea"}

// TestResolveMode tests direction inference from the positional arguments.
func TestResolveMode(t *testing.T) {
	tests := []struct {
		name          string
		first, second string
		want          Invocation
	}{
		{"extract", "photos", "out.csv", Invocation{Mode: ModeExtract, GPSLogPath: "out.csv", PhotosPath: "photos"}},
		{"inject csv", "track.CSV", "photos", Invocation{Mode: ModeInject, GPSLogPath: "track.CSV", PhotosPath: "photos"}},
		{"inject nmea", "track.nmea", "img.jpg", Invocation{Mode: ModeInject, GPSLogPath: "track.nmea", PhotosPath: "img.jpg"}},
		{"log first wins", "a.csv", "b.csv", Invocation{Mode: ModeInject, GPSLogPath: "a.csv", PhotosPath: "b.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveMode(tt.first, tt.second, logExtensions)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestResolveMode_NoLog tests that arguments without a GPS log are rejected.
func TestResolveMode_NoLog(t *testing.T) {
	for _, args := range [][2]string{{"photos", "more"}, {"photos", "track.nmea"}} {
		_, err := ResolveMode(args[0], args[1], logExtensions)
		assert.True(t, errors.Is(err, ErrConfig), "args %v", args)
	}
}

// TestReport_Add tests outcome tallying.
func TestReport_Add(t *testing.T) {
	var r Report
	r.Add(PhotoResult{Outcome: OutcomeSucceeded})
	r.Add(PhotoResult{Outcome: OutcomeSucceeded})
	r.Add(PhotoResult{Outcome: OutcomeFailed, Err: ErrPhotoRead})
	r.Add(PhotoResult{Outcome: OutcomeSkipped, Err: ErrNoMatch})

	assert.Equal(t, 2, r.Succeeded)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 4, r.Total())
	assert.Equal(t, "skipped", OutcomeSkipped.String())
}
