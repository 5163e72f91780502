package gpslog

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/photogps/internal/mocks"
	"github.com/benmeehan/photogps/internal/models"
	"github.com/benmeehan/photogps/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestStore(strict, header bool) *Store {
	return NewStore(file.NewFileService(), strict, header, zerolog.Nop())
}

// TestStore_Load_SortsByTimestamp checks rows come back in ascending time order.
func TestStore_Load_SortsByTimestamp(t *testing.T) {
	path := writeLog(t, "gps.csv", "200,1.1,2.1,3.1\n100,1.0,2.0,3.0\n")
	store := newTestStore(false, false)

	records, err := store.Load(path)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(100), records[0].Timestamp.Unix())
	assert.Equal(t, int64(200), records[1].Timestamp.Unix())
	assert.Equal(t, 1.1, records[1].Latitude)
	assert.Equal(t, 2.1, records[1].Longitude)
	assert.Equal(t, 3.1, records[1].Altitude)
	assert.Equal(t, records, store.Records())
}

// TestStore_Load_SkipsHeader checks a textual first row is ignored.
func TestStore_Load_SkipsHeader(t *testing.T) {
	path := writeLog(t, "gps.csv", "timestamp,latitude,longitude,altitude\n100,1,2,3\n")
	store := newTestStore(true, false)

	records, err := store.Load(path)

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Zero(t, store.Rejected())
}

// TestStore_Load_Tolerant checks malformed rows are counted and skipped.
func TestStore_Load_Tolerant(t *testing.T) {
	path := writeLog(t, "gps.csv", "100,1,2,3\n150,abc,2,3\n160,1,2\n200,1,2,3\n")
	store := newTestStore(false, false)

	records, err := store.Load(path)

	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, store.Rejected())
}

// TestStore_Load_Strict checks the first malformed row aborts the load.
func TestStore_Load_Strict(t *testing.T) {
	path := writeLog(t, "gps.csv", "100,1,2,3\n150,abc,2,3\n")
	store := newTestStore(true, false)

	_, err := store.Load(path)

	assert.ErrorIs(t, err, models.ErrParse)
	assert.Contains(t, err.Error(), "row 2")
}

// TestStore_Load_MissingFile checks an unreadable log is a configuration error.
func TestStore_Load_MissingFile(t *testing.T) {
	store := newTestStore(false, false)

	_, err := store.Load(filepath.Join(t.TempDir(), "missing.csv"))

	assert.ErrorIs(t, err, models.ErrConfig)
}

// TestStore_Load_DuplicatesKeepFileOrder checks equal timestamps stay in first-seen order.
func TestStore_Load_DuplicatesKeepFileOrder(t *testing.T) {
	path := writeLog(t, "gps.csv", "100,9,9,9\n50,0,0,0\n100,1,1,1\n")
	store := newTestStore(false, false)

	records, err := store.Load(path)

	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 9.0, records[1].Latitude)
	assert.Equal(t, 1.0, records[2].Latitude)
}

// TestStore_SaveLoad_RoundTrip checks save(load(csv)) reproduces the sorted file.
func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	content := "100,1.5,2.25,3\n1700000000.123,-33.8688,151.2093,58.5\n50,-1,-2,-3\n"
	path := writeLog(t, "gps.csv", content)
	store := newTestStore(true, false)

	records, err := store.Load(path)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, store.Save(out, records))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "50,-1,-2,-3\n100,1.5,2.25,3\n1700000000.123,-33.8688,151.2093,58.5\n", string(data))

	again, err := store.Load(out)
	require.NoError(t, err)
	assert.Equal(t, records, again)
}

// TestStore_Save_WriteFailure checks a failed save is reported as a log write error.
func TestStore_Save_WriteFailure(t *testing.T) {
	// Setup
	fileClient := new(mocks.MockFileOperations)
	fileClient.On("WriteAtomic", "out.csv", mock.Anything).Return(errors.New("disk full"))
	store := NewStore(fileClient, false, false, zerolog.Nop())

	// Test
	err := store.Save("out.csv", []models.GPSRecord{{Timestamp: time.Unix(100, 0)}})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrLogWrite)
	assert.Contains(t, err.Error(), "disk full")
	fileClient.AssertExpectations(t)
}

// TestStore_Save_Header checks the optional header row and sorting on save.
func TestStore_Save_Header(t *testing.T) {
	store := newTestStore(false, true)
	out := filepath.Join(t.TempDir(), "out.csv")
	records := []models.GPSRecord{
		{Timestamp: time.Unix(200, 0), Latitude: 1.1, Longitude: 2.1, Altitude: 3.1},
		{Timestamp: time.Unix(100, 0), Latitude: 1, Longitude: 2, Altitude: 3},
	}

	require.NoError(t, store.Save(out, records))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,latitude,longitude,altitude\n100,1,2,3\n200,1.1,2.1,3.1\n", string(data))
	// caller's slice is untouched
	assert.Equal(t, int64(200), records[0].Timestamp.Unix())
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]time.Time{
		"100":          time.Unix(100, 0),
		" 100.25 ":     time.Unix(100, 250000000),
		"1.7e9":        time.Unix(1700000000, 0),
		"-1.5":         time.Unix(-1, -500000000),
		"1700000000.5": time.Unix(1700000000, 500000000),
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		if assert.NoError(t, err, in) {
			assert.True(t, want.Equal(got), "%s: want %v got %v", in, want, got)
		}
	}

	for _, in := range []string{"", "abc", "NaN", "inf", "2024-01-01",
		"1e20", "-1e20", "1e300", "99999999999999999999", "-9223372036854775808.5"} {
		_, err := ParseTimestamp(in)
		assert.Error(t, err, in)
	}

	largest, err := ParseTimestamp("9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), largest.Unix())
}

// TestStore_Load_OutOfRangeTimestamp checks unrepresentable instants are rejected rows, not records.
func TestStore_Load_OutOfRangeTimestamp(t *testing.T) {
	path := writeLog(t, "gps.csv", "100,1,2,3\n1e20,4,5,6\n")

	tolerant := newTestStore(false, false)
	records, err := tolerant.Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, tolerant.Rejected())

	_, err = newTestStore(true, false).Load(path)
	assert.ErrorIs(t, err, models.ErrParse)

	// not mistaken for a header on the first row either
	first := writeLog(t, "first.csv", "1e20,4,5,6\n100,1,2,3\n")
	_, err = newTestStore(true, false).Load(first)
	assert.ErrorIs(t, err, models.ErrParse)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "100", FormatTimestamp(time.Unix(100, 0)))
	assert.Equal(t, "100.25", FormatTimestamp(time.Unix(100, 250000000)))
	assert.Equal(t, "-1.5", FormatTimestamp(time.Unix(-1, -500000000)))
	assert.Equal(t, "-0.5", FormatTimestamp(time.Unix(0, -500000000)))
}
