// Package gpslog loads and saves the GPS log a run matches photos against.
//
// On disk a log is CSV with the columns timestamp, latitude, longitude and
// altitude. Timestamps are Unix epoch seconds with optional fractional digits.
package gpslog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/benmeehan/photogps/internal/models"
	"github.com/benmeehan/photogps/pkg/file"
	"github.com/rs/zerolog"
)

const columns = 4

var header = []string{"timestamp", "latitude", "longitude", "altitude"}

// Store owns the sorted GPS records of one run.
type Store struct {
	fileClient file.FileOperations
	strict     bool
	header     bool
	logger     zerolog.Logger

	records  []models.GPSRecord
	rejected int
}

// NewStore creates a Store. In strict mode the first malformed row aborts a load;
// otherwise it is logged, counted and skipped. header controls whether Save
// writes a header row.
func NewStore(fileClient file.FileOperations, strict, header bool, logger zerolog.Logger) *Store {
	return &Store{
		fileClient: fileClient,
		strict:     strict,
		header:     header,
		logger:     logger,
	}
}

// Records returns the records of the last load, sorted by timestamp.
func (s *Store) Records() []models.GPSRecord {
	return s.records
}

// Rejected returns how many rows the last load skipped.
func (s *Store) Rejected() int {
	return s.rejected
}

// Load reads a CSV log and returns its records sorted by timestamp.
// A non-numeric timestamp on the first row is taken as a header and ignored.
func (s *Store) Load(csvPath string) ([]models.GPSRecord, error) {
	f, err := s.fileClient.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open gps log %s: %v", models.ErrConfig, csvPath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var records []models.GPSRecord
	s.rejected = 0

	for row := 1; ; row++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to read gps log %s: %w", csvPath, err)
			}
			if err := s.reject(csvPath, row, err); err != nil {
				return nil, err
			}
			continue
		}

		if row == 1 && isHeader(fields) {
			s.logger.Debug().Str("file", csvPath).Msg("Skipping header row")
			continue
		}

		record, err := ParseRow(fields)
		if err != nil {
			if err := s.reject(csvPath, row, err); err != nil {
				return nil, err
			}
			continue
		}
		records = append(records, record)
	}

	SortRecords(records)
	s.records = records

	s.logger.Info().
		Str("file", csvPath).
		Int("records", len(records)).
		Int("rejected", s.rejected).
		Msg("GPS log loaded")
	return records, nil
}

// reject applies the strictness policy to a bad row.
func (s *Store) reject(path string, row int, cause error) error {
	err := fmt.Errorf("%w: %s row %d: %v", models.ErrParse, path, row, cause)
	if s.strict {
		return err
	}
	s.rejected++
	s.logger.Warn().Err(err).Msg("Skipping malformed gps log row")
	return nil
}

// Save writes records sorted by timestamp to csvPath, replacing the file.
func (s *Store) Save(csvPath string, records []models.GPSRecord) error {
	sorted := make([]models.GPSRecord, len(records))
	copy(sorted, records)
	SortRecords(sorted)

	err := s.fileClient.WriteAtomic(csvPath, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if s.header {
			if err := writer.Write(header); err != nil {
				return err
			}
		}
		for _, record := range sorted {
			if err := writer.Write(FormatRow(record)); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
	if err != nil {
		s.logger.Error().Err(err).Str("file", csvPath).Msg("Failed to save gps log")
		return fmt.Errorf("%w: failed to save %s: %w", models.ErrLogWrite, csvPath, err)
	}

	s.records = sorted
	s.logger.Info().Str("file", csvPath).Int("records", len(sorted)).Msg("GPS log saved")
	return nil
}

// ParseRow converts one CSV row into a record.
func ParseRow(fields []string) (models.GPSRecord, error) {
	if len(fields) != columns {
		return models.GPSRecord{}, fmt.Errorf("expected %d columns, got %d", columns, len(fields))
	}

	ts, err := ParseTimestamp(fields[0])
	if err != nil {
		return models.GPSRecord{}, err
	}

	var values [3]float64
	for i, name := range header[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return models.GPSRecord{}, fmt.Errorf("invalid %s %q", name, fields[i+1])
		}
		values[i] = v
	}

	return models.GPSRecord{
		Timestamp: ts,
		Latitude:  values[0],
		Longitude: values[1],
		Altitude:  values[2],
	}, nil
}

// FormatRow converts a record into its CSV row.
func FormatRow(record models.GPSRecord) []string {
	return []string{
		FormatTimestamp(record.Timestamp),
		strconv.FormatFloat(record.Latitude, 'f', -1, 64),
		strconv.FormatFloat(record.Longitude, 'f', -1, 64),
		strconv.FormatFloat(record.Altitude, 'f', -1, 64),
	}
}

// SortRecords orders records by timestamp. The sort is stable, so among equal
// timestamps the first-seen record stays first.
func SortRecords(records []models.GPSRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}

func isHeader(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	return errors.Is(err, strconv.ErrSyntax)
}
