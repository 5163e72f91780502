package gpslog

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/benmeehan/photogps/internal/models"
)

// errUnusedSentence stops parsing of sentence types that carry no fix we use.
var errUnusedSentence = errors.New("unused sentence type")

type rmcFix struct {
	sentence nmea.RMC
	lastAlt  float64
}

// LoadNMEA reads a raw NMEA 0183 logger file. Every valid RMC sentence becomes
// a record; its altitude comes from the GGA sentence with the same time of day,
// falling back to the most recent GGA altitude seen before it.
func (s *Store) LoadNMEA(path string) ([]models.GPSRecord, error) {
	f, err := s.fileClient.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open gps log %s: %v", models.ErrConfig, path, err)
	}
	defer f.Close()

	var (
		fixes    []rmcFix
		altByTOD = make(map[int]float64)
		lastAlt  float64
		invalid  int
	)
	s.rejected = 0

	// Checksums are verified for every sentence; field parsing only for RMC and GGA.
	parser := nmea.SentenceParser{
		OnBaseSentence: func(base *nmea.BaseSentence) error {
			if base.Type != nmea.TypeRMC && base.Type != nmea.TypeGGA {
				return errUnusedSentence
			}
			return nil
		},
	}

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		sentence, err := parser.Parse(text)
		var unsupported *nmea.NotSupportedError
		if errors.Is(err, errUnusedSentence) || errors.As(err, &unsupported) {
			continue
		}
		if err != nil {
			if err := s.reject(path, line, err); err != nil {
				return nil, err
			}
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeGGA:
			gga := sentence.(nmea.GGA)
			if gga.FixQuality == nmea.Invalid || !gga.Time.Valid {
				continue
			}
			altByTOD[timeOfDay(gga.Time)] = gga.Altitude
			lastAlt = gga.Altitude
		case nmea.TypeRMC:
			rmc := sentence.(nmea.RMC)
			if rmc.Validity != nmea.ValidRMC || !rmc.Time.Valid || !rmc.Date.Valid {
				invalid++
				continue
			}
			fixes = append(fixes, rmcFix{sentence: rmc, lastAlt: lastAlt})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gps log %s: %w", path, err)
	}

	records := make([]models.GPSRecord, 0, len(fixes))
	for _, fix := range fixes {
		alt, ok := altByTOD[timeOfDay(fix.sentence.Time)]
		if !ok {
			alt = fix.lastAlt
		}
		records = append(records, models.GPSRecord{
			Timestamp: nmeaTime(fix.sentence.Date, fix.sentence.Time),
			Latitude:  fix.sentence.Latitude,
			Longitude: fix.sentence.Longitude,
			Altitude:  alt,
		})
	}

	SortRecords(records)
	s.records = records

	s.logger.Info().
		Str("file", path).
		Int("records", len(records)).
		Int("rejected", s.rejected).
		Int("no_fix", invalid).
		Msg("NMEA log loaded")
	return records, nil
}

func timeOfDay(t nmea.Time) int {
	return ((t.Hour*60+t.Minute)*60+t.Second)*1000 + t.Millisecond
}

// nmeaTime combines an RMC date and time. NMEA times are UTC and years have two digits.
func nmeaTime(d nmea.Date, t nmea.Time) time.Time {
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
