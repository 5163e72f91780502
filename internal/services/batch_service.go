package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/benmeehan/photogps/internal/constants"
	"github.com/benmeehan/photogps/internal/gpslog"
	"github.com/benmeehan/photogps/internal/matcher"
	"github.com/benmeehan/photogps/internal/models"
	"github.com/benmeehan/photogps/internal/utils"
	"github.com/benmeehan/photogps/pkg/exiftool"
	"github.com/benmeehan/photogps/pkg/geocode"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// PhotoScanner lists the photos below a path.
type PhotoScanner interface {
	Scan(root string) ([]string, error)
}

// BatchRequest describes one run.
type BatchRequest struct {
	Mode       models.Mode
	GPSLogPath string
	PhotosPath string
	Threads    int
	Overwrite  bool
}

// BatchService extracts GPS positions from photos into a log, or injects
// positions from a log into photos, one worker per concurrent exiftool call.
type BatchService struct {
	metadata exiftool.Client
	scanner  PhotoScanner
	store    *gpslog.Store
	geocoder geocode.Provider // optional
	maxDelta time.Duration
	logger   zerolog.Logger
}

// NewBatchService wires a BatchService. geocoder may be nil.
func NewBatchService(metadata exiftool.Client, scanner PhotoScanner, store *gpslog.Store,
	geocoder geocode.Provider, maxDelta time.Duration, logger zerolog.Logger) *BatchService {
	return &BatchService{
		metadata: metadata,
		scanner:  scanner,
		store:    store,
		geocoder: geocoder,
		maxDelta: maxDelta,
		logger:   logger,
	}
}

// Run processes every photo of req.PhotosPath. Per-photo problems are counted
// in the report; the returned error is reserved for configuration problems, a
// failed log save, and cancellation (with the partial report).
func (b *BatchService) Run(ctx context.Context, req BatchRequest) (models.Report, error) {
	started := time.Now()
	report := models.Report{RunID: uuid.NewString(), Mode: req.Mode}
	logger := b.logger.With().Str("run_id", report.RunID).Stringer("mode", req.Mode).Logger()

	photos, err := b.scanner.Scan(req.PhotosPath)
	if err != nil {
		logger.Error().Err(err).Str("path", req.PhotosPath).Msg("Failed to enumerate photos")
		return report, err
	}
	logger.Info().
		Str("photos_path", req.PhotosPath).
		Str("gps_log", req.GPSLogPath).
		Int("photos", len(photos)).
		Int("threads", req.Threads).
		Bool("overwrite", req.Overwrite).
		Msg("Batch started")

	switch req.Mode {
	case models.ModeInject:
		err = b.inject(ctx, req, photos, &report, logger)
	case models.ModeExtract:
		err = b.extract(ctx, req, photos, &report, logger)
	default:
		err = fmt.Errorf("%w: unknown mode %d", models.ErrConfig, req.Mode)
	}

	report.Duration = time.Since(started)
	logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("duration", report.Duration).
		Msg("Batch finished")
	return report, err
}

func (b *BatchService) inject(ctx context.Context, req BatchRequest, photos []string, report *models.Report, logger zerolog.Logger) error {
	records, err := b.loadLog(req.GPSLogPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load gps log")
		return err
	}
	if len(records) == 0 {
		logger.Warn().Str("gps_log", req.GPSLogPath).Msg("GPS log has no records, nothing can be matched")
	}

	m := matcher.NewMatcher(records, b.maxDelta)
	b.dispatch(ctx, photos, req.Threads, report, logger, func(path string) models.PhotoResult {
		return b.injectPhoto(ctx, m, path, req.Overwrite, logger)
	})
	return ctx.Err()
}

func (b *BatchService) extract(ctx context.Context, req BatchRequest, photos []string, report *models.Report, logger zerolog.Logger) error {
	collected := cmap.New[models.GPSRecord]()
	b.dispatch(ctx, photos, req.Threads, report, logger, func(path string) models.PhotoResult {
		return b.extractPhoto(ctx, path, collected, logger)
	})

	// Path order first so that photos sharing a timestamp are saved deterministically.
	items := collected.Items()
	paths := make([]string, 0, len(items))
	for path := range items {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	records := make([]models.GPSRecord, 0, len(paths))
	for _, path := range paths {
		records = append(records, items[path])
	}

	if err := b.store.Save(req.GPSLogPath, records); err != nil {
		return err
	}
	return ctx.Err()
}

// dispatch fans photos out over a worker pool and tallies results on a single goroutine.
func (b *BatchService) dispatch(ctx context.Context, photos []string, threads int, report *models.Report,
	logger zerolog.Logger, task func(path string) models.PhotoResult) {
	pool := utils.NewWorkerPool(threads)
	results := make(chan models.PhotoResult, pool.Size())
	tallied := make(chan struct{})

	go func() {
		defer close(tallied)
		for res := range results {
			report.Add(res)
		}
	}()

	for i, path := range photos {
		path := path
		if err := pool.Submit(ctx, func() { results <- task(path) }); err != nil {
			logger.Warn().Err(err).Int("not_started", len(photos)-i).Msg("Batch interrupted")
			break
		}
	}

	pool.Shutdown()
	close(results)
	<-tallied
}

func (b *BatchService) injectPhoto(ctx context.Context, m *matcher.Matcher, path string, overwrite bool, logger zerolog.Logger) models.PhotoResult {
	log := logger.With().Str("photo", path).Logger()

	md, err := b.metadata.ReadTimestampAndGPS(ctx, path)
	if err != nil {
		return failed(log, path, fmt.Errorf("%w: %v", models.ErrPhotoRead, err))
	}
	if md.Timestamp == nil {
		return failed(log, path, fmt.Errorf("%w: no capture timestamp", models.ErrPhotoRead))
	}
	match := m.Match(models.PhotoEntry{Path: path, Timestamp: md.Timestamp})
	if !match.Found {
		err := fmt.Errorf("%w: closest record is %s away", models.ErrNoMatch, match.Delta)
		if m.Len() == 0 {
			err = fmt.Errorf("%w: gps log is empty", models.ErrNoMatch)
		}
		log.Warn().Err(err).Time("taken", *md.Timestamp).Dur("max_delta", m.MaxDelta()).Msg("Photo skipped")
		return models.PhotoResult{Path: path, Outcome: models.OutcomeSkipped, Err: err}
	}

	point := exiftool.Point{
		Latitude:  match.Record.Latitude,
		Longitude: match.Record.Longitude,
		Altitude:  match.Record.Altitude,
	}
	if err := b.metadata.WriteGPS(ctx, md, point, overwrite); err != nil {
		if errors.Is(err, exiftool.ErrGPSPresent) {
			return failed(log, path, fmt.Errorf("%w: %v, use --overwrite to replace", models.ErrPhotoWrite, err))
		}
		return failed(log, path, fmt.Errorf("%w: %v", models.ErrPhotoWrite, err))
	}

	event := log.Info().
		Time("taken", *md.Timestamp).
		Time("fix", match.Record.Timestamp).
		Dur("delta", match.Delta).
		Float64("lat", point.Latitude).
		Float64("lon", point.Longitude).
		Float64("alt", point.Altitude)
	if address := b.address(ctx, point, log); address != "" {
		event = event.Str("address", address)
	}
	event.Msg("GPS written")

	return models.PhotoResult{Path: path, Outcome: models.OutcomeSucceeded}
}

func (b *BatchService) extractPhoto(ctx context.Context, path string, collected cmap.ConcurrentMap[string, models.GPSRecord], logger zerolog.Logger) models.PhotoResult {
	log := logger.With().Str("photo", path).Logger()

	md, err := b.metadata.ReadTimestampAndGPS(ctx, path)
	if err != nil {
		return failed(log, path, fmt.Errorf("%w: %v", models.ErrPhotoRead, err))
	}
	if md.Timestamp == nil {
		return failed(log, path, fmt.Errorf("%w: no capture timestamp", models.ErrPhotoRead))
	}
	if !md.HasGPS {
		log.Debug().Msg("Photo has no GPS tags")
		return models.PhotoResult{Path: path, Outcome: models.OutcomeSkipped}
	}

	collected.Set(path, models.GPSRecord{
		Timestamp: *md.Timestamp,
		Latitude:  md.Point.Latitude,
		Longitude: md.Point.Longitude,
		Altitude:  md.Point.Altitude,
	})
	log.Info().
		Time("taken", *md.Timestamp).
		Float64("lat", md.Point.Latitude).
		Float64("lon", md.Point.Longitude).
		Msg("GPS read")
	return models.PhotoResult{Path: path, Outcome: models.OutcomeSucceeded}
}

// address is display only; lookup failures never affect the outcome.
func (b *BatchService) address(ctx context.Context, point exiftool.Point, log zerolog.Logger) string {
	if b.geocoder == nil {
		return ""
	}
	address, err := b.geocoder.ReverseGeocode(ctx, point.Latitude, point.Longitude)
	if err != nil {
		log.Warn().Err(err).Msg("Reverse geocoding failed")
		return ""
	}
	return address
}

func (b *BatchService) loadLog(path string) ([]models.GPSRecord, error) {
	if strings.EqualFold(filepath.Ext(path), constants.NMEAExtension) {
		return b.store.LoadNMEA(path)
	}
	return b.store.Load(path)
}

func failed(log zerolog.Logger, path string, err error) models.PhotoResult {
	if errors.Is(err, models.ErrPhotoWrite) {
		log.Error().Err(err).Msg("Failed to write photo")
	} else {
		log.Error().Err(err).Msg("Failed to read photo")
	}
	return models.PhotoResult{Path: path, Outcome: models.OutcomeFailed, Err: err}
}
