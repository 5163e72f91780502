package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benmeehan/photogps/internal/constants"
	"github.com/benmeehan/photogps/internal/gpslog"
	"github.com/benmeehan/photogps/internal/models"
	"github.com/benmeehan/photogps/internal/scanner"
	"github.com/benmeehan/photogps/internal/services"
	"github.com/benmeehan/photogps/internal/utils"
	"github.com/benmeehan/photogps/pkg/exiftool"
	"github.com/benmeehan/photogps/pkg/file"
	"github.com/benmeehan/photogps/pkg/geocode"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flags holds the command line options; they override config values only when set.
type flags struct {
	configPath string
	threads    int
	overwrite  bool
	recursive  bool
	maxDelta   time.Duration
	strict     bool
	logLevel   string
}

func newRootCommand(exitCode *int) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "photogps <photos|gps-log> <gps-log|photos>",
		Short: "Synchronize GPS positions between a GPS log and photo metadata",
		Long: `Extract GPS tags from photos into a CSV log, or inject positions from a
CSV or NMEA log into photos by matching each photo to the closest fix in time.

  photogps <photos_dir_or_file> <gps.csv>            extract
  photogps <gps.csv|gps.nmea> <photos_dir_or_file>   inject`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := execute(cmd.Context(), cmd.Flags(), f, args, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				*exitCode = constants.ExitPartial
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fs.IntVarP(&f.threads, "threads", "t", constants.DefaultThreads, "number of concurrent exiftool workers, 0 = one per CPU")
	fs.BoolVarP(&f.overwrite, "overwrite", "o", false, "replace existing GPS tags in place")
	fs.BoolVarP(&f.recursive, "recursive", "r", true, "walk sub-directories")
	fs.DurationVar(&f.maxDelta, "max-delta", 0, "reject matches farther apart than this, 0 = unbounded")
	fs.BoolVar(&f.strict, "strict", false, "abort on malformed GPS log rows")
	fs.StringVar(&f.logLevel, "log-level", constants.DefaultLogLevel, "trace|debug|info|warn|error")

	return cmd
}

// loadConfig layers defaults, the config file, the environment and explicit flags.
func loadConfig(ctx context.Context, fs *pflag.FlagSet, f flags, fileClient file.FileOperations) (*utils.Config, error) {
	config, err := utils.LoadConfig(ctx, f.configPath, fileClient, nil)
	if err != nil {
		return nil, err
	}

	if fs.Changed("threads") {
		config.Batch.Threads = f.threads
	}
	if fs.Changed("overwrite") {
		config.Batch.Overwrite = f.overwrite
	}
	if fs.Changed("recursive") {
		config.Batch.Recursive = f.recursive
	}
	if fs.Changed("max-delta") {
		config.Matching.MaxDelta = f.maxDelta
	}
	if fs.Changed("strict") {
		config.CSV.Strict = f.strict
	}
	if fs.Changed("log-level") {
		config.Logging.Level = f.logLevel
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// execute wires the components for one run and prints its summary.
func execute(ctx context.Context, fs *pflag.FlagSet, f flags, args []string, out io.Writer) (models.Report, error) {
	fileClient := file.NewFileService()

	config, err := loadConfig(ctx, fs, f, fileClient)
	if err != nil {
		return models.Report{}, err
	}

	logger := utils.NewLogger(utils.LoggerOptions{
		Level:  config.Logging.Level,
		Pretty: config.Logging.Pretty,
	})

	invocation, err := models.ResolveMode(args[0], args[1], constants.LogExtensions)
	if err != nil {
		return models.Report{}, err
	}

	version, err := exiftool.Probe(ctx, config.Exiftool.BinaryPath, config.Exiftool.MinVersion)
	if err != nil {
		return models.Report{}, fmt.Errorf("%w: %v", models.ErrConfig, err)
	}
	logger.Debug().Str("binary", config.Exiftool.BinaryPath).Stringer("version", version).Msg("exiftool found")

	threads := utils.ResolveThreads(config.Batch.Threads)
	pool, err := exiftool.NewPool(exiftool.Options{
		BinaryPath: config.Exiftool.BinaryPath,
		Size:       threads,
		Timeout:    config.Exiftool.Timeout,
		KeepBackup: !config.Batch.Overwrite,
		KeepMtime:  config.Batch.PreserveMtime,
		Location:   time.Local,
	}, logger)
	if err != nil {
		return models.Report{}, fmt.Errorf("%w: failed to start exiftool: %v", models.ErrConfig, err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to stop exiftool")
		}
	}()

	store := gpslog.NewStore(fileClient, config.CSV.Strict, config.CSV.Header, logger)
	photoScanner := scanner.NewScanner(scanner.Options{
		Recursive:     config.Batch.Recursive,
		Extensions:    config.Batch.Extensions,
		SkipPatterns:  config.Batch.SkipPatterns,
		DetectContent: config.Batch.DetectContent,
	}, fileClient, logger)

	service := services.NewBatchService(pool, photoScanner, store,
		newGeocoder(config, invocation.Mode, logger), config.Matching.MaxDelta, logger)

	report, err := service.Run(ctx, services.BatchRequest{
		Mode:       invocation.Mode,
		GPSLogPath: invocation.GPSLogPath,
		PhotosPath: invocation.PhotosPath,
		Threads:    threads,
		Overwrite:  config.Batch.Overwrite,
	})
	if report.Total() > 0 || err == nil {
		printSummary(out, report, store.Rejected())
	}
	return report, err
}

// newGeocoder returns nil unless inject runs with a Maps API key.
func newGeocoder(config *utils.Config, mode models.Mode, logger zerolog.Logger) geocode.Provider {
	if mode != models.ModeInject || config.Geocode.MapsAPIKey == "" {
		return nil
	}
	g, err := geocode.NewGoogleReverseGeocoder(config.Geocode.MapsAPIKey, config.Geocode.Timeout)
	if err != nil {
		logger.Warn().Err(err).Msg("Reverse geocoding disabled")
		return nil
	}
	return g
}

func printSummary(out io.Writer, report models.Report, rejected int) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(out, "%s finished in %s: %s succeeded, %s failed, %s skipped\n",
		report.Mode, report.Duration.Round(time.Millisecond),
		green(report.Succeeded), red(report.Failed), yellow(report.Skipped))
	if rejected > 0 {
		fmt.Fprintf(out, "%s malformed GPS log rows ignored\n", yellow(rejected))
	}
}
