package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/benmeehan/photogps/internal/constants"
	"github.com/benmeehan/photogps/internal/models"
	"github.com/benmeehan/photogps/pkg/file"
	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix is prepended to every environment override, e.g. PHOTOGPS_THREADS.
const EnvPrefix = "PHOTOGPS_"

// Config represents the structure of the configuration file.
type Config struct {
	Exiftool struct {
		// exiftool executable, looked up on PATH
		BinaryPath string `yaml:"binary_path" env:"EXIFTOOL_PATH, overwrite" validate:"required"`
		// Oldest exiftool release accepted
		MinVersion string `yaml:"min_version" env:"EXIFTOOL_MIN_VERSION, overwrite"`
		// Upper bound for a single exiftool call
		Timeout time.Duration `yaml:"timeout" env:"EXIFTOOL_TIMEOUT, overwrite" validate:"gt=0"`
	} `yaml:"exiftool"`

	Batch struct {
		// Worker pool size, 0 = one per logical CPU
		Threads int `yaml:"threads" env:"THREADS, overwrite" validate:"gte=0"`
		// Walk sub-directories
		Recursive bool `yaml:"recursive" env:"RECURSIVE, overwrite"`
		// Replace existing GPS tags in place
		Overwrite bool `yaml:"overwrite" env:"OVERWRITE, overwrite"`
		// Photo extension allowlist
		Extensions []string `yaml:"extensions" env:"EXTENSIONS, overwrite" validate:"dive,startswith=."`
		// Path substrings to ignore
		SkipPatterns []string `yaml:"skip_patterns" env:"SKIP_PATTERNS, overwrite"`
		// Sniff the MIME type instead of trusting extensions
		DetectContent bool `yaml:"detect_content" env:"DETECT_CONTENT, overwrite"`
		// Restore each photo's modification time after writing GPS tags
		PreserveMtime bool `yaml:"preserve_mtime" env:"PRESERVE_MTIME, overwrite"`
	} `yaml:"batch"`

	Matching struct {
		// 0 = unbounded
		MaxDelta time.Duration `yaml:"max_delta" env:"MAX_DELTA, overwrite" validate:"gte=0"`
	} `yaml:"matching"`

	CSV struct {
		// Abort on the first malformed row
		Strict bool `yaml:"strict" env:"CSV_STRICT, overwrite"`
		// Write a header row on save
		Header bool `yaml:"header" env:"CSV_HEADER, overwrite"`
	} `yaml:"csv"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL, overwrite" validate:"oneof=trace debug info warn warning error"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY, overwrite"`
	} `yaml:"logging"`

	Geocode struct {
		// Google Maps key, empty disables reverse geocoding
		MapsAPIKey string        `yaml:"maps_api_key" env:"MAPS_API_KEY, overwrite"`
		Timeout    time.Duration `yaml:"timeout" env:"GEOCODE_TIMEOUT, overwrite" validate:"gt=0"`
	} `yaml:"geocode"`
}

// DefaultConfig returns the configuration used when no file or overrides are given.
func DefaultConfig() *Config {
	var config Config
	config.Exiftool.BinaryPath = constants.DefaultExiftoolBinary
	config.Exiftool.MinVersion = constants.DefaultMinExiftoolVer
	config.Exiftool.Timeout = constants.DefaultExiftoolTimeout
	config.Batch.Threads = constants.DefaultThreads
	config.Batch.Recursive = true
	config.Batch.PreserveMtime = true
	config.Batch.Extensions = append([]string(nil), constants.DefaultPhotoExtensions...)
	config.Batch.SkipPatterns = append([]string(nil), constants.DefaultSkipPatterns...)
	config.Logging.Level = constants.DefaultLogLevel
	config.Logging.Pretty = true
	config.Geocode.Timeout = constants.DefaultGeocodeTimeout
	return &config
}

// LoadConfig builds the configuration from defaults, the optional YAML file and
// PHOTOGPS_* environment variables, in that order of precedence.
// An empty filename skips the file.
func LoadConfig(ctx context.Context, filename string, fileClient file.FileOperations, lookuper envconfig.Lookuper) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		exists, err := fileClient.IsFileExists(filename)
		if err != nil {
			return nil, fmt.Errorf("%w: config file %s: %v", models.ErrConfig, filename, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: config file %s does not exist", models.ErrConfig, filename)
		}
		if err := fileClient.ReadYamlFile(filename, config); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", models.ErrConfig, filename, err)
		}
	}

	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   config,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", models.ErrConfig, err)
	}

	return config, nil
}

// Validate checks the configuration once every layer has been applied.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConfig, err)
	}
	return nil
}
