package exiftool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const probeTimeout = 10 * time.Second

var (
	// ErrNotInstalled means the exiftool binary could not be found.
	ErrNotInstalled = errors.New("exiftool not found")
	// ErrUnsupportedVersion means the installed exiftool is older than required.
	ErrUnsupportedVersion = errors.New("unsupported exiftool version")
)

// Probe checks that binary is runnable and at least minVersion (e.g. "10.0").
// An empty minVersion skips the version gate. It returns the installed version.
func Probe(ctx context.Context, binary, minVersion string) (*semver.Version, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-ver").Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s -ver timed out", ErrNotInstalled, path)
		}
		return nil, fmt.Errorf("%w: %s -ver: %v", ErrNotInstalled, path, err)
	}

	version, err := ParseVersion(string(out))
	if err != nil {
		return nil, err
	}
	if minVersion == "" {
		return version, nil
	}

	minimum, err := ParseVersion(minVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum version: %w", err)
	}
	if version.LessThan(minimum) {
		return version, fmt.Errorf("%w: %s is older than %s", ErrUnsupportedVersion, version, minimum)
	}
	return version, nil
}

// ParseVersion reads exiftool's "major.minor" version string. exiftool pads the
// minor number ("13.00"), which semver would reject, so segments are normalised.
func ParseVersion(raw string) (*semver.Version, error) {
	raw = strings.TrimSpace(raw)
	segments := strings.Split(raw, ".")
	if len(segments) == 0 || len(segments) > 3 {
		return nil, fmt.Errorf("invalid exiftool version %q", raw)
	}
	for i, seg := range segments {
		n, err := strconv.Atoi(seg)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid exiftool version %q", raw)
		}
		segments[i] = strconv.Itoa(n)
	}
	return semver.NewVersion(strings.Join(segments, "."))
}
