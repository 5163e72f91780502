package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode is the direction of a run.
type Mode int

const (
	// ModeExtract reads GPS tags from photos into a CSV log.
	ModeExtract Mode = iota + 1
	// ModeInject writes GPS tags from a log into photos.
	ModeInject
)

func (m Mode) String() string {
	switch m {
	case ModeExtract:
		return "extract"
	case ModeInject:
		return "inject"
	default:
		return "unknown"
	}
}

// MarshalText lets the mode show up by name in JSON and logs.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Invocation is the resolved positional arguments of the CLI.
type Invocation struct {
	Mode       Mode
	GPSLogPath string
	PhotosPath string
}

// ResolveMode decides the direction once from the two positional arguments.
// A GPS log first means inject; a CSV second means extract. Extract only ever
// writes CSV, so an NMEA file in second position is rejected.
func ResolveMode(first, second string, logExtensions []string) (Invocation, error) {
	switch {
	case hasExtension(first, logExtensions):
		return Invocation{Mode: ModeInject, GPSLogPath: first, PhotosPath: second}, nil
	case hasExtension(second, []string{".csv"}):
		return Invocation{Mode: ModeExtract, GPSLogPath: second, PhotosPath: first}, nil
	default:
		return Invocation{}, fmt.Errorf("%w: neither %q nor %q is a GPS log (%s)",
			ErrConfig, first, second, strings.Join(logExtensions, ", "))
	}
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
