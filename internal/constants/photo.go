package constants

import "time"

const (
	DefaultThreads         = 1
	DefaultExiftoolBinary  = "exiftool"
	DefaultExiftoolTimeout = 30 * time.Second // per invocation
	DefaultMinExiftoolVer  = "10.0"
	DefaultGeocodeTimeout  = 10 * time.Second
	DefaultLogLevel        = "info"
)

// DefaultPhotoExtensions is the allowlist used when enumerating a directory.
var DefaultPhotoExtensions = []string{
	".jpg", ".jpeg", ".png", ".tif", ".tiff", ".raw", ".cr2",
	".arw", ".hif", ".heic", ".dng", ".nef",
}

// DefaultSkipPatterns are path substrings that are never processed.
var DefaultSkipPatterns = []string{"thumb"}

// GPS log extensions, checked case-insensitively.
const (
	CSVExtension  = ".csv"
	NMEAExtension = ".nmea"
)

var LogExtensions = []string{CSVExtension, NMEAExtension}

// Process exit codes
const (
	ExitOK          = 0
	ExitPartial     = 1
	ExitConfig      = 2
	ExitInterrupted = 130
)
