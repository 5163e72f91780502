package exiftool

import (
	"fmt"
	"strings"
	"time"

	goexiftool "github.com/barasher/go-exiftool"
)

// Tags read for the capture time, in order of preference.
var captureTimeTags = []string{"DateTimeOriginal", "CreateDate", "DateTime"}

// GPS tag names as understood by exiftool.
const (
	tagGPSLatitude     = "GPSLatitude"
	tagGPSLatitudeRef  = "GPSLatitudeRef"
	tagGPSLongitude    = "GPSLongitude"
	tagGPSLongitudeRef = "GPSLongitudeRef"
	tagGPSAltitude     = "GPSAltitude"
	tagGPSAltitudeRef  = "GPSAltitudeRef"
)

// exifDateLayout is how exiftool prints EXIF date/time values.
const exifDateLayout = "2006:01:02 15:04:05"

// Point is a position in signed decimal degrees and metres.
type Point struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Metadata is what a photo says about when and where it was taken.
type Metadata struct {
	Path      string
	Timestamp *time.Time // nil when no capture time tag could be parsed
	HasGPS    bool
	Point     Point
}

// parseMetadata turns exiftool's tag map into Metadata. It never fails on
// missing tags; callers decide what a missing timestamp or position means.
func parseMetadata(fm goexiftool.FileMetadata, loc *time.Location) Metadata {
	md := Metadata{Path: fm.File}

	for _, tag := range captureTimeTags {
		raw, err := fm.GetString(tag)
		if err != nil {
			continue
		}
		if ts, err := parseExifTime(raw, loc); err == nil {
			md.Timestamp = &ts
			break
		}
	}

	lat, latErr := fm.GetFloat(tagGPSLatitude)
	lon, lonErr := fm.GetFloat(tagGPSLongitude)
	if latErr != nil || lonErr != nil {
		return md
	}

	// Composite tags are already signed; the refs only matter for raw EXIF values.
	if ref, err := fm.GetString(tagGPSLatitudeRef); err == nil && strings.HasPrefix(strings.ToUpper(ref), "S") && lat > 0 {
		lat = -lat
	}
	if ref, err := fm.GetString(tagGPSLongitudeRef); err == nil && strings.HasPrefix(strings.ToUpper(ref), "W") && lon > 0 {
		lon = -lon
	}

	var alt float64
	if v, err := fm.GetFloat(tagGPSAltitude); err == nil {
		alt = v
		if ref, err := fm.GetInt(tagGPSAltitudeRef); err == nil && ref == 1 && alt > 0 {
			alt = -alt
		}
	}

	md.HasGPS = true
	md.Point = Point{Latitude: lat, Longitude: lon, Altitude: alt}
	return md
}

// parseExifTime reads "2006:01:02 15:04:05" in loc. Sub-seconds are kept and an
// explicit "+hh:mm"/"-hh:mm"/"Z" suffix overrides loc.
func parseExifTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(exifDateLayout) || strings.HasPrefix(raw, "0000:00:00") {
		return time.Time{}, fmt.Errorf("invalid exif date %q", raw)
	}

	base, rest := raw[:len(exifDateLayout)], raw[len(exifDateLayout):]

	var frac string
	if strings.HasPrefix(rest, ".") {
		end := 1
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		frac, rest = rest[:end], rest[end:]
		if len(frac) > 10 {
			frac = frac[:10] // nanosecond precision
		}
	}

	switch {
	case rest == "":
	case rest == "Z":
		loc = time.UTC
	case len(rest) == 6 && (rest[0] == '+' || rest[0] == '-'):
		offset, err := time.Parse("-07:00", rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid exif offset %q", rest)
		}
		_, secs := offset.Zone()
		loc = time.FixedZone(rest, secs)
	default:
		return time.Time{}, fmt.Errorf("invalid exif date %q", raw)
	}

	return time.ParseInLocation(exifDateLayout+frac0(frac), base+frac, loc)
}

// frac0 builds the layout suffix matching a ".123" style fraction.
func frac0(frac string) string {
	if frac == "" {
		return ""
	}
	return "." + strings.Repeat("0", len(frac)-1)
}

// gpsFields builds the tag map written for a point. Values are unsigned with
// explicit refs, which is what EXIF stores.
func gpsFields(point Point) map[string]interface{} {
	latRef, lonRef, altRef := "N", "E", 0
	lat, lon, alt := point.Latitude, point.Longitude, point.Altitude
	if lat < 0 {
		latRef, lat = "S", -lat
	}
	if lon < 0 {
		lonRef, lon = "W", -lon
	}
	if alt < 0 {
		altRef, alt = 1, -alt
	}

	return map[string]interface{}{
		tagGPSLatitude:     lat,
		tagGPSLatitudeRef:  latRef,
		tagGPSLongitude:    lon,
		tagGPSLongitudeRef: lonRef,
		tagGPSAltitude:     alt,
		tagGPSAltitudeRef:  altRef,
	}
}
