package models

import "errors"

var (
	// ErrConfig covers a missing exiftool, bad arguments or an unreadable GPS log.
	// It is the only error that aborts a run before any photo is touched.
	ErrConfig = errors.New("configuration error")
	// ErrParse marks a malformed GPS log row.
	ErrParse = errors.New("parse error")
	// ErrPhotoRead marks a metadata extraction failure.
	ErrPhotoRead = errors.New("photo read error")
	// ErrPhotoWrite marks a metadata write failure, including existing tags without overwrite.
	ErrPhotoWrite = errors.New("photo write error")
	// ErrLogWrite means photos were processed but the GPS log could not be saved.
	ErrLogWrite = errors.New("gps log write error")
	// ErrNoMatch means no GPS record was close enough to the capture time.
	ErrNoMatch = errors.New("no matching gps record")
)
