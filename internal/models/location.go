package models

import (
	"time"
)

// GPSRecord represents a single fix of a GPS log
type GPSRecord struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Latitude  float64   `json:"latitude" yaml:"latitude"`
	Longitude float64   `json:"longitude" yaml:"longitude"`
	Altitude  float64   `json:"altitude" yaml:"altitude"`
}

// Delta returns the absolute time distance between the record and t.
func (r GPSRecord) Delta(t time.Time) time.Duration {
	d := r.Timestamp.Sub(t)
	if d < 0 {
		return -d
	}
	return d
}
