// Package geocode turns coordinates into human-readable addresses for display.
package geocode

import "context"

// Provider interface defines the methods for reverse geocoders
type Provider interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}
