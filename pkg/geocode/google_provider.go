package geocode

import (
	"context"
	"errors"
	"time"

	"googlemaps.github.io/maps"
)

// ErrNoAddress is returned when the API knows no address for a position.
var ErrNoAddress = errors.New("no address found")

// reverseGeocoder is the part of *maps.Client used here.
type reverseGeocoder interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GoogleReverseGeocoder uses the Google Maps Geocoding API.
type GoogleReverseGeocoder struct {
	client  reverseGeocoder
	timeout time.Duration
}

// NewGoogleReverseGeocoder creates a GoogleReverseGeocoder for apiKey. Each
// lookup is bounded by timeout.
func NewGoogleReverseGeocoder(apiKey string, timeout time.Duration) (*GoogleReverseGeocoder, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GoogleReverseGeocoder{
		client:  c,
		timeout: timeout,
	}, nil
}

// ReverseGeocode returns the formatted address of the best result.
func (g *GoogleReverseGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lon},
	})
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ErrNoAddress
	}

	return results[0].FormattedAddress, nil
}
