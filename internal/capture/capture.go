// Package capture acquires the evidence bundled with an attendance
// submission: one photo snapshot and, best effort, one resolved location.
package capture

import (
	"context"
	"time"

	"attendance.tracker/internal/core/model"
	"github.com/rs/zerolog/log"
)

// Evidence is what one capture cycle produces. Photo is required for
// submission; Location is nil when the position could not be read.
type Evidence struct {
	Photo    []byte
	Location *model.Location
}

// ReverseGeocoder labels a coordinate pair. Failures are swallowed by the
// capturer.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// Capturer runs one capture cycle at a time. The camera is exclusively owned
// for the duration of the cycle and released before the cycle ends.
type Capturer struct {
	camera          *Camera
	locator         Locator
	geocoder        ReverseGeocoder
	locationTimeout time.Duration
}

// NewCapturer wires the capture devices together. locator and geocoder may
// be nil, in which case submissions simply carry no location.
func NewCapturer(camera *Camera, locator Locator, geocoder ReverseGeocoder, locationTimeout time.Duration) *Capturer {
	if locationTimeout <= 0 {
		locationTimeout = 12 * time.Second
	}
	return &Capturer{
		camera:          camera,
		locator:         locator,
		geocoder:        geocoder,
		locationTimeout: locationTimeout,
	}
}

// Capture acquires the photo and the location for one submission. The photo
// is a hard requirement; the location is not.
func (c *Capturer) Capture(ctx context.Context) (Evidence, error) {
	photo, err := c.camera.CapturePhoto(ctx)
	if err != nil {
		return Evidence{}, err
	}

	return Evidence{
		Photo:    photo,
		Location: c.CaptureLocation(ctx),
	}, nil
}

// CaptureLocation requests a single position reading with a bounded timeout
// and resolves it into a labeled location. Any failure, denied access,
// timeout or an unavailable receiver, resolves to nil rather than an error:
// attendance must be submittable without location.
func (c *Capturer) CaptureLocation(ctx context.Context) *model.Location {
	if c.locator == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.locationTimeout)
	defer cancel()

	pos, err := c.locator.Position(ctx)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("Position unavailable, submitting without location")
		return nil
	}

	loc := &model.Location{Latitude: pos.Latitude, Longitude: pos.Longitude}
	loc.Label = c.resolveLabel(ctx, pos)
	return loc
}

// resolveLabel asks the geocoder for an address and falls back to the
// coordinate string. Geocoding failures are never surfaced.
func (c *Capturer) resolveLabel(ctx context.Context, pos Position) string {
	fallback := model.Location{Latitude: pos.Latitude, Longitude: pos.Longitude}.CoordinateLabel()
	if c.geocoder == nil {
		return fallback
	}

	label, err := c.geocoder.ReverseGeocode(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("Reverse geocoding failed, using coordinates")
		return fallback
	}
	return label
}
