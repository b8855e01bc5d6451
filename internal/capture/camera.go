package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"attendance.tracker/internal/core/model"
	"github.com/rs/zerolog/log"
)

// MaxPhotoBytes is the practical ceiling for an encoded still frame. The
// document backend rejects records above roughly 1 MB, so frames are
// re-encoded until they fit under this.
const MaxPhotoBytes = 900 << 10

// CameraSession is an open handle on one camera device. The device is an
// exclusive resource: the session must be closed as soon as the still frame
// has been taken, not when the process exits.
type CameraSession interface {
	// Still grabs one encoded JPEG frame.
	Still(ctx context.Context) ([]byte, error)
	Close() error
}

// CameraSource opens sessions on one camera device.
type CameraSource interface {
	Open(ctx context.Context) (CameraSession, error)
	Name() string
}

// Camera tries its sources in order: the preferred (front-facing) source
// first, then each fallback, until one produces a usable frame.
type Camera struct {
	sources []CameraSource
}

// NewCamera builds a camera over an ordered source list.
func NewCamera(sources ...CameraSource) *Camera {
	return &Camera{sources: sources}
}

// CapturePhoto acquires one still frame, re-encoded to fit the photo size
// ceiling. A source that cannot be opened or produces a bad frame is skipped
// in favor of the next one; if every source fails the capture is a hard
// failure, since submission cannot proceed without a photo.
func (c *Camera) CapturePhoto(ctx context.Context) ([]byte, error) {
	if len(c.sources) == 0 {
		return nil, fmt.Errorf("%w: no camera sources configured", model.ErrDeviceUnavailable)
	}

	var lastErr error
	for _, src := range c.sources {
		frame, err := grabStill(ctx, src)
		if err != nil {
			log.Ctx(ctx).Debug().Err(err).Str("source", src.Name()).Msg("Camera source failed, trying next")
			lastErr = err
			continue
		}

		photo, err := fitUnderCeiling(frame, MaxPhotoBytes)
		if err != nil {
			log.Ctx(ctx).Debug().Err(err).Str("source", src.Name()).Msg("Frame unusable, trying next source")
			lastErr = err
			continue
		}
		return photo, nil
	}

	return nil, fmt.Errorf("%w: all camera sources failed: %v", model.ErrDeviceUnavailable, lastErr)
}

// grabStill opens the source, takes one frame and releases the device
// before returning, whatever the outcome.
func grabStill(ctx context.Context, src CameraSource) ([]byte, error) {
	session, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return session.Still(ctx)
}

// fitUnderCeiling re-encodes a JPEG frame at decreasing quality until it is
// small enough for a single backend document. Frames already under the
// ceiling pass through untouched.
func fitUnderCeiling(frame []byte, limit int) ([]byte, error) {
	if len(frame) <= limit {
		return frame, nil
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	for quality := 70; quality >= 10; quality -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("re-encoding frame: %w", err)
		}
		if buf.Len() <= limit {
			return buf.Bytes(), nil
		}
	}
	return nil, fmt.Errorf("frame does not fit under %d bytes at any quality", limit)
}

// HTTPSource is a snapshot camera reached over HTTP, the usual setup for a
// badge kiosk with an IP camera. A GET on the snapshot URL returns one
// JPEG frame.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a snapshot source for the given URL.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *HTTPSource) Name() string { return s.url }

// Open verifies nothing up front; the snapshot request itself both claims
// the device and produces the frame.
func (s *HTTPSource) Open(ctx context.Context) (CameraSession, error) {
	return &httpSession{source: s}, nil
}

type httpSession struct {
	source *HTTPSource
}

func (s *httpSession) Still(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot request: %w", err)
	}

	resp, err := s.source.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: camera at %s refused access", model.ErrPermissionDenied, s.source.url)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("camera at %s returned status %d", s.source.url, resp.StatusCode)
	}

	frame, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("camera at %s returned an empty frame", s.source.url)
	}
	return frame, nil
}

// Close is a no-op for snapshot cameras; the HTTP response body was already
// closed when the frame was read.
func (s *httpSession) Close() error { return nil }
