package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Position is a raw coordinate reading.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator produces a single position reading. Implementations must respect
// context cancellation so a stuck receiver cannot block a capture cycle.
type Locator interface {
	Position(ctx context.Context) (Position, error)
}

// StaticLocator reports a fixed position, used for stations mounted at a
// known site.
type StaticLocator struct {
	Lat, Lon float64
}

func (l StaticLocator) Position(ctx context.Context) (Position, error) {
	return Position{Latitude: l.Lat, Longitude: l.Lon}, nil
}

// HTTPLocator reads the current position from a positioning receiver
// bridge (gpsd-style) that answers a GET with a JSON coordinate pair.
type HTTPLocator struct {
	url    string
	client *http.Client
}

func NewHTTPLocator(url string) *HTTPLocator {
	return &HTTPLocator{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (l *HTTPLocator) Position(ctx context.Context) (Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Position{}, fmt.Errorf("creating position request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("requesting position: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Position{}, fmt.Errorf("position receiver returned status %d", resp.StatusCode)
	}

	var pos Position
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return Position{}, fmt.Errorf("decoding position: %w", err)
	}
	return pos, nil
}
