package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

// Geocoder resolves coordinates into a human-readable address through a
// Nominatim-compatible reverse geocoding endpoint. Lookups are best effort
// and sit behind a circuit breaker so a struggling geocoding service cannot
// slow every capture cycle down to its timeout.
type Geocoder struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

// NewGeocoder creates a reverse geocoding client for the given base URL.
func NewGeocoder(baseURL string) *Geocoder {
	settings := gobreaker.Settings{
		Name:        "Reverse-Geocoder",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	}

	return &Geocoder{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		cb: gobreaker.NewCircuitBreaker(settings),
	}
}

// ReverseGeocode resolves a coordinate pair into an address label. Callers
// fall back to a formatted coordinate string on any error; nothing here is
// ever surfaced to the user.
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	label, err := g.cb.Execute(func() (interface{}, error) {
		return g.lookup(ctx, lat, lon)
	})
	if err != nil {
		return "", err
	}
	return label.(string), nil
}

func (g *Geocoder) lookup(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("format", "jsonv2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating geocode request: %w", err)
	}
	req.Header.Set("User-Agent", "attendance-tracker")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var payload struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding geocoder response: %w", err)
	}
	if payload.DisplayName == "" {
		return "", fmt.Errorf("geocoder returned no display name")
	}
	return payload.DisplayName, nil
}
