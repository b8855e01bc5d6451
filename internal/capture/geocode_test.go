package capture

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "-6.200000", r.URL.Query().Get("lat"))
		assert.Equal(t, "106.800000", r.URL.Query().Get("lon"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))

		json.NewEncoder(w).Encode(map[string]string{
			"display_name": "Jl. Jend. Sudirman, Jakarta Pusat",
		})
	}))
	defer srv.Close()

	label, err := NewGeocoder(srv.URL).ReverseGeocode(context.Background(), -6.2, 106.8)

	require.NoError(t, err)
	assert.Equal(t, "Jl. Jend. Sudirman, Jakarta Pusat", label)
}

func TestReverseGeocodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewGeocoder(srv.URL).ReverseGeocode(context.Background(), -6.2, 106.8)

	assert.Error(t, err)
}

func TestReverseGeocodeEmptyDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewGeocoder(srv.URL).ReverseGeocode(context.Background(), -6.2, 106.8)

	assert.Error(t, err)
}

func TestReverseGeocodeBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL)
	for i := 0; i < 10; i++ {
		_, err := g.ReverseGeocode(context.Background(), -6.2, 106.8)
		require.Error(t, err)
	}

	assert.Less(t, calls, 10, "the breaker must stop hitting a failing geocoder")
}
