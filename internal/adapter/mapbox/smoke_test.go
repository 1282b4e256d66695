//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		metrics:    testMetrics(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Harpers Ferry", "West Virginia")
	require.NoError(t, err)

	assert.InDelta(t, 39.32, result.Lat, 0.1, "lat should be near Harpers Ferry")
	assert.InDelta(t, -77.74, result.Lon, 0.1, "lon should be near Harpers Ferry")
	assert.Contains(t, result.FormattedAddress, "Harpers Ferry")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ForwardGeocode_LowRelevance(t *testing.T) {
	c := smokeClient(t)

	// Fuzzy matching may still return something; only the absence of an error is checked.
	_, err := c.ForwardGeocode(context.Background(), "XYZNONEXISTENT99", "ZZ")
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached, err := NewCachedGeocoder(c, 10, testMetrics())
	require.NoError(t, err)

	r1, err := cached.ForwardGeocode(context.Background(), "Damascus", "Virginia")
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Damascus")

	r2, err := cached.ForwardGeocode(context.Background(), "Damascus", "Virginia")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
