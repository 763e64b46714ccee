package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
)

// GeocoderClient resolves a place name to its single best-match
// coordinate through an external geocoding service (Nominatim search
// conventions: lat/lon arrive as numeric strings).
type GeocoderClient struct {
	Endpoint string
	Client   *http.Client
}

func NewGeocoderClient() *GeocoderClient {
	endpoint := os.Getenv("GEOCODER_ENDPOINT")
	if endpoint == "" {
		endpoint = "https://nominatim.openstreetmap.org/search"
	}

	return &GeocoderClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type geocodeMatch struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve looks up placeName, limited to the single best match.
// models.ErrNoMatch means the geocoder knows nothing by that name; the
// caller should log and leave the map view alone.
func (c *GeocoderClient) Resolve(ctx context.Context, placeName string) (models.Coordinate, error) {
	query := url.Values{}
	query.Set("q", placeName)
	query.Set("format", "json")
	query.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", c.Endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return models.Coordinate{}, &models.TransportError{Op: "geocode request", Err: err}
	}
	req.Header.Set("User-Agent", "envmap-gateway/1.0")

	resp, err := c.Client.Do(req)
	if err != nil {
		return models.Coordinate{}, &models.TransportError{Op: "geocode call", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, &models.TransportError{
			Op:  "geocode call",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var matches []geocodeMatch
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return models.Coordinate{}, &models.TransportError{Op: "geocode decode", Err: err}
	}

	if len(matches) == 0 {
		return models.Coordinate{}, models.ErrNoMatch
	}

	lat, latErr := strconv.ParseFloat(matches[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(matches[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		// A match we cannot read is as good as no match.
		return models.Coordinate{}, models.ErrNoMatch
	}

	coord := models.Coordinate{Latitude: lat, Longitude: lon}
	if !coord.Valid() {
		return models.Coordinate{}, models.ErrNoMatch
	}

	return coord, nil
}
