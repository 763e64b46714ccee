package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
)

// DefaultHeatmapRadius is the areal extent of a heatmap query, in
// degrees.
const DefaultHeatmapRadius = 0.1

// HeatmapClient calls the areal heatmap rendering service.
type HeatmapClient struct {
	Endpoint string
	Client   *http.Client
}

func NewHeatmapClient() *HeatmapClient {
	endpoint := os.Getenv("HEATMAP_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:5000/heatmap-data"
	}

	// Rendering samples a whole prediction grid server-side, so this
	// client gets far more room than the point predictor.
	return &HeatmapClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type heatmapRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius"`
}

type heatmapResponse struct {
	HeatmapImage string `json:"heatmap_image"`
	Error        string `json:"error"`
}

// Fetch renders the heatmap around coord and returns the service's
// opaque encoded image payload. Error taxonomy matches Predict.
func (c *HeatmapClient) Fetch(ctx context.Context, coord models.Coordinate, radius float64) (string, error) {
	body, err := json.Marshal(heatmapRequest{
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
		Radius:    radius,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal heatmap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", &models.TransportError{Op: "heatmap request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", &models.TransportError{Op: "heatmap call", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.TransportError{Op: "heatmap response", Err: err}
	}

	var payload heatmapResponse
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		return "", &models.TransportError{Op: "heatmap decode", Err: err}
	}

	if payload.Error != "" {
		return "", &models.ServiceError{Message: payload.Error}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &models.TransportError{
			Op:  "heatmap call",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes)),
		}
	}
	if payload.HeatmapImage == "" {
		return "", &models.ServiceError{Message: "heatmap returned no image"}
	}

	return payload.HeatmapImage, nil
}
