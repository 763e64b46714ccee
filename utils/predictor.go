package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
	"go.uber.org/zap"
)

// PredictorClient calls the environmental prediction service for a
// single point.
type PredictorClient struct {
	Endpoint string
	Client   *http.Client
}

func NewPredictorClient() *PredictorClient {
	endpoint := os.Getenv("PREDICT_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:5000/predict"
	}

	return &PredictorClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type predictRequest struct {
	Date      string  `json:"date"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Time      string  `json:"time"`
}

// Predict asks the model for the measurement set at coord under the
// given timestamp context. A reachable service reporting an error
// yields *models.ServiceError with the service's own message; failing
// to reach or read the service yields *models.TransportError.
func (c *PredictorClient) Predict(ctx context.Context, coord models.Coordinate, ts models.TimestampContext) (map[string]float64, error) {
	body, err := json.Marshal(predictRequest{
		Date:      ts.Date,
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
		Time:      ts.Time,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, &models.TransportError{Op: "predict request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &models.TransportError{Op: "predict call", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Op: "predict response", Err: err}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		return nil, &models.TransportError{Op: "predict decode", Err: err}
	}

	// The service reports its own failures in-band, on any status.
	if msg, ok := payload["error"].(string); ok {
		return nil, &models.ServiceError{Message: msg}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.TransportError{
			Op:  "predict call",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes)),
		}
	}

	fields := make(map[string]float64, len(payload))
	for name, raw := range payload {
		value, ok := parseMeasurement(raw)
		if !ok {
			zap.L().Warn("Skipping unparseable prediction field",
				zap.String("field", name),
				zap.Any("value", raw))
			continue
		}
		fields[name] = value
	}

	if len(fields) == 0 {
		return nil, &models.ServiceError{Message: "prediction returned no measurements"}
	}

	return fields, nil
}

// parseMeasurement accepts plain numbers as well as the service's
// unit-suffixed strings ("34.2°C", "863.9 ppm").
func parseMeasurement(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		end := 0
		for end < len(s) {
			ch := s[end]
			if (ch >= '0' && ch <= '9') || ch == '.' || ch == '-' || ch == '+' {
				end++
				continue
			}
			break
		}
		value, err := strconv.ParseFloat(s[:end], 64)
		if err != nil {
			return 0, false
		}
		return value, true
	default:
		return 0, false
	}
}
