package utils_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
	"github.com/EnvMap-Labs/envmap-go-gateway/utils"
)

func heatmapFor(endpoint string) *utils.HeatmapClient {
	c := utils.NewHeatmapClient()
	c.Endpoint = endpoint
	return c
}

func TestFetchHeatmap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Radius    float64 `json:"radius"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Radius != utils.DefaultHeatmapRadius {
			t.Errorf("radius = %v, want %v", req.Radius, utils.DefaultHeatmapRadius)
		}
		fmt.Fprint(w, `{"heatmap_image":"data:image/png;base64,QUJD"}`)
	}))
	defer srv.Close()

	image, err := heatmapFor(srv.URL).Fetch(context.Background(),
		models.Coordinate{Latitude: 11.0, Longitude: 77.0}, utils.DefaultHeatmapRadius)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if image != "data:image/png;base64,QUJD" {
		t.Fatalf("unexpected image payload %q", image)
	}
}

func TestFetchHeatmapServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"No valid predictions obtained for the heatmap."}`)
	}))
	defer srv.Close()

	_, err := heatmapFor(srv.URL).Fetch(context.Background(),
		models.Coordinate{Latitude: 11.0, Longitude: 77.0}, utils.DefaultHeatmapRadius)

	var se *models.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Message != "No valid predictions obtained for the heatmap." {
		t.Fatalf("unexpected message %q", se.Message)
	}
}

func TestFetchHeatmapEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	_, err := heatmapFor(srv.URL).Fetch(context.Background(),
		models.Coordinate{Latitude: 11.0, Longitude: 77.0}, utils.DefaultHeatmapRadius)

	var se *models.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError for missing image, got %v", err)
	}
}
