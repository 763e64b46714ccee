package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/handlers"
	"github.com/EnvMap-Labs/envmap-go-gateway/models"
	"github.com/EnvMap-Labs/envmap-go-gateway/utils"
	"go.uber.org/zap"
)

type notifyEvent struct {
	msgType string
	data    interface{}
}

func waitForEvent(t *testing.T, events <-chan notifyEvent, msgType string) interface{} {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-events:
			if e.msgType == msgType {
				return e.data
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
		}
	}
}

func expectNoEvent(t *testing.T, events <-chan notifyEvent, msgType string, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case e := <-events:
			if e.msgType == msgType {
				t.Fatalf("unexpected %q event: %v", msgType, e.data)
			}
		case <-deadline:
			return
		}
	}
}

// The UI gets the prediction as soon as it lands; it must not block on
// the slower heatmap render.
func TestPredictionDoesNotWaitForHeatmap(t *testing.T) {
	releaseHeatmap := make(chan struct{})

	predictSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"temperature": 34.2, "CO2": 863.9}`)
	}))
	defer predictSrv.Close()

	heatmapSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-releaseHeatmap
		fmt.Fprint(w, `{"heatmap_image":"img-slow"}`)
	}))
	defer heatmapSrv.Close()
	defer close(releaseHeatmap)

	events := make(chan notifyEvent, 32)
	store := handlers.NewInteractionStore(func(msgType string, data interface{}) {
		events <- notifyEvent{msgType, data}
	}, zap.NewNop())

	predictor := utils.NewPredictorClient()
	predictor.Endpoint = predictSrv.URL
	heatmap := utils.NewHeatmapClient()
	heatmap.Endpoint = heatmapSrv.URL

	orch := handlers.NewPointQueryOrchestrator(store, predictor, heatmap, zap.NewNop())
	orch.QueryPoint(models.Coordinate{Latitude: 11.0, Longitude: 77.0})

	data := waitForEvent(t, events, "prediction_result")
	fields, ok := data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected prediction payload: %v", data)
	}
	values, ok := fields["fields"].(map[string]float64)
	if !ok || values["temperature"] != 34.2 {
		t.Fatalf("unexpected prediction fields: %v", fields)
	}
	if !store.PanelVisible() {
		t.Fatal("panel not revealed on prediction")
	}

	// Heatmap is still blocked at this point.
	if active, _ := store.Active(); active.Heatmap.State != models.HeatmapAbsent {
		t.Fatalf("heatmap settled early: %+v", active.Heatmap)
	}

	releaseHeatmap <- struct{}{}
	data = waitForEvent(t, events, "heatmap_result")
	payload, _ := data.(map[string]interface{})
	if payload["image"] != "img-slow" {
		t.Fatalf("unexpected heatmap payload: %v", data)
	}
}

// A click that lands while a prior interaction's queries are in flight
// supersedes it; the slow response must be discarded, not displayed.
func TestSupersededClickDiscarded(t *testing.T) {
	releaseSlow := make(chan struct{})
	releaseHeatmaps := make(chan struct{})

	predictSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Latitude float64 `json:"latitude"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Latitude == 11.0 {
			<-releaseSlow
			fmt.Fprint(w, `{"temperature": 1.0}`)
			return
		}
		fmt.Fprint(w, `{"temperature": 2.0}`)
	}))
	defer predictSrv.Close()

	heatmapSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-releaseHeatmaps
		fmt.Fprint(w, `{"heatmap_image":"img"}`)
	}))
	defer heatmapSrv.Close()
	defer close(releaseHeatmaps)

	events := make(chan notifyEvent, 32)
	store := handlers.NewInteractionStore(func(msgType string, data interface{}) {
		events <- notifyEvent{msgType, data}
	}, zap.NewNop())

	predictor := utils.NewPredictorClient()
	predictor.Endpoint = predictSrv.URL
	heatmap := utils.NewHeatmapClient()
	heatmap.Endpoint = heatmapSrv.URL

	orch := handlers.NewPointQueryOrchestrator(store, predictor, heatmap, zap.NewNop())

	orch.QueryPoint(models.Coordinate{Latitude: 11.0, Longitude: 77.0}) // stalls in the predictor
	orch.QueryPoint(models.Coordinate{Latitude: 12.0, Longitude: 78.0})

	data := waitForEvent(t, events, "prediction_result")
	fields, _ := data.(map[string]interface{})
	values, ok := fields["fields"].(map[string]float64)
	if !ok || values["temperature"] != 2.0 {
		t.Fatalf("expected the newer click's prediction, got %v", data)
	}

	// Let the superseded response complete; it must not surface.
	close(releaseSlow)
	expectNoEvent(t, events, "prediction_result", 300*time.Millisecond)

	active, ok := store.Active()
	if !ok || active.Prediction == nil || active.Prediction.Fields["temperature"] != 2.0 {
		t.Fatalf("stale response clobbered the active interaction: %+v", active)
	}
}
