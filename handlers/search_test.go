package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/handlers"
	"github.com/EnvMap-Labs/envmap-go-gateway/utils"
	"go.uber.org/zap"
)

func searchHandlerFor(names []string, endpoint string) (*handlers.SearchHandler, chan notifyEvent) {
	events := make(chan notifyEvent, 16)
	geocoder := utils.NewGeocoderClient()
	geocoder.Endpoint = endpoint
	h := handlers.NewSearchHandler(names, geocoder, func(msgType string, data interface{}) {
		events <- notifyEvent{msgType, data}
	}, zap.NewNop())
	return h, events
}

func expectSilence(t *testing.T, events <-chan notifyEvent, window time.Duration) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("unexpected %q event: %v", e.msgType, e.data)
	case <-time.After(window):
	}
}

func TestQueryEmitsRankedSuggestions(t *testing.T) {
	h, events := searchHandlerFor([]string{"India", "Indonesia", "Finland"}, "")

	h.HandleQuery("Ind")

	data := waitForEvent(t, events, "suggestions")
	payload, ok := data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected suggestions payload: %v", data)
	}
	if payload["query"] != "Ind" {
		t.Fatalf("query not echoed: %v", payload["query"])
	}
	names, ok := payload["names"].([]string)
	if !ok || !reflect.DeepEqual(names, []string{"India", "Indonesia"}) {
		t.Fatalf("unexpected suggestion names: %v", payload["names"])
	}
}

// A cleared search box still gets a suggestions event, and its list
// must be an empty array, never null.
func TestEmptyQueryEmitsEmptyList(t *testing.T) {
	h, events := searchHandlerFor([]string{"India", "Indonesia"}, "")

	h.HandleQuery("")

	data := waitForEvent(t, events, "suggestions")
	payload, _ := data.(map[string]interface{})
	names, ok := payload["names"].([]string)
	if !ok {
		t.Fatalf("names is not a string slice: %v", payload["names"])
	}
	if names == nil {
		t.Fatal("names is nil; it would serialize as null")
	}
	if len(names) != 0 {
		t.Fatalf("expected no suggestions, got %v", names)
	}
}

func TestSelectionRecentersOnMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"11.0168","lon":"76.9558","display_name":"Coimbatore"}]`)
	}))
	defer srv.Close()

	h, events := searchHandlerFor(nil, srv.URL)
	h.HandleSelection("Coimbatore")

	data := waitForEvent(t, events, "recenter")
	payload, ok := data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected recenter payload: %v", data)
	}
	if payload["latitude"] != 11.0168 || payload["longitude"] != 76.9558 {
		t.Fatalf("unexpected recenter coordinate: %v", payload)
	}
	if payload["zoom"] != handlers.RecenterZoom {
		t.Fatalf("unexpected recenter zoom: %v", payload["zoom"])
	}
}

// An unrecognised place name must leave the map view alone: no
// recenter, no error surfaced to the client.
func TestSelectionNoMatchLeavesMapUnchanged(t *testing.T) {
	served := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
		served <- struct{}{}
	}))
	defer srv.Close()

	h, events := searchHandlerFor(nil, srv.URL)
	h.HandleSelection("Atlantis")

	select {
	case <-served:
	case <-time.After(3 * time.Second):
		t.Fatal("geocoder was never called")
	}
	expectSilence(t, events, 200*time.Millisecond)
}

func TestSelectionTransportFailureLeavesMapUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	h, events := searchHandlerFor(nil, srv.URL)
	h.HandleSelection("Coimbatore")

	expectSilence(t, events, 300*time.Millisecond)
}
