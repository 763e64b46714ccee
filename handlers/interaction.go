package handlers

import (
	"errors"
	"sync"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
	"go.uber.org/zap"
)

// Notify delivers state changes to whatever renders them; the map
// session plugs in its websocket sender, tests plug in a recorder.
type Notify func(msgType string, data interface{})

// InteractionStore owns the one active interaction. Every remote
// completion must present the generation it was issued under; a
// publication for anything but the current generation is silently
// discarded, so a slow stale response can never clobber fresh data.
type InteractionStore struct {
	mu           sync.Mutex
	generation   uint64
	active       *models.Interaction
	panelVisible bool
	notify       Notify
	logger       *zap.Logger
}

func NewInteractionStore(notify Notify, logger *zap.Logger) *InteractionStore {
	if notify == nil {
		notify = func(string, interface{}) {}
	}
	if logger == nil {
		logger = zap.L()
	}
	return &InteractionStore{notify: notify, logger: logger}
}

// Begin supersedes any prior interaction wholesale and returns the
// generation the caller's queries must publish under. Notifications
// are emitted under the lock so the renderer observes state changes in
// order.
func (s *InteractionStore) Begin(coord models.Coordinate) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.active = &models.Interaction{
		Generation: s.generation,
		Coordinate: coord,
	}

	s.notify("point_selected", map[string]interface{}{
		"latitude":  coord.Latitude,
		"longitude": coord.Longitude,
	})
	return s.generation
}

// PublishPrediction records the prediction track's outcome and reveals
// the detail panel. Returns false when gen has been superseded.
func (s *InteractionStore) PublishPrediction(gen uint64, result *models.PredictionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || gen != s.generation {
		s.logger.Debug("Discarding stale prediction result", zap.Uint64("generation", gen))
		return false
	}

	s.active.Prediction = result
	s.panelVisible = true

	if result.Failed() {
		s.notify("prediction_result", map[string]interface{}{"error": result.Err})
	} else {
		s.notify("prediction_result", map[string]interface{}{"fields": result.Fields})
	}
	return true
}

// PublishHeatmap records the heatmap track's outcome; the two tracks
// settle independently and in any order. Returns false when gen has
// been superseded.
func (s *InteractionStore) PublishHeatmap(gen uint64, result models.HeatmapResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || gen != s.generation {
		s.logger.Debug("Discarding stale heatmap result", zap.Uint64("generation", gen))
		return false
	}

	s.active.Heatmap = result

	switch result.State {
	case models.HeatmapReady:
		s.notify("heatmap_result", map[string]interface{}{"image": result.Image})
	case models.HeatmapFailed:
		s.notify("heatmap_result", map[string]interface{}{"error": result.Err})
	}
	return true
}

// Clear drops the active interaction and hides the panel. The
// generation bump invalidates whatever queries the cleared interaction
// still has in flight.
func (s *InteractionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.active = nil
	s.panelVisible = false
	s.notify("panel_closed", nil)
}

// Invalidate is Clear without the UI emit, for session teardown.
func (s *InteractionStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.active = nil
	s.panelVisible = false
}

// Active returns a copy of the active interaction, if any.
func (s *InteractionStore) Active() (models.Interaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return models.Interaction{}, false
	}
	return *s.active, true
}

func (s *InteractionStore) PanelVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panelVisible
}

// RequestHeatmapView returns the active interaction's coordinate and
// heatmap payload, or an explanation of why there is nothing to show —
// the secondary surface must never open blank.
func (s *InteractionStore) RequestHeatmapView() (models.Coordinate, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return models.Coordinate{}, "", errors.New("no point selected")
	}

	switch s.active.Heatmap.State {
	case models.HeatmapReady:
		return s.active.Coordinate, s.active.Heatmap.Image, nil
	case models.HeatmapFailed:
		return models.Coordinate{}, "", errors.New(s.active.Heatmap.Err)
	default:
		return models.Coordinate{}, "", errors.New("heatmap not ready yet")
	}
}
