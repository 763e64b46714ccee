package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
	"github.com/EnvMap-Labs/envmap-go-gateway/utils"
	"go.uber.org/zap"
)

// HandleHeatmapView serves the standalone heatmap page's load: it
// reads the persisted coordinate and issues a fresh heatmap query.
// Nothing but the coordinate is shared with the map view — the two
// views do not share process state.
func HandleHeatmapView(w http.ResponseWriter, r *http.Request, handoff *utils.HandoffStore, heatmap *utils.HeatmapClient) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	coord := handoff.Retrieve(ctx)
	zap.L().Info("Heatmap view load",
		zap.Float64("latitude", coord.Latitude),
		zap.Float64("longitude", coord.Longitude))

	w.Header().Set("Content-Type", "application/json")

	image, err := heatmap.Fetch(ctx, coord, utils.DefaultHeatmapRadius)
	if err != nil {
		zap.L().Warn("Heatmap view query failed", zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"latitude":  coord.Latitude,
			"longitude": coord.Longitude,
			"error":     models.FailureMessage(err),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"latitude":      coord.Latitude,
		"longitude":     coord.Longitude,
		"heatmap_image": image,
	})
}
