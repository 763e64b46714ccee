package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
	"github.com/EnvMap-Labs/envmap-go-gateway/utils"
	"go.uber.org/zap"
)

// RecenterZoom is the zoom level sent with a recenter command after a
// successful geocode.
const RecenterZoom = 13

// SearchHandler drives the place-search flow: keystrokes become ranked
// suggestions, a selection becomes a geocode lookup and, on success, a
// map recenter.
type SearchHandler struct {
	placeNames []string
	geocoder   *utils.GeocoderClient
	notify     Notify
	logger     *zap.Logger
}

func NewSearchHandler(placeNames []string, geocoder *utils.GeocoderClient, notify Notify, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &SearchHandler{
		placeNames: placeNames,
		geocoder:   geocoder,
		notify:     notify,
		logger:     logger,
	}
}

// HandleQuery recomputes the suggestion list for the current query.
// Called on every keystroke; no history is kept.
func (h *SearchHandler) HandleQuery(query string) {
	suggestions := utils.RankSuggestions(query, h.placeNames)
	if suggestions == nil {
		// The UI expects an empty list, never null.
		suggestions = []string{}
	}
	h.notify("suggestions", map[string]interface{}{
		"query": query,
		"names": suggestions,
	})
}

// HandleSelection resolves the chosen place asynchronously. A second
// selection may race the first; results are idempotent and terminal,
// so the map simply takes whichever recenter lands last. No match or a
// transport failure leaves the map alone with only a logged
// diagnostic.
func (h *SearchHandler) HandleSelection(name string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		coord, err := h.geocoder.Resolve(ctx, name)
		if errors.Is(err, models.ErrNoMatch) {
			h.logger.Info("No geocode match", zap.String("place", name))
			return
		}
		if err != nil {
			h.logger.Warn("Geocode lookup failed",
				zap.String("place", name),
				zap.Error(err))
			return
		}

		h.notify("recenter", map[string]interface{}{
			"latitude":  coord.Latitude,
			"longitude": coord.Longitude,
			"zoom":      RecenterZoom,
		})
	}()
}
