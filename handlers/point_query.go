package handlers

import (
	"context"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
	"github.com/EnvMap-Labs/envmap-go-gateway/utils"
	"go.uber.org/zap"
)

// PointQueryOrchestrator turns one debounced map click into the two
// independent remote queries behind the detail panel. Both queries
// share a coordinate and a freshly computed timestamp context but
// settle in whatever order the network provides.
type PointQueryOrchestrator struct {
	store     *InteractionStore
	predictor *utils.PredictorClient
	heatmap   *utils.HeatmapClient
	logger    *zap.Logger
}

func NewPointQueryOrchestrator(store *InteractionStore, predictor *utils.PredictorClient, heatmap *utils.HeatmapClient, logger *zap.Logger) *PointQueryOrchestrator {
	if logger == nil {
		logger = zap.L()
	}
	return &PointQueryOrchestrator{
		store:     store,
		predictor: predictor,
		heatmap:   heatmap,
		logger:    logger,
	}
}

// QueryPoint begins a new interaction at coord and launches the
// prediction and heatmap queries back-to-back. In-flight requests of a
// superseded interaction are not aborted; their publications fail the
// generation check and are dropped.
func (o *PointQueryOrchestrator) QueryPoint(coord models.Coordinate) {
	gen := o.store.Begin(coord)
	tsCtx := models.NewTimestampContext(time.Now())

	o.logger.Info("Issuing point queries",
		zap.Uint64("generation", gen),
		zap.Float64("latitude", coord.Latitude),
		zap.Float64("longitude", coord.Longitude),
		zap.String("date", tsCtx.Date),
		zap.String("time", tsCtx.Time))

	go o.runPrediction(gen, coord, tsCtx)
	go o.runHeatmap(gen, coord)
}

func (o *PointQueryOrchestrator) runPrediction(gen uint64, coord models.Coordinate, tsCtx models.TimestampContext) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result *models.PredictionResult
	fields, err := o.predictor.Predict(ctx, coord, tsCtx)
	if err != nil {
		o.logger.Warn("Prediction query failed",
			zap.Uint64("generation", gen),
			zap.Error(err))
		result = &models.PredictionResult{Err: models.FailureMessage(err)}
	} else {
		result = &models.PredictionResult{Fields: fields}
	}

	if !o.store.PublishPrediction(gen, result) {
		o.logger.Debug("Prediction result superseded", zap.Uint64("generation", gen))
	}
}

func (o *PointQueryOrchestrator) runHeatmap(gen uint64, coord models.Coordinate) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var result models.HeatmapResult
	image, err := o.heatmap.Fetch(ctx, coord, utils.DefaultHeatmapRadius)
	if err != nil {
		o.logger.Warn("Heatmap query failed",
			zap.Uint64("generation", gen),
			zap.Error(err))
		result = models.HeatmapResult{State: models.HeatmapFailed, Err: models.FailureMessage(err)}
	} else {
		result = models.HeatmapResult{State: models.HeatmapReady, Image: image}
	}

	if !o.store.PublishHeatmap(gen, result) {
		o.logger.Debug("Heatmap result superseded", zap.Uint64("generation", gen))
	}
}
