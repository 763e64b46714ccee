package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HandoffKey is the one slot shared between the map view and the
// heatmap view. Only a coordinate ever crosses this boundary.
const HandoffKey = "envmap:selected-coordinate"

// ErrHandoffMissing reports an empty slot.
var ErrHandoffMissing = errors.New("handoff record missing")

// KV is the narrow slice of a key-value store the handoff needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// RedisKV adapts a go-redis client to the KV interface.
type RedisKV struct {
	Client *redis.Client
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	value, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrHandoffMissing
	}
	return value, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.Client.Set(ctx, key, value, 0).Err()
}

// HandoffStore is the single typed accessor for the cross-view
// coordinate slot, keeping the staleness and default-fallback policy
// in one place.
type HandoffStore struct {
	kv     KV
	logger *zap.Logger
}

func NewHandoffStore(kv KV) *HandoffStore {
	return &HandoffStore{kv: kv, logger: zap.L().Named("handoff")}
}

// Persist writes coord for the heatmap view to pick up on its next
// load.
func (s *HandoffStore) Persist(ctx context.Context, coord models.Coordinate) error {
	record, err := json.Marshal(coord)
	if err != nil {
		return fmt.Errorf("failed to marshal handoff record: %w", err)
	}
	if err := s.kv.Set(ctx, HandoffKey, string(record)); err != nil {
		return fmt.Errorf("failed to persist handoff record: %w", err)
	}
	return nil
}

// Retrieve reads the slot and never fails: a missing, malformed, or
// out-of-range record falls back to models.DefaultCoordinate. The
// record is left in place after reading, so a later load without a
// fresh selection replays the last coordinate.
func (s *HandoffStore) Retrieve(ctx context.Context) models.Coordinate {
	raw, err := s.kv.Get(ctx, HandoffKey)
	if err != nil {
		if !errors.Is(err, ErrHandoffMissing) {
			s.logger.Warn("Failed to read handoff record", zap.Error(err))
		}
		return models.DefaultCoordinate
	}

	var coord models.Coordinate
	if err := json.Unmarshal([]byte(raw), &coord); err != nil {
		s.logger.Warn("Malformed handoff record",
			zap.String("record", raw),
			zap.Error(err))
		return models.DefaultCoordinate
	}
	if !coord.Valid() {
		s.logger.Warn("Handoff record out of range",
			zap.Float64("latitude", coord.Latitude),
			zap.Float64("longitude", coord.Longitude))
		return models.DefaultCoordinate
	}

	return coord
}
