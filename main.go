package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/handlers"
	"github.com/EnvMap-Labs/envmap-go-gateway/utils"
	"github.com/lpernett/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Load environment variables from .env file
func init() {
	log.Info("Loading environment variables")
	err := godotenv.Load()
	if err != nil {
		log.Warn("Error loading .env file")
	}
}

func main() {
	// Set up logging
	log.SetLevel(log.DebugLevel)
	log.SetFormatter(&log.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	log.Info("Environmental Map Gateway")

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Set up the Redis connection backing the cross-view handoff slot
	redisClient := redis.NewClient(&redis.Options{
		Addr:        os.Getenv("REDIS_HOST"),
		Password:    os.Getenv("REDIS_PASSWORD"),
		DB:          0,
		DialTimeout: 20 * time.Second, // initial connection timeout
	})

	redisCtx, cancelRedis := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelRedis()

	if _, err := redisClient.Ping(redisCtx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Info("Successfully connected to Redis")

	handoff := utils.NewHandoffStore(&utils.RedisKV{Client: redisClient})
	predictor := utils.NewPredictorClient()
	heatmap := utils.NewHeatmapClient()
	geocoder := utils.NewGeocoderClient()

	// The reference place list is loaded once and read-only afterwards.
	placesCtx, cancelPlaces := context.WithTimeout(context.Background(), 30*time.Second)
	placeNames, err := utils.NewPlacesClient().FetchPlaceNames(placesCtx)
	cancelPlaces()
	if err != nil {
		log.Warnf("Failed to load place directory, search disabled: %v", err)
	} else {
		log.Infof("Loaded %d place names", len(placeNames))
	}

	deps := &handlers.SessionDeps{
		Predictor:     predictor,
		Heatmap:       heatmap,
		Geocoder:      geocoder,
		Handoff:       handoff,
		PlaceNames:    placeNames,
		ClickDebounce: clickDebounceDelay(),
	}

	// Define HTTP routes
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	http.HandleFunc("/map-session", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleMapSession(w, r, deps)
	})
	http.HandleFunc("/heatmap-view", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleHeatmapView(w, r, handoff, heatmap)
	})

	// Set up signal handling
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverExit := make(chan struct{})

	// Start HTTP server in a goroutine
	go func() {
		port := ":" + os.Getenv("PORT")
		if port == ":" {
			port = ":8080"
		}
		log.Info("Starting server on...", port)
		log.Fatal(http.ListenAndServe(port, nil))
		close(serverExit)
	}()

	// On termination, shut down the server
	select {
	case <-stop:
		log.Info("Shutting down server...")
	case <-serverExit:
		log.Info("Server exited unexpectedly...")
	}

	log.Info("Server shut down gracefully")
}

// clickDebounceDelay reads the map-click debounce window, default 1s.
func clickDebounceDelay() time.Duration {
	raw := os.Getenv("CLICK_DEBOUNCE_MS")
	if raw == "" {
		return time.Second
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		log.Warnf("Invalid CLICK_DEBOUNCE_MS %q, using default", raw)
		return time.Second
	}
	return time.Duration(ms) * time.Millisecond
}
