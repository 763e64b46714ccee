package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/EnvMap-Labs/envmap-go-gateway/models"
	"github.com/EnvMap-Labs/envmap-go-gateway/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MapSession holds everything tied to one connected map view: the
// interaction store, the click debouncer, the search flow, and the
// websocket the UI listens on.
type MapSession struct {
	ID         string
	Connection *websocket.Conn
	Logger     *zap.Logger

	Store        *InteractionStore
	Orchestrator *PointQueryOrchestrator
	Search       *SearchHandler
	Handoff      *utils.HandoffStore

	clickDebounce *utils.Debouncer

	writeMu  sync.Mutex
	stopOnce sync.Once
	done     chan struct{}

	StartTime    time.Time
	LastActivity time.Time
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the map UI is served from another origin
	},
}

// WebSocketMessage is the envelope both directions use.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// SessionDeps are the long-lived collaborators shared by every
// session.
type SessionDeps struct {
	Predictor     *utils.PredictorClient
	Heatmap       *utils.HeatmapClient
	Geocoder      *utils.GeocoderClient
	Handoff       *utils.HandoffStore
	PlaceNames    []string
	ClickDebounce time.Duration
}

func NewMapSession(conn *websocket.Conn, deps *SessionDeps) *MapSession {
	id := uuid.New().String()
	logger := zap.L().With(zap.String("session_id", id))

	session := &MapSession{
		ID:            id,
		Connection:    conn,
		Logger:        logger,
		Handoff:       deps.Handoff,
		clickDebounce: utils.NewDebouncer(deps.ClickDebounce),
		done:          make(chan struct{}),
		StartTime:     time.Now(),
		LastActivity:  time.Now(),
	}

	session.Store = NewInteractionStore(session.sendWebSocketMessage, logger)
	session.Orchestrator = NewPointQueryOrchestrator(session.Store, deps.Predictor, deps.Heatmap, logger)
	session.Search = NewSearchHandler(deps.PlaceNames, deps.Geocoder, session.sendWebSocketMessage, logger)

	return session
}

// HandleMapSession upgrades the connection and runs the session until
// the client stops or the socket drops.
func HandleMapSession(w http.ResponseWriter, r *http.Request, deps *SessionDeps) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("Failed to upgrade to websocket", zap.Error(err))
		return
	}

	session := NewMapSession(conn, deps)
	session.Logger.Info("New map session started")
	defer session.Stop()

	session.sendWebSocketMessage("places_ready", map[string]interface{}{
		"count": len(deps.PlaceNames),
	})

	go session.heartbeat()

	session.listenWebSocketMessages()
	session.Logger.Info("Map session ended")
}

func (session *MapSession) listenWebSocketMessages() {
	for {
		var msg WebSocketMessage
		err := session.Connection.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				session.Logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
		session.LastActivity = time.Now()

		switch msg.Type {
		case "map_click":
			session.handleMapClick(msg.Data)
		case "search":
			session.handleSearch(msg.Data)
		case "select_place":
			session.handleSelectPlace(msg.Data)
		case "close_panel":
			session.Store.Clear()
		case "view_heatmap":
			session.handleViewHeatmap()
		case "ping":
			session.sendWebSocketMessage("pong", nil)
		case "stop":
			session.Logger.Info("Received stop command from client")
			session.sendWebSocketMessage("stop_confirmation", map[string]interface{}{
				"session_id": session.ID,
			})
			session.Stop()
			return
		default:
			session.Logger.Warn("Unknown message type", zap.String("type", msg.Type))
		}
	}
}

func (session *MapSession) handleMapClick(data interface{}) {
	coord, ok := decodeCoordinate(data)
	if !ok || !coord.Valid() {
		session.Logger.Warn("Ignoring invalid map click", zap.Any("data", data))
		session.sendWebSocketMessage("error_message", map[string]interface{}{
			"message": "invalid coordinate",
		})
		return
	}

	// Only the last click inside the debounce window reaches the
	// orchestrator.
	session.clickDebounce.Schedule(func() {
		session.Orchestrator.QueryPoint(coord)
	})
}

func (session *MapSession) handleSearch(data interface{}) {
	fields, ok := data.(map[string]interface{})
	if !ok {
		session.Logger.Warn("Invalid search payload")
		return
	}
	query, _ := fields["query"].(string)
	session.Search.HandleQuery(query)
}

func (session *MapSession) handleSelectPlace(data interface{}) {
	fields, ok := data.(map[string]interface{})
	if !ok {
		session.Logger.Warn("Invalid place selection payload")
		return
	}
	name, _ := fields["name"].(string)
	if name == "" {
		return
	}
	session.Search.HandleSelection(name)
}

func (session *MapSession) handleViewHeatmap() {
	coord, image, err := session.Store.RequestHeatmapView()
	if err != nil {
		session.sendWebSocketMessage("heatmap_view_error", map[string]interface{}{
			"message": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Handoff.Persist(ctx, coord); err != nil {
		// The inline view still opens; only the standalone view misses
		// the fresh coordinate.
		session.Logger.Error("Failed to persist handoff coordinate", zap.Error(err))
	}

	session.sendWebSocketMessage("heatmap_view", map[string]interface{}{
		"latitude":  coord.Latitude,
		"longitude": coord.Longitude,
		"image":     image,
	})
}

func decodeCoordinate(data interface{}) (models.Coordinate, bool) {
	fields, ok := data.(map[string]interface{})
	if !ok {
		return models.Coordinate{}, false
	}
	lat, latOK := fields["latitude"].(float64)
	lon, lonOK := fields["longitude"].(float64)
	if !latOK || !lonOK {
		return models.Coordinate{}, false
	}
	return models.Coordinate{Latitude: lat, Longitude: lon}, true
}

func (session *MapSession) heartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			session.sendWebSocketMessage("heartbeat", map[string]interface{}{
				"session_id": session.ID,
				"uptime":     time.Since(session.StartTime).String(),
			})
		case <-session.done:
			return
		}
	}
}

// Stop tears the session down: the debounce timer is cancelled so it
// cannot fire after the view is gone, and the generation bump discards
// whatever queries are still in flight. Safe to call more than once.
func (session *MapSession) Stop() {
	session.stopOnce.Do(func() {
		session.Logger.Info("Stopping session")
		close(session.done)
		session.clickDebounce.Stop()
		session.Store.Invalidate()
		if session.Connection != nil {
			session.Connection.Close()
		}
	})
}

func (session *MapSession) sendWebSocketMessage(msgType string, data interface{}) {
	msg := WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	}

	session.writeMu.Lock()
	defer session.writeMu.Unlock()
	if err := session.Connection.WriteJSON(msg); err != nil {
		session.Logger.Error("Failed to send websocket message",
			zap.Error(err),
			zap.String("type", msgType))
	}
}
