package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/playmatatu/bumper/internal/config"
	"github.com/playmatatu/bumper/internal/game"
	"github.com/playmatatu/bumper/internal/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBuffer     = 256
)

// Client is one player's websocket connection to one match.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	playerID string
	matchID  string
	send     chan []byte
	limiter  *rate.Limiter
}

// Hub maintains the set of active clients, grouped into one room per match.
type Hub struct {
	clients    map[string]*Client            // playerID -> Client
	rooms      map[string]map[string]*Client // matchID -> playerID -> Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	manager    *game.MatchManager
	config     *config.Config
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewHub creates a hub serving the matches held by mm. Call Run before
// accepting connections.
func NewHub(mm *game.MatchManager, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := mm.Config()
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		manager:    mm,
		config:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(cfg, r.Header.Get("Origin"))
			},
		},
		logger: logger.Named("ws"),
	}
}

// BroadcastToMatch sends message to every player of matchID connected here.
func (h *Hub) BroadcastToMatch(matchID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("marshal broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[matchID] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("send buffer full, dropping message",
				zap.String("player_id", client.playerID),
				zap.String("match_id", matchID))
		}
	}
}

// SendToPlayer sends message to one player if they are connected here.
func (h *Hub) SendToPlayer(playerID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[playerID]
	if !ok {
		h.logger.Debug("no client for player", zap.String("player_id", playerID))
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("send buffer full, dropping message", zap.String("player_id", playerID))
	}
}

// RoomSize returns how many players of matchID are connected here.
func (h *Hub) RoomSize(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[matchID])
}

// WSMessage is the envelope of every inbound message.
type WSMessage struct {
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed: the connection was replaced or cleaned up.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("write failed", zap.String("player_id", c.playerID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("ping failed", zap.String("player_id", c.playerID), zap.Error(err))
				return
			}
		}
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
	select {
	case c.send <- data:
	default:
	}
}
