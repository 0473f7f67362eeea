package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playmatatu/bumper/internal/auth"
	"github.com/playmatatu/bumper/internal/game"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const actionTimeout = 5 * time.Second

// matchStateMessage carries one player's view of the match.
type matchStateMessage struct {
	Type string `json:"type"`
	game.MatchView
}

type shotResultMessage struct {
	Type   string `json:"type"`
	Player string `json:"player"`
	*game.ShotResult
}

// HandleWebSocket upgrades a player into the room of the match named by the
// :token path parameter. The pt query parameter carries their player token.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	token := c.Param("token")
	playerToken := c.Query("pt")
	if token == "" || playerToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and pt required"})
		return
	}

	claims, err := auth.ParsePlayerToken(h.config.JWTSecret, playerToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid player token"})
		return
	}

	m, err := h.manager.GetMatchByToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}
	if claims.MatchID != m.ID || !m.HasPlayer(claims.PlayerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "player token does not belong to this match"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	limit := rate.Inf
	if h.config.ShotRatePerSecond > 0 {
		limit = rate.Limit(h.config.ShotRatePerSecond)
	}
	client := &Client{
		hub:      h,
		conn:     conn,
		playerID: claims.PlayerID,
		matchID:  m.ID,
		send:     make(chan []byte, sendBuffer),
		limiter:  rate.NewLimiter(limit, 1),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Run serves register and unregister requests until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.conn.Close()
		delete(h.clients, id)
	}
	h.rooms = make(map[string]map[string]*Client)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	if old, ok := h.clients[client.playerID]; ok {
		h.logger.Info("player reconnecting, closing old connection", zap.String("player_id", client.playerID))
		old.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"),
			time.Now().Add(time.Second))
		// The old pumps exit on their own once the conn is closed.
		old.conn.Close()
		if room, ok := h.rooms[old.matchID]; ok {
			delete(room, old.playerID)
		}
	}
	h.clients[client.playerID] = client
	if _, ok := h.rooms[client.matchID]; !ok {
		h.rooms[client.matchID] = make(map[string]*Client)
	}
	h.rooms[client.matchID][client.playerID] = client
	h.mu.Unlock()

	h.logger.Info("player connected", zap.String("player_id", client.playerID), zap.String("match_id", client.matchID))

	m, err := h.manager.GetMatch(client.matchID)
	if err != nil {
		h.logger.Warn("connected to unknown match", zap.String("match_id", client.matchID))
		return
	}
	m.SetPlayerConnected(client.playerID)

	switch m.Status() {
	case game.StatusWaiting:
		if !m.BothPlayersConnected() {
			h.SendToPlayer(client.playerID, map[string]interface{}{
				"type":    "waiting_for_opponent",
				"message": "Waiting for opponent...",
			})
			return
		}
		// Starting touches Redis and Postgres; keep it off the register loop.
		go h.startMatch(m)

	case game.StatusPlaying:
		h.BroadcastToMatch(m.ID, map[string]interface{}{
			"type":    "player_connected",
			"player":  client.playerID,
			"message": "Opponent connected",
		})
		h.sendStates(m)

	default:
		h.sendState(m, client.playerID)
	}
}

func (h *Hub) startMatch(m *game.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	started, err := h.manager.StartMatch(ctx, m)
	if err != nil {
		h.logger.Error("start match", zap.String("match_id", m.ID), zap.Error(err))
		return
	}
	if !started {
		return
	}
	h.BroadcastToMatch(m.ID, map[string]interface{}{
		"type":    "match_starting",
		"message": "Both players connected!",
	})
	h.sendStates(m)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	cur, ok := h.clients[client.playerID]
	removed := ok && cur == client
	if removed {
		delete(h.clients, client.playerID)
		if room, ok := h.rooms[client.matchID]; ok {
			delete(room, client.playerID)
			if len(room) == 0 {
				delete(h.rooms, client.matchID)
			}
		}
		close(client.send)
	}
	h.mu.Unlock()
	if !removed {
		return
	}

	h.logger.Info("player disconnected", zap.String("player_id", client.playerID), zap.String("match_id", client.matchID))

	m, err := h.manager.GetMatch(client.matchID)
	if err != nil {
		return
	}
	m.SetPlayerDisconnected(client.playerID)
	if m.Status() != game.StatusPlaying {
		return
	}

	grace := h.config.DisconnectGraceSeconds
	h.BroadcastToMatch(m.ID, map[string]interface{}{
		"type":          "player_disconnected",
		"player":        client.playerID,
		"grace_seconds": grace,
		"message":       "Opponent disconnected",
	})
	p, ok := m.PlayerByID(client.playerID)
	if grace <= 0 || !ok || p.DisconnectedAt == nil {
		return
	}
	since := *p.DisconnectedAt
	time.AfterFunc(time.Duration(grace)*time.Second, func() {
		h.forfeitIfStillGone(m, client.playerID, since)
	})
}

// forfeitIfStillGone ends the match against playerID unless they came back
// after disconnecting at since.
func (h *Hub) forfeitIfStillGone(m *game.Match, playerID string, since time.Time) {
	p, ok := m.PlayerByID(playerID)
	if !ok || p.Connected || p.DisconnectedAt == nil || !p.DisconnectedAt.Equal(since) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if err := h.manager.ForfeitByDisconnect(ctx, m, playerID); err != nil {
		h.logger.Debug("forfeit skipped", zap.String("match_id", m.ID), zap.Error(err))
		return
	}
	h.logger.Info("player forfeited by disconnect", zap.String("match_id", m.ID), zap.String("player_id", playerID))
	h.announceMatchOver(m)
}

func (h *Hub) sendState(m *game.Match, playerID string) {
	view, err := m.StateForPlayer(playerID)
	if err != nil {
		return
	}
	h.SendToPlayer(playerID, matchStateMessage{Type: "match_state", MatchView: view})
}

// sendStates gives each player their own view of m.
func (h *Hub) sendStates(m *game.Match) {
	for _, pid := range m.PlayerIDs() {
		h.sendState(m, pid)
	}
}

func (h *Hub) announceMatchOver(m *game.Match) {
	msg := map[string]interface{}{
		"type":   "match_over",
		"winner": m.WinnerID(),
	}
	if view, err := m.StateForPlayer(m.PlayerA.ID); err == nil {
		msg["win_type"] = view.WinType
		msg["scores"] = view.State.Scores
	}
	h.BroadcastToMatch(m.ID, msg)
	h.sendStates(m)
}

// readPump reads messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected close", zap.String("player_id", c.playerID), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Malformed message")
			continue
		}
		c.handleMessage(msg)
	}
}

// handleMessage processes one inbound message.
func (c *Client) handleMessage(msg WSMessage) {
	h := c.hub
	m, err := h.manager.GetMatch(c.matchID)
	if err != nil {
		c.sendError("Match not found")
		return
	}

	switch msg.Type {
	case "take_shot":
		var shot game.ShotDescriptor
		if err := json.Unmarshal(msg.Data, &shot); err != nil {
			c.sendError("Invalid shot data")
			return
		}
		if !c.limiter.Allow() {
			c.sendError("Too many shots, slow down")
			return
		}
		c.handleTakeShot(m, shot)

	case "get_state":
		h.sendState(m, c.playerID)

	case "concede":
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := h.manager.Concede(ctx, m, c.playerID); err != nil {
			c.sendError(err.Error())
			return
		}
		h.announceMatchOver(m)

	default:
		c.sendError("Unknown message type")
	}
}

// handleTakeShot relays the accepted descriptor to the opponent so they can
// start replaying it, then broadcasts the authoritative result.
func (c *Client) handleTakeShot(m *game.Match, shot game.ShotDescriptor) {
	h := c.hub
	if err := m.ValidateCanShoot(c.playerID, shot); err != nil {
		c.sendError(err.Error())
		return
	}

	opponent := m.OpponentID(c.playerID)
	relay := func(accepted game.ShotDescriptor) {
		h.SendToPlayer(opponent, map[string]interface{}{
			"type":   "shot_relay",
			"player": c.playerID,
			"shot":   accepted,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	result, err := h.manager.TakeShotAndRelay(ctx, m, c.playerID, shot, relay)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	h.BroadcastToMatch(m.ID, shotResultMessage{Type: "shot_result", Player: c.playerID, ShotResult: result})
	if result.GameOver {
		h.announceMatchOver(m)
		return
	}
	h.sendStates(m)
}
