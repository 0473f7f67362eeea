package ws

import (
	"context"

	"github.com/playmatatu/bumper/internal/game"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartMatchEventSubscriber relays MatchEvents published by the turn worker
// on any instance to the players connected to this one. It returns once the
// subscription is established; delivery stops when ctx is cancelled.
func (h *Hub) StartMatchEventSubscriber(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		h.logger.Warn("redis client not set; match event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, game.MatchEventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		h.logger.Info("match event subscriber started", zap.String("channel", game.MatchEventsChannel))
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.handleMatchEvent([]byte(msg.Payload))
			}
		}
	}()
}

func (h *Hub) handleMatchEvent(payload []byte) {
	var ev game.MatchEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		h.logger.Warn("invalid match event payload", zap.Error(err))
		return
	}
	if h.RoomSize(ev.MatchID) == 0 {
		return
	}

	switch ev.Type {
	case "turn_skipped":
		h.BroadcastToMatch(ev.MatchID, map[string]interface{}{
			"type":        "turn_skipped",
			"player":      ev.Player,
			"next_turn":   ev.NextTurn,
			"shot_number": ev.ShotNumber,
			"message":     ev.Message,
		})
		if m, err := h.manager.GetMatch(ev.MatchID); err == nil {
			h.sendStates(m)
		}

	default:
		h.logger.Debug("unhandled match event", zap.String("type", ev.Type))
	}
}
