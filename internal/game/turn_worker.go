package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartTurnWorker polls the turn_deadline sorted set and skips the turn of
// any player who let their clock run out. It blocks until ctx is cancelled.
func StartTurnWorker(ctx context.Context, mm *MatchManager) {
	logger := mm.logger.Named("turn")
	if mm.rdb == nil {
		logger.Warn("redis missing, turn worker not started")
		return
	}

	interval := time.Duration(mm.config.TurnWorkerPollSeconds) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}

	logger.Info("turn worker started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("turn worker stopping")
			return
		case <-ticker.C:
			mm.processTurnDeadlines(ctx, time.Now(), logger)
		}
	}
}

// processTurnDeadlines handles every deadline due at now and returns how many
// turns it skipped.
func (mm *MatchManager) processTurnDeadlines(ctx context.Context, now time.Time, logger *zap.Logger) int {
	members, err := mm.rdb.ZRangeByScore(ctx, turnDeadlineKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		logger.Error("fetch turn deadlines", zap.Error(err))
		return 0
	}

	skipped := 0
	for _, member := range members {
		// Only the instance that removes the member acts on it.
		removed, err := mm.rdb.ZRem(ctx, turnDeadlineKey, member).Result()
		if err != nil || removed == 0 {
			continue
		}

		token, shotNumber, err := parseTurnMember(member)
		if err != nil {
			logger.Warn("bad turn deadline member", zap.String("member", member), zap.Error(err))
			continue
		}

		m, err := mm.GetMatchByToken(ctx, token)
		if err != nil {
			continue
		}

		next, err := mm.SkipTurn(ctx, m, shotNumber)
		if errors.Is(err, ErrStaleTurn) || errors.Is(err, ErrMatchNotPlaying) {
			logger.Debug("deadline no longer current", zap.String("member", member), zap.Error(err))
			continue
		}
		if err != nil {
			logger.Error("skip turn", zap.String("member", member), zap.Error(err))
			continue
		}
		skipped++

		ev := MatchEvent{
			Type:       "turn_skipped",
			MatchID:    m.ID,
			Token:      token,
			Player:     m.OpponentID(next),
			NextTurn:   next,
			ShotNumber: shotNumber + 1,
			Message:    "Turn timed out",
		}
		if err := mm.PublishEvent(ctx, ev); err != nil {
			logger.Error("publish turn_skipped", zap.String("match_id", m.ID), zap.Error(err))
			continue
		}
		logger.Info("turn skipped", zap.String("match_id", m.ID), zap.String("next_turn", next))
	}
	return skipped
}

// parseTurnMember expects m:<token>:s:<shotNumber>.
func parseTurnMember(member string) (string, int, error) {
	parts := strings.Split(member, ":")
	if len(parts) != 4 || parts[0] != "m" || parts[2] != "s" || parts[1] == "" {
		return "", 0, fmt.Errorf("unexpected member %q", member)
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil {
		return "", 0, fmt.Errorf("shot number in %q: %w", member, err)
	}
	return parts[1], n, nil
}
