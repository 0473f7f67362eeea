package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/playmatatu/bumper/internal/config"
	"github.com/playmatatu/bumper/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrBadPasscode   = errors.New("wrong passcode")
)

// json is the codec for Redis snapshots and JSONB columns.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// MatchEventsChannel carries MatchEvent payloads between server instances.
	MatchEventsChannel = "match_events"
	turnDeadlineKey    = "turn_deadline"
	snapshotTTL        = time.Hour
	finishedRetention  = 10 * time.Minute
)

// redisStore is the part of the Redis client the manager uses.
type redisStore interface {
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
}

// MatchManager owns every live match. Redis and Postgres are optional; with
// either missing the manager keeps working in memory.
type MatchManager struct {
	matches       map[string]*Match // match id -> match
	tokenToMatch  map[string]string // token -> match id
	playerToMatch map[string]string // player id -> match id
	engine        *Engine
	rdb           redisStore
	db            *sqlx.DB
	config        *config.Config
	logger        *zap.Logger
	mu            sync.RWMutex
}

// NewMatchManager creates a manager. The arena is sized from the configured
// display.
func NewMatchManager(db *sqlx.DB, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *MatchManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	width, height := cfg.DisplayWidth, cfg.DisplayHeight
	if width <= 0 || height <= 0 {
		width, height = 1000, 800
	}
	mm := &MatchManager{
		matches:       make(map[string]*Match),
		tokenToMatch:  make(map[string]string),
		playerToMatch: make(map[string]string),
		engine:        NewEngine(width, height),
		db:            db,
		config:        cfg,
		logger:        logger.Named("manager"),
	}
	// A nil *redis.Client must stay a nil interface.
	if rdb != nil {
		mm.rdb = rdb
	}
	return mm
}

func (mm *MatchManager) Config() *config.Config {
	return mm.config
}

// Engine exposes the arena geometry shared by every match.
func (mm *MatchManager) Engine() *Engine {
	return mm.engine
}

// generateToken returns length random bytes, hex encoded.
func generateToken(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func (mm *MatchManager) driverOptions() []DriverOption {
	return []DriverOption{WithStrictInvariants(mm.config.StrictInvariants)}
}

// CreateMatch opens a waiting match with the caller as faction A. A non-empty
// passcode makes the match private.
func (mm *MatchManager) CreateMatch(ctx context.Context, displayName, passcode string) (*Match, *Player, error) {
	creator := &Player{ID: uuid.NewString(), DisplayName: displayName}
	expiresAt := time.Now().Add(time.Duration(mm.config.MatchExpiryMinutes) * time.Minute)

	m := NewMatch(uuid.NewString(), generateToken(16), creator, mm.engine.InitializeMatch(), expiresAt, mm.logger, mm.driverOptions()...)
	if passcode != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, fmt.Errorf("hash passcode: %w", err)
		}
		m.Private = true
		m.PasscodeHash = hash
	}

	mm.mu.Lock()
	mm.matches[m.ID] = m
	mm.tokenToMatch[m.Token] = m.ID
	mm.playerToMatch[creator.ID] = m.ID
	mm.mu.Unlock()

	mm.logger.Info("match created",
		zap.String("match_id", m.ID),
		zap.String("token", m.Token),
		zap.Bool("private", m.Private))

	mm.recordMatchCreated(ctx, m)
	mm.saveSnapshot(ctx, m)
	return m, creator, nil
}

// JoinMatch seats a second player as faction B.
func (mm *MatchManager) JoinMatch(ctx context.Context, token, displayName, passcode string) (*Match, *Player, error) {
	m, err := mm.GetMatchByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if m.Status() != StatusWaiting {
		return nil, nil, ErrMatchFull
	}
	if m.Private {
		if err := bcrypt.CompareHashAndPassword(m.PasscodeHash, []byte(passcode)); err != nil {
			return nil, nil, ErrBadPasscode
		}
	}

	joiner := &Player{ID: uuid.NewString(), DisplayName: displayName}
	if err := m.Join(joiner); err != nil {
		return nil, nil, err
	}

	mm.mu.Lock()
	mm.playerToMatch[joiner.ID] = m.ID
	mm.mu.Unlock()

	mm.logger.Info("player joined", zap.String("match_id", m.ID), zap.String("player_id", joiner.ID))
	mm.recordMatchJoined(ctx, m, joiner.ID)
	mm.saveSnapshot(ctx, m)
	return m, joiner, nil
}

// GetMatch looks a match up by id in memory.
func (mm *MatchManager) GetMatch(matchID string) (*Match, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	m, ok := mm.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// GetMatchByToken looks in memory first, then falls back to the Redis
// snapshot and rehydrates the match.
func (mm *MatchManager) GetMatchByToken(ctx context.Context, token string) (*Match, error) {
	mm.mu.RLock()
	id, ok := mm.tokenToMatch[token]
	m := mm.matches[id]
	mm.mu.RUnlock()
	if ok && m != nil {
		return m, nil
	}

	m, err := mm.loadSnapshot(ctx, token)
	if err != nil {
		mm.logger.Debug("match not in redis", zap.String("token", token), zap.Error(err))
		return nil, ErrMatchNotFound
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	// Another caller may have rehydrated it meanwhile.
	if existing, ok := mm.matches[m.ID]; ok {
		return existing, nil
	}
	mm.matches[m.ID] = m
	mm.tokenToMatch[m.Token] = m.ID
	for _, pid := range m.PlayerIDs() {
		mm.playerToMatch[pid] = m.ID
	}
	mm.logger.Info("match rehydrated from redis", zap.String("match_id", m.ID))
	return m, nil
}

// MatchForPlayer returns the match playerID is seated in.
func (mm *MatchManager) MatchForPlayer(playerID string) (*Match, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	id, ok := mm.playerToMatch[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	m, ok := mm.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// ActiveMatchCount returns how many matches are held in memory.
func (mm *MatchManager) ActiveMatchCount() int {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return len(mm.matches)
}

// StartMatch starts play and arms the first turn deadline. It reports
// whether this call started the match; concurrent callers see false.
func (mm *MatchManager) StartMatch(ctx context.Context, m *Match) (bool, error) {
	started, err := m.start()
	if err != nil || !started {
		return false, err
	}
	mm.recordMatchStarted(ctx, m)
	mm.saveSnapshot(ctx, m)
	mm.scheduleTurnDeadline(ctx, m)
	return true, nil
}

// TakeShot resolves a shot and persists everything it changed.
func (mm *MatchManager) TakeShot(ctx context.Context, m *Match, playerID string, shot ShotDescriptor) (*ShotResult, error) {
	return mm.TakeShotAndRelay(ctx, m, playerID, shot, nil)
}

// TakeShotAndRelay resolves shot like TakeShot and hands the accepted
// descriptor to relay first.
func (mm *MatchManager) TakeShotAndRelay(ctx context.Context, m *Match, playerID string, shot ShotDescriptor, relay func(ShotDescriptor)) (*ShotResult, error) {
	result, err := m.TakeShotAndRelay(playerID, shot, relay)
	if err != nil {
		return nil, err
	}

	mm.clearTurnDeadline(ctx, m.Token, result.ShotNumber-1)
	mm.recordShot(ctx, m, playerID, result)
	mm.saveSnapshot(ctx, m)
	if result.GameOver {
		mm.recordMatchFinished(ctx, m)
	} else {
		mm.scheduleTurnDeadline(ctx, m)
	}
	return result, nil
}

// SkipTurn passes the turn after a timeout on turn shotNumber.
func (mm *MatchManager) SkipTurn(ctx context.Context, m *Match, shotNumber int) (string, error) {
	next, err := m.SkipTurn(shotNumber)
	if err != nil {
		return "", err
	}
	mm.saveSnapshot(ctx, m)
	mm.scheduleTurnDeadline(ctx, m)
	return next, nil
}

// Concede ends m in favour of playerID's opponent.
func (mm *MatchManager) Concede(ctx context.Context, m *Match, playerID string) error {
	if err := m.Concede(playerID); err != nil {
		return err
	}
	mm.finish(ctx, m)
	return nil
}

// ForfeitByDisconnect ends m against a player who did not come back.
func (mm *MatchManager) ForfeitByDisconnect(ctx context.Context, m *Match, playerID string) error {
	if err := m.ForfeitByDisconnect(playerID); err != nil {
		return err
	}
	mm.finish(ctx, m)
	return nil
}

func (mm *MatchManager) finish(ctx context.Context, m *Match) {
	m.mu.RLock()
	shotNumber := m.ShotNumber
	m.mu.RUnlock()
	mm.clearTurnDeadline(ctx, m.Token, shotNumber)
	mm.recordMatchFinished(ctx, m)
	mm.saveSnapshot(ctx, m)
}

// EndMatch drops a match from memory.
func (mm *MatchManager) EndMatch(matchID string) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	for _, pid := range m.PlayerIDs() {
		delete(mm.playerToMatch, pid)
	}
	delete(mm.tokenToMatch, m.Token)
	delete(mm.matches, matchID)
	return nil
}

// StartExpiryChecker drops waiting matches nobody joined in time, and
// finished ones after a grace period, until ctx is cancelled.
func (mm *MatchManager) StartExpiryChecker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mm.checkExpiredMatches(ctx, time.Now()); n > 0 {
				mm.logger.Info("expired waiting matches", zap.Int("count", n))
			}
		}
	}
}

func (mm *MatchManager) checkExpiredMatches(ctx context.Context, now time.Time) int {
	mm.mu.RLock()
	var expired, finished []*Match
	for _, m := range mm.matches {
		switch m.Status() {
		case StatusWaiting:
			if now.After(m.ExpiresAt) {
				expired = append(expired, m)
			}
		case StatusFinished:
			m.mu.RLock()
			done := m.CompletedAt != nil && now.Sub(*m.CompletedAt) > finishedRetention
			m.mu.RUnlock()
			if done {
				finished = append(finished, m)
			}
		}
	}
	mm.mu.RUnlock()

	for _, m := range expired {
		if err := mm.EndMatch(m.ID); err != nil {
			continue
		}
		mm.recordMatchExpired(ctx, m)
		if mm.rdb != nil {
			mm.rdb.Del(ctx, snapshotKey(m.Token))
		}
		mm.logger.Info("match expired", zap.String("match_id", m.ID))
	}
	// Finished matches linger so late reconnects still see the result.
	for _, m := range finished {
		mm.EndMatch(m.ID)
	}
	return len(expired)
}

// === Redis ===

// MatchEvent is published on MatchEventsChannel for matches that changed
// outside a websocket handler, so every instance can tell its clients.
type MatchEvent struct {
	Type       string `json:"type"`
	MatchID    string `json:"match_id"`
	Token      string `json:"token"`
	Player     string `json:"player,omitempty"`
	NextTurn   string `json:"next_turn,omitempty"`
	ShotNumber int    `json:"shot_number"`
	Message    string `json:"message,omitempty"`
}

// PublishEvent broadcasts ev to every subscribed instance.
func (mm *MatchManager) PublishEvent(ctx context.Context, ev MatchEvent) error {
	if mm.rdb == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return mm.rdb.Publish(ctx, MatchEventsChannel, data).Err()
}

func snapshotKey(token string) string {
	return "match:" + token + ":state"
}

func turnMember(token string, shotNumber int) string {
	return fmt.Sprintf("m:%s:s:%d", token, shotNumber)
}

// matchSnapshot is the Redis form of a Match.
type matchSnapshot struct {
	ID           string     `json:"id"`
	Token        string     `json:"token"`
	PlayerA      *Player    `json:"player_a"`
	PlayerB      *Player    `json:"player_b,omitempty"`
	Private      bool       `json:"private"`
	PasscodeHash []byte     `json:"passcode_hash,omitempty"`
	ShotNumber   int        `json:"shot_number"`
	WinType      string     `json:"win_type,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	State        GameState  `json:"state"`
}

func (m *Match) snapshot() matchSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := matchSnapshot{
		ID:           m.ID,
		Token:        m.Token,
		Private:      m.Private,
		PasscodeHash: m.PasscodeHash,
		ShotNumber:   m.ShotNumber,
		WinType:      m.WinType,
		ExpiresAt:    m.ExpiresAt,
		CreatedAt:    m.CreatedAt,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
		State:        m.driver.Snapshot(),
	}
	a := *m.PlayerA
	snap.PlayerA = &a
	if m.PlayerB != nil {
		b := *m.PlayerB
		snap.PlayerB = &b
	}
	return snap
}

func (mm *MatchManager) restoreMatch(snap matchSnapshot) (*Match, error) {
	if snap.PlayerA == nil {
		return nil, errors.New("snapshot without creator")
	}
	if err := snap.State.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot state: %w", err)
	}

	snap.PlayerA.Connected = false
	m := NewMatch(snap.ID, snap.Token, snap.PlayerA, snap.State, snap.ExpiresAt, mm.logger, mm.driverOptions()...)
	if snap.PlayerB != nil {
		snap.PlayerB.Connected = false
		snap.PlayerB.Faction = FactionB
		m.PlayerB = snap.PlayerB
	}
	m.Private = snap.Private
	m.PasscodeHash = snap.PasscodeHash
	m.ShotNumber = snap.ShotNumber
	m.WinType = snap.WinType
	m.CreatedAt = snap.CreatedAt
	m.StartedAt = snap.StartedAt
	m.CompletedAt = snap.CompletedAt
	if err := m.driver.Load(snap.State); err != nil {
		return nil, err
	}
	return m, nil
}

// saveSnapshot writes m to Redis with a one hour TTL.
func (mm *MatchManager) saveSnapshot(ctx context.Context, m *Match) {
	if mm.rdb == nil {
		return
	}
	data, err := json.Marshal(m.snapshot())
	if err != nil {
		mm.logger.Error("encode snapshot", zap.String("match_id", m.ID), zap.Error(err))
		return
	}
	if err := mm.rdb.SetEx(ctx, snapshotKey(m.Token), data, snapshotTTL).Err(); err != nil {
		mm.logger.Error("save snapshot", zap.String("match_id", m.ID), zap.Error(err))
	}
}

func (mm *MatchManager) loadSnapshot(ctx context.Context, token string) (*Match, error) {
	if mm.rdb == nil {
		return nil, errors.New("no redis client")
	}
	data, err := mm.rdb.Get(ctx, snapshotKey(token)).Bytes()
	if err == redis.Nil {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap matchSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return mm.restoreMatch(snap)
}

// scheduleTurnDeadline arms the timeout for the turn that is currently open.
func (mm *MatchManager) scheduleTurnDeadline(ctx context.Context, m *Match) {
	if mm.rdb == nil || mm.config.TurnTimeoutSeconds <= 0 {
		return
	}
	m.mu.RLock()
	shotNumber := m.ShotNumber
	m.mu.RUnlock()

	deadline := time.Now().Add(time.Duration(mm.config.TurnTimeoutSeconds) * time.Second)
	member := turnMember(m.Token, shotNumber)
	if err := mm.rdb.ZAdd(ctx, turnDeadlineKey, redis.Z{Score: float64(deadline.Unix()), Member: member}).Err(); err != nil {
		mm.logger.Error("schedule turn deadline", zap.String("member", member), zap.Error(err))
	}
}

func (mm *MatchManager) clearTurnDeadline(ctx context.Context, token string, shotNumber int) {
	if mm.rdb == nil {
		return
	}
	mm.rdb.ZRem(ctx, turnDeadlineKey, turnMember(token, shotNumber))
}

// === Postgres ===

func (mm *MatchManager) recordMatchCreated(ctx context.Context, m *Match) {
	if mm.db == nil {
		return
	}
	_, err := mm.db.ExecContext(ctx,
		`INSERT INTO matches (id, token, player_a_id, private, status, created_at, expires_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.Token, m.PlayerA.ID, m.Private, string(StatusWaiting), m.CreatedAt, m.ExpiresAt)
	if err != nil {
		mm.logger.Error("insert match", zap.String("match_id", m.ID), zap.Error(err))
	}
}

func (mm *MatchManager) recordMatchJoined(ctx context.Context, m *Match, playerID string) {
	if mm.db == nil {
		return
	}
	if _, err := mm.db.ExecContext(ctx, `UPDATE matches SET player_b_id=$1 WHERE id=$2`, playerID, m.ID); err != nil {
		mm.logger.Error("update match player", zap.String("match_id", m.ID), zap.Error(err))
	}
}

func (mm *MatchManager) recordMatchStarted(ctx context.Context, m *Match) {
	if mm.db == nil {
		return
	}
	m.mu.RLock()
	startedAt := m.StartedAt
	m.mu.RUnlock()
	if _, err := mm.db.ExecContext(ctx, `UPDATE matches SET status=$1, started_at=$2 WHERE id=$3`, string(StatusPlaying), startedAt, m.ID); err != nil {
		mm.logger.Error("mark match started", zap.String("match_id", m.ID), zap.Error(err))
	}
}

func (mm *MatchManager) recordShot(ctx context.Context, m *Match, playerID string, result *ShotResult) {
	if mm.db == nil {
		return
	}
	shotData, err := json.Marshal(result.Shot)
	if err != nil {
		mm.logger.Error("encode shot", zap.String("match_id", m.ID), zap.Error(err))
		return
	}
	eliminated, err := json.Marshal(result.Eliminated)
	if err != nil {
		mm.logger.Error("encode eliminated", zap.String("match_id", m.ID), zap.Error(err))
		return
	}

	_, err = mm.db.ExecContext(ctx,
		`INSERT INTO match_shots (match_id, shot_number, player_id, faction, shot_data, ticks, event_count, eliminated, score_a, score_b, created_at)
		 VALUES ($1,$2,$3,$4,$5::jsonb,$6,$7,$8::jsonb,$9,$10,NOW())`,
		m.ID, result.ShotNumber, playerID, string(result.Shot.ShooterFaction), string(shotData),
		result.Ticks, len(result.Events), string(eliminated), result.State.Scores.A, result.State.Scores.B)
	if err != nil {
		mm.logger.Error("insert shot", zap.String("match_id", m.ID), zap.Int("shot_number", result.ShotNumber), zap.Error(err))
	}
}

func (mm *MatchManager) recordMatchFinished(ctx context.Context, m *Match) {
	if mm.db == nil {
		return
	}
	winner := m.WinnerID()
	m.mu.RLock()
	winType, shots, completedAt := m.WinType, m.ShotNumber, m.CompletedAt
	m.mu.RUnlock()

	_, err := mm.db.ExecContext(ctx,
		`UPDATE matches SET status=$1, winner_id=$2, win_type=$3, shot_count=$4, completed_at=$5 WHERE id=$6`,
		string(StatusFinished), winner, winType, shots, completedAt, m.ID)
	if err != nil {
		mm.logger.Error("mark match finished", zap.String("match_id", m.ID), zap.Error(err))
	}
}

func (mm *MatchManager) recordMatchExpired(ctx context.Context, m *Match) {
	if mm.db == nil {
		return
	}
	if _, err := mm.db.ExecContext(ctx, `UPDATE matches SET status='expired' WHERE id=$1 AND status=$2`, m.ID, string(StatusWaiting)); err != nil {
		mm.logger.Error("mark match expired", zap.String("match_id", m.ID), zap.Error(err))
	}
}

// ShotHistory lists the recorded shots of a match in order.
func (mm *MatchManager) ShotHistory(ctx context.Context, matchID string) ([]models.ShotRecord, error) {
	if mm.db == nil {
		return []models.ShotRecord{}, nil
	}
	shots := []models.ShotRecord{}
	err := mm.db.SelectContext(ctx, &shots,
		`SELECT id, match_id, shot_number, player_id, faction, shot_data, ticks, event_count, eliminated, score_a, score_b, created_at
		 FROM match_shots WHERE match_id=$1 ORDER BY shot_number`, matchID)
	if err != nil {
		return nil, fmt.Errorf("load shot history: %w", err)
	}
	return shots, nil
}
