package game

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrMatchNotPlaying = errors.New("match is not in progress")
	ErrMatchNotReady   = errors.New("match needs two players")
	ErrMatchFull       = errors.New("match already has two players")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrNotYourBall     = errors.New("ball does not belong to your faction")
	ErrBallUnavailable = errors.New("ball is not on the table")
	ErrShotInFlight    = errors.New("a shot is already in progress")
	ErrUnknownPlayer   = errors.New("player is not part of this match")
	ErrStaleTurn       = errors.New("turn has already moved on")
)

// How a finished match was decided.
const (
	WinElimination = "elimination"
	WinConcede     = "concede"
	WinForfeit     = "forfeit"
)

// Player is one side of a match.
type Player struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"display_name,omitempty"`
	Faction        Faction    `json:"faction"`
	Connected      bool       `json:"connected"`
	ShowedUp       bool       `json:"showed_up"`
	DisconnectedAt *time.Time `json:"-"`
}

// ShotResult is the authoritative outcome of one shot, from impulse to rest.
type ShotResult struct {
	ShotNumber    int            `json:"shot_number"`
	Shot          ShotDescriptor `json:"shot"`
	Events        []Event        `json:"events"`
	Ticks         int            `json:"ticks"`
	Eliminated    []int          `json:"eliminated"`
	State         GameState      `json:"state"`
	TurnChange    bool           `json:"turn_change"`
	NextTurn      string         `json:"next_turn,omitempty"`
	GameOver      bool           `json:"game_over"`
	Winner        string         `json:"winner,omitempty"`
	WinnerFaction Faction        `json:"winner_faction,omitempty"`
	WinType       string         `json:"win_type,omitempty"`
}

// Match pairs two players with one authoritative Driver. Faction A belongs
// to the creator and moves first; faction B joins later.
type Match struct {
	ID           string
	Token        string
	PlayerA      *Player
	PlayerB      *Player
	Private      bool
	PasscodeHash []byte
	ShotNumber   int
	WinType      string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	LastActivity time.Time

	driver  *Driver
	pending []Event
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewMatch creates a waiting match around initial, which is usually a fresh
// Engine.InitializeMatch. Shots are always simulated synchronously, so any
// scheduler in opts is overridden.
func NewMatch(id, token string, creator *Player, initial GameState, expiresAt time.Time, logger *zap.Logger, opts ...DriverOption) *Match {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	creator.Faction = FactionA

	m := &Match{
		ID:           id,
		Token:        token,
		PlayerA:      creator,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		LastActivity: now,
		logger:       logger.Named("match").With(zap.String("match_id", id)),
	}

	initial = initial.Clone()
	initial.Status = StatusWaiting
	initial.Winner = nil
	initial.TurnOwner = FactionA

	opts = append(opts,
		WithLogger(logger),
		WithScheduler(SyncScheduler{}),
		WithEventSink(func(events []Event) { m.pending = append(m.pending, events...) }),
	)
	m.driver = NewDriver(initial, opts...)
	return m
}

// Join seats p as faction B.
func (m *Match) Join(p *Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PlayerB != nil {
		return ErrMatchFull
	}
	if m.PlayerA.ID == p.ID {
		return ErrMatchFull
	}
	p.Faction = FactionB
	m.PlayerB = p
	m.LastActivity = time.Now()
	return nil
}

// Start moves a waiting match with both players seated into play. Calling it
// again is a no-op.
func (m *Match) Start() error {
	_, err := m.start()
	return err
}

// start reports whether this call was the one that moved the match into play.
func (m *Match) start() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.driver.Snapshot()
	if state.Status != StatusWaiting {
		m.logger.Debug("start skipped, match already started", zap.String("status", string(state.Status)))
		return false, nil
	}
	if m.PlayerB == nil {
		return false, ErrMatchNotReady
	}

	state.Status = StatusPlaying
	state.TurnOwner = FactionA
	state.Scores = Scores{A: state.CountAlive(FactionA), B: state.CountAlive(FactionB)}
	if err := m.driver.Load(state); err != nil {
		return false, err
	}

	now := time.Now()
	m.StartedAt = &now
	m.LastActivity = now
	m.logger.Info("match started", zap.String("player_a", m.PlayerA.ID), zap.String("player_b", m.PlayerB.ID))
	return true, nil
}

// State returns a copy of the current game state.
func (m *Match) State() GameState {
	return m.driver.Snapshot()
}

func (m *Match) Status() Status {
	return m.driver.Snapshot().Status
}

// ValidateCanShoot checks whether playerID may take shot right now.
func (m *Match) ValidateCanShoot(playerID string, shot ShotDescriptor) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.validateShotLocked(playerID, shot)
	return err
}

func (m *Match) validateShotLocked(playerID string, shot ShotDescriptor) (*Player, error) {
	player := m.playerLocked(playerID)
	if player == nil {
		return nil, ErrUnknownPlayer
	}
	if m.driver.IsSimulating() {
		return nil, ErrShotInFlight
	}

	state := m.driver.Snapshot()
	if state.Status != StatusPlaying {
		return nil, ErrMatchNotPlaying
	}
	if state.TurnOwner != player.Faction {
		return nil, ErrNotYourTurn
	}

	b := state.Ball(shot.BallID)
	if b == nil || b.IsDead {
		return nil, ErrBallUnavailable
	}
	if b.Faction != player.Faction {
		return nil, ErrNotYourBall
	}

	if err := shot.Validate(); err != nil {
		return nil, err
	}
	if shot.Velocity().IsZero() {
		return nil, ErrInvalidPower
	}
	return player, nil
}

// TakeShot runs shot to rest and hands the turn to the opponent unless the
// match ended.
func (m *Match) TakeShot(playerID string, shot ShotDescriptor) (*ShotResult, error) {
	return m.TakeShotAndRelay(playerID, shot, nil)
}

// TakeShotAndRelay is TakeShot with a hook that receives the accepted
// descriptor before it is simulated. The hook runs under the match lock, so
// nothing can change the turn between acceptance and resolution; it must not
// call back into the match.
func (m *Match) TakeShotAndRelay(playerID string, shot ShotDescriptor, relay func(ShotDescriptor)) (*ShotResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	player, err := m.validateShotLocked(playerID, shot)
	if err != nil {
		return nil, err
	}
	shot.ShooterFaction = player.Faction
	if shot.Timestamp == 0 {
		shot.Timestamp = time.Now().UnixMilli()
	}
	if relay != nil {
		relay(shot)
	}

	m.pending = nil
	var final GameState
	if !m.driver.RequestShot(shot.BallID, shot.Velocity(), func(s GameState) { final = s }) {
		return nil, ErrShotInFlight
	}

	m.ShotNumber++
	result := &ShotResult{
		ShotNumber: m.ShotNumber,
		Shot:       shot,
		Events:     m.pending,
		Ticks:      m.driver.Ticks(),
		Eliminated: []int{},
	}
	m.pending = nil
	for _, e := range result.Events {
		if e.Kind == EventSplash {
			result.Eliminated = append(result.Eliminated, e.BallID)
		}
	}

	now := time.Now()
	if final.Status == StatusFinished && final.Winner != nil {
		m.WinType = WinElimination
		m.CompletedAt = &now
		result.GameOver = true
		result.WinnerFaction = *final.Winner
		result.Winner = m.playerByFactionLocked(*final.Winner).ID
		result.WinType = WinElimination
	} else {
		final.TurnOwner = player.Faction.Opponent()
		result.TurnChange = true
		result.NextTurn = m.playerByFactionLocked(final.TurnOwner).ID
	}
	if err := m.driver.Load(final); err != nil {
		return nil, err
	}
	result.State = final
	m.LastActivity = now

	m.logger.Info("shot resolved",
		zap.Int("shot_number", m.ShotNumber),
		zap.String("player", playerID),
		zap.Int("ball_id", shot.BallID),
		zap.Int("ticks", result.Ticks),
		zap.Ints("eliminated", result.Eliminated),
		zap.Bool("game_over", result.GameOver))
	return result, nil
}

// SkipTurn hands the turn over when the player on turn shotNumber ran out of
// time. It returns the id of the player now on turn.
func (m *Match) SkipTurn(shotNumber int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.driver.Snapshot()
	if state.Status != StatusPlaying {
		return "", ErrMatchNotPlaying
	}
	if shotNumber != m.ShotNumber || m.driver.IsSimulating() {
		return "", ErrStaleTurn
	}

	skipped := state.TurnOwner
	state.TurnOwner = skipped.Opponent()
	if err := m.driver.Load(state); err != nil {
		return "", err
	}
	m.ShotNumber++
	m.LastActivity = time.Now()

	next := m.playerByFactionLocked(state.TurnOwner).ID
	m.logger.Info("turn skipped", zap.String("faction", string(skipped)), zap.String("next_turn", next))
	return next, nil
}

// Concede ends the match in the opponent's favour.
func (m *Match) Concede(playerID string) error {
	return m.forfeit(playerID, WinConcede)
}

// ForfeitByDisconnect ends the match against a player who left.
func (m *Match) ForfeitByDisconnect(playerID string) error {
	return m.forfeit(playerID, WinForfeit)
}

func (m *Match) forfeit(playerID, winType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	loser := m.playerLocked(playerID)
	if loser == nil {
		return ErrUnknownPlayer
	}
	if m.driver.IsSimulating() {
		return ErrShotInFlight
	}
	state := m.driver.Snapshot()
	if state.Status != StatusPlaying {
		return ErrMatchNotPlaying
	}

	winner := loser.Faction.Opponent()
	state.Status = StatusFinished
	state.Winner = &winner
	if err := m.driver.Load(state); err != nil {
		return err
	}

	now := time.Now()
	m.WinType = winType
	m.CompletedAt = &now
	m.LastActivity = now
	m.logger.Info("match forfeited", zap.String("loser", playerID), zap.String("win_type", winType))
	return nil
}

// WinnerID returns the winning player's id, or "" while undecided.
func (m *Match) WinnerID() string {
	state := m.driver.Snapshot()
	if state.Winner == nil {
		return ""
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p := m.playerByFactionLocked(*state.Winner); p != nil {
		return p.ID
	}
	return ""
}

// MatchView is the state of a match as one player sees it.
type MatchView struct {
	MatchID           string    `json:"match_id"`
	Token             string    `json:"token"`
	Status            Status    `json:"status"`
	MyID              string    `json:"my_id"`
	MyFaction         Faction   `json:"my_faction"`
	MyTurn            bool      `json:"my_turn"`
	OpponentID        string    `json:"opponent_id,omitempty"`
	OpponentName      string    `json:"opponent_display_name,omitempty"`
	OpponentConnected bool      `json:"opponent_connected"`
	ShotNumber        int       `json:"shot_number"`
	Winner            string    `json:"winner,omitempty"`
	WinType           string    `json:"win_type,omitempty"`
	State             GameState `json:"state"`
}

// StateForPlayer returns the match as seen by playerID.
func (m *Match) StateForPlayer(playerID string) (MatchView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	me := m.playerLocked(playerID)
	if me == nil {
		return MatchView{}, ErrUnknownPlayer
	}
	state := m.driver.Snapshot()

	view := MatchView{
		MatchID:    m.ID,
		Token:      m.Token,
		Status:     state.Status,
		MyID:       me.ID,
		MyFaction:  me.Faction,
		MyTurn:     state.Status == StatusPlaying && state.TurnOwner == me.Faction,
		ShotNumber: m.ShotNumber,
		WinType:    m.WinType,
		State:      state,
	}
	if opp := m.playerByFactionLocked(me.Faction.Opponent()); opp != nil {
		view.OpponentID = opp.ID
		view.OpponentName = opp.DisplayName
		view.OpponentConnected = opp.Connected
	}
	if state.Winner != nil {
		if w := m.playerByFactionLocked(*state.Winner); w != nil {
			view.Winner = w.ID
		}
	}
	return view, nil
}

// === Connection management ===

func (m *Match) SetPlayerConnected(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.playerLocked(playerID); p != nil {
		p.Connected = true
		p.ShowedUp = true
		p.DisconnectedAt = nil
	}
}

func (m *Match) SetPlayerDisconnected(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.playerLocked(playerID); p != nil {
		now := time.Now()
		p.Connected = false
		p.DisconnectedAt = &now
	}
}

func (m *Match) BothPlayersConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PlayerA.Connected && m.PlayerB != nil && m.PlayerB.Connected
}

// HasPlayer reports whether playerID is seated in the match.
func (m *Match) HasPlayer(playerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playerLocked(playerID) != nil
}

// PlayerByID returns a copy of the player, so callers can read it without
// holding the match lock.
func (m *Match) PlayerByID(playerID string) (Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p := m.playerLocked(playerID); p != nil {
		return *p, true
	}
	return Player{}, false
}

// OpponentID returns the other player's id, or "" when nobody has joined.
func (m *Match) OpponentID(playerID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.playerLocked(playerID)
	if p == nil {
		return ""
	}
	if opp := m.playerByFactionLocked(p.Faction.Opponent()); opp != nil {
		return opp.ID
	}
	return ""
}

// PlayerIDs lists the seated players, creator first.
func (m *Match) PlayerIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := []string{m.PlayerA.ID}
	if m.PlayerB != nil {
		ids = append(ids, m.PlayerB.ID)
	}
	return ids
}

func (m *Match) playerLocked(playerID string) *Player {
	if m.PlayerA != nil && m.PlayerA.ID == playerID {
		return m.PlayerA
	}
	if m.PlayerB != nil && m.PlayerB.ID == playerID {
		return m.PlayerB
	}
	return nil
}

func (m *Match) playerByFactionLocked(f Faction) *Player {
	if f == FactionA {
		return m.PlayerA
	}
	return m.PlayerB
}
