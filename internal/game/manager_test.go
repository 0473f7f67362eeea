package game

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/playmatatu/bumper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *MatchManager {
	cfg := &config.Config{
		MatchExpiryMinutes: 5,
		TurnTimeoutSeconds: 45,
		DisplayWidth:       canonicalWidth,
		DisplayHeight:      canonicalHeight,
		StrictInvariants:   true,
	}
	return NewMatchManager(nil, nil, cfg, nil)
}

func TestManagerCreateJoinPlay(t *testing.T) {
	ctx := context.Background()
	mm := newTestManager()

	m, alice, err := mm.CreateMatch(ctx, "Alice", "")
	require.NoError(t, err)
	assert.False(t, m.Private)
	assert.Equal(t, FactionA, alice.Faction)
	assert.Len(t, m.Token, 32)
	assert.Equal(t, 1, mm.ActiveMatchCount())

	byToken, err := mm.GetMatchByToken(ctx, m.Token)
	require.NoError(t, err)
	assert.Same(t, m, byToken)

	_, bob, err := mm.JoinMatch(ctx, m.Token, "Bob", "")
	require.NoError(t, err)
	assert.Equal(t, FactionB, bob.Faction)

	_, _, err = mm.JoinMatch(ctx, m.Token, "Carol", "")
	assert.ErrorIs(t, err, ErrMatchFull)

	forBob, err := mm.MatchForPlayer(bob.ID)
	require.NoError(t, err)
	assert.Same(t, m, forBob)

	started, err := mm.StartMatch(ctx, m)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, StatusPlaying, m.Status())
	started, err = mm.StartMatch(ctx, m)
	require.NoError(t, err)
	assert.False(t, started, "only the first start counts")

	result, err := mm.TakeShot(ctx, m, alice.ID, NewShot(12, Vec2{X: 1}, 20, FactionA))
	require.NoError(t, err)
	assert.Equal(t, bob.ID, result.NextTurn)

	history, err := mm.ShotHistory(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "no database configured")

	require.NoError(t, mm.Concede(ctx, m, bob.ID))
	assert.Equal(t, alice.ID, m.WinnerID())

	require.NoError(t, mm.EndMatch(m.ID))
	_, err = mm.GetMatch(m.ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, err = mm.MatchForPlayer(alice.ID)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestManagerPrivateMatchPasscode(t *testing.T) {
	ctx := context.Background()
	mm := newTestManager()

	m, _, err := mm.CreateMatch(ctx, "Alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, m.Private)
	assert.NotEqual(t, []byte("s3cret"), m.PasscodeHash)

	_, _, err = mm.JoinMatch(ctx, m.Token, "Bob", "guess")
	assert.ErrorIs(t, err, ErrBadPasscode)

	_, _, err = mm.JoinMatch(ctx, m.Token, "Bob", "s3cret")
	assert.NoError(t, err)
}

func TestManagerUnknownToken(t *testing.T) {
	mm := newTestManager()
	_, err := mm.GetMatchByToken(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, _, err = mm.JoinMatch(context.Background(), "nope", "Bob", "")
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestManagerExpiresOnlyWaitingMatches(t *testing.T) {
	ctx := context.Background()
	mm := newTestManager()

	waiting, _, err := mm.CreateMatch(ctx, "Alice", "")
	require.NoError(t, err)
	playing, _, err := mm.CreateMatch(ctx, "Carol", "")
	require.NoError(t, err)
	_, _, err = mm.JoinMatch(ctx, playing.Token, "Dave", "")
	require.NoError(t, err)
	_, err = mm.StartMatch(ctx, playing)
	require.NoError(t, err)

	assert.Zero(t, mm.checkExpiredMatches(ctx, time.Now()))
	assert.Equal(t, 1, mm.checkExpiredMatches(ctx, time.Now().Add(10*time.Minute)))

	_, err = mm.GetMatch(waiting.ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, err = mm.GetMatch(playing.ID)
	assert.NoError(t, err)

	require.NoError(t, mm.Concede(ctx, playing, playing.PlayerA.ID))
	assert.Zero(t, mm.checkExpiredMatches(ctx, time.Now()))
	_, err = mm.GetMatch(playing.ID)
	assert.NoError(t, err, "finished matches stay around for a while")

	mm.checkExpiredMatches(ctx, time.Now().Add(finishedRetention+time.Minute))
	_, err = mm.GetMatch(playing.ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	mm := newTestManager()

	m, alice, err := mm.CreateMatch(ctx, "Alice", "pin")
	require.NoError(t, err)
	_, bob, err := mm.JoinMatch(ctx, m.Token, "Bob", "pin")
	require.NoError(t, err)
	_, err = mm.StartMatch(ctx, m)
	require.NoError(t, err)
	_, err = mm.TakeShot(ctx, m, alice.ID, NewShot(12, Vec2{X: 1, Y: 0.3}, 24, FactionA))
	require.NoError(t, err)
	m.SetPlayerConnected(alice.ID)

	data, err := json.Marshal(m.snapshot())
	require.NoError(t, err)
	var snap matchSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored, err := mm.restoreMatch(snap)
	require.NoError(t, err)

	if diff := cmp.Diff(m.State(), restored.State(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("restored state differs (-want +got):\n%s", diff)
	}
	assert.Equal(t, m.ShotNumber, restored.ShotNumber)
	assert.Equal(t, m.PasscodeHash, restored.PasscodeHash)
	assert.True(t, restored.Private)

	a, ok := restored.PlayerByID(alice.ID)
	require.True(t, ok)
	assert.False(t, a.Connected, "connections do not survive a restore")
	b, ok := restored.PlayerByID(bob.ID)
	require.True(t, ok)
	assert.Equal(t, FactionB, b.Faction)

	// The restored match keeps playing where the original left off.
	state := restored.State()
	target := -1
	for _, ball := range state.Balls {
		if ball.Faction == FactionB && !ball.IsDead {
			target = ball.ID
			break
		}
	}
	require.NotEqual(t, -1, target)
	_, err = restored.TakeShot(bob.ID, NewShot(target, Vec2{Y: 1}, 5, FactionB))
	assert.NoError(t, err)
}

func TestParseTurnMember(t *testing.T) {
	token, n, err := parseTurnMember(turnMember("abc123", 7))
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
	assert.Equal(t, 7, n)

	for _, bad := range []string{"", "m:abc", "g:abc:p:1", "m::s:1", "m:abc:s:x"} {
		_, _, err := parseTurnMember(bad)
		assert.Error(t, err, bad)
	}
}
