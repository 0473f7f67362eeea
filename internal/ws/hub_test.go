package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playmatatu/bumper/internal/auth"
	"github.com/playmatatu/bumper/internal/config"
	"github.com/playmatatu/bumper/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Environment:        "development",
		MatchExpiryMinutes: 5,
		DisplayWidth:       1000,
		DisplayHeight:      800,
		StrictInvariants:   true,
		JWTSecret:          testSecret,
	}
}

type testServer struct {
	hub *Hub
	mm  *game.MatchManager
	srv *httptest.Server
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mm := game.NewMatchManager(nil, nil, cfg, nil)
	hub := NewHub(mm, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/api/v1/match/:token/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{hub: hub, mm: mm, srv: srv}
}

// seat creates a match with two players and returns their player tokens.
func (ts *testServer) seat(t *testing.T) (*game.Match, string, string) {
	t.Helper()
	ctx := context.Background()
	m, alice, err := ts.mm.CreateMatch(ctx, "Alice", "")
	require.NoError(t, err)
	_, bob, err := ts.mm.JoinMatch(ctx, m.Token, "Bob", "")
	require.NoError(t, err)

	pa, err := auth.IssuePlayerToken(testSecret, m.ID, alice.ID, string(alice.Faction), time.Minute)
	require.NoError(t, err)
	pb, err := auth.IssuePlayerToken(testSecret, m.ID, bob.ID, string(bob.Faction), time.Minute)
	require.NoError(t, err)
	return m, pa, pb
}

func (ts *testServer) dial(token, pt string) (*websocket.Conn, *http.Response, error) {
	u := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/match/" + token + "/ws?pt=" + url.QueryEscape(pt)
	header := http.Header{"Origin": []string{"http://localhost:5173"}}
	return websocket.DefaultDialer.Dial(u, header)
}

func (ts *testServer) connect(t *testing.T, token, pt string) *websocket.Conn {
	t.Helper()
	conn, _, err := ts.dial(token, pt)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readType skips messages until one of type want arrives.
func readType(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", want)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == want {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	payload := map[string]interface{}{"type": msgType}
	if data != nil {
		payload["data"] = data
	}
	require.NoError(t, conn.WriteJSON(payload))
}

func TestHandshakeRejections(t *testing.T) {
	ts := newTestServer(t, testConfig())
	m, pa, _ := ts.seat(t)

	other, _, err := ts.mm.CreateMatch(context.Background(), "Carol", "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		pt    string
		code  int
	}{
		{"garbage token", m.Token, "nope", http.StatusUnauthorized},
		{"unknown match", "missing", pa, http.StatusNotFound},
		{"token for another match", other.Token, pa, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := ts.dial(tt.token, tt.pt)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestMatchFlowOverWebsocket(t *testing.T) {
	ts := newTestServer(t, testConfig())
	m, pa, pb := ts.seat(t)

	alice := ts.connect(t, m.Token, pa)
	readType(t, alice, "waiting_for_opponent")

	bob := ts.connect(t, m.Token, pb)
	readType(t, bob, "match_starting")
	bobState := readType(t, bob, "match_state")
	assert.Equal(t, false, bobState["my_turn"])
	assert.Equal(t, "B", bobState["my_faction"])

	readType(t, alice, "match_starting")
	aliceState := readType(t, alice, "match_state")
	assert.Equal(t, true, aliceState["my_turn"])
	assert.Equal(t, string(game.StatusPlaying), aliceState["status"])

	send(t, alice, "take_shot", map[string]interface{}{"ball_id": 12, "x": 20, "y": 0})

	relay := readType(t, bob, "shot_relay")
	shot := relay["shot"].(map[string]interface{})
	assert.Equal(t, float64(12), shot["ball_id"])
	assert.Equal(t, "A", shot["shooter_faction"])

	result := readType(t, bob, "shot_result")
	assert.Equal(t, float64(1), result["shot_number"])
	assert.NotZero(t, shot["timestamp"])
	assert.Equal(t, shot, result["shot"], "relay and result carry the same descriptor")
	assert.Equal(t, true, result["turn_change"])
	readType(t, alice, "shot_result")

	bobState = readType(t, bob, "match_state")
	assert.Equal(t, true, bobState["my_turn"])

	// Alice is out of turn now.
	send(t, alice, "take_shot", map[string]interface{}{"ball_id": 12, "x": 5, "y": 0})
	errMsg := readType(t, alice, "error")
	assert.Equal(t, game.ErrNotYourTurn.Error(), errMsg["message"])

	send(t, bob, "concede", nil)
	over := readType(t, alice, "match_over")
	assert.Equal(t, m.PlayerA.ID, over["winner"])
	assert.Equal(t, game.WinConcede, over["win_type"])
	assert.Equal(t, game.StatusFinished, m.Status())
}

func TestMatchStartsOnce(t *testing.T) {
	ts := newTestServer(t, testConfig())
	m, pa, pb := ts.seat(t)

	alice := ts.connect(t, m.Token, pa)
	ts.connect(t, m.Token, pb)
	readType(t, alice, "match_starting")
	readType(t, alice, "match_state")

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts.hub.startMatch(m)
		}()
	}
	wg.Wait()

	send(t, alice, "get_state", nil)
	alice.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := alice.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		require.NotEqual(t, "match_starting", msg["type"], "a started match is not announced again")
		if msg["type"] == "match_state" {
			break
		}
	}
}

func TestGetStateAndUnknownMessages(t *testing.T) {
	ts := newTestServer(t, testConfig())
	m, pa, _ := ts.seat(t)

	alice := ts.connect(t, m.Token, pa)
	readType(t, alice, "waiting_for_opponent")

	send(t, alice, "get_state", nil)
	state := readType(t, alice, "match_state")
	assert.Equal(t, string(game.StatusWaiting), state["status"])
	assert.Equal(t, m.ID, state["match_id"])

	send(t, alice, "dance", nil)
	errMsg := readType(t, alice, "error")
	assert.Equal(t, "Unknown message type", errMsg["message"])

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	errMsg = readType(t, alice, "error")
	assert.Equal(t, "Malformed message", errMsg["message"])
}

func TestShotRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.ShotRatePerSecond = 0.001
	ts := newTestServer(t, cfg)
	m, pa, pb := ts.seat(t)

	alice := ts.connect(t, m.Token, pa)
	readType(t, alice, "waiting_for_opponent")
	bob := ts.connect(t, m.Token, pb)
	readType(t, bob, "match_state")
	readType(t, alice, "match_state")

	// The first attempt spends the only token even though it is rejected.
	send(t, alice, "take_shot", map[string]interface{}{"ball_id": 13, "x": -5, "y": 0})
	errMsg := readType(t, alice, "error")
	assert.Equal(t, game.ErrNotYourBall.Error(), errMsg["message"])

	send(t, alice, "take_shot", map[string]interface{}{"ball_id": 12, "x": 5, "y": 0})
	errMsg = readType(t, alice, "error")
	assert.Equal(t, "Too many shots, slow down", errMsg["message"])
	assert.Zero(t, m.ShotNumber)
}

func TestDisconnectForfeit(t *testing.T) {
	cfg := testConfig()
	cfg.DisconnectGraceSeconds = 1
	ts := newTestServer(t, cfg)
	m, pa, pb := ts.seat(t)

	alice := ts.connect(t, m.Token, pa)
	bob := ts.connect(t, m.Token, pb)
	readType(t, alice, "match_state")
	readType(t, bob, "match_state")

	require.NoError(t, bob.Close())

	gone := readType(t, alice, "player_disconnected")
	assert.Equal(t, float64(1), gone["grace_seconds"])

	over := readType(t, alice, "match_over")
	assert.Equal(t, m.PlayerA.ID, over["winner"])
	assert.Equal(t, game.WinForfeit, over["win_type"])
}

func TestReconnectWithinGraceKeepsMatch(t *testing.T) {
	cfg := testConfig()
	cfg.DisconnectGraceSeconds = 1
	ts := newTestServer(t, cfg)
	m, pa, pb := ts.seat(t)

	alice := ts.connect(t, m.Token, pa)
	bob := ts.connect(t, m.Token, pb)
	readType(t, alice, "match_state")
	readType(t, bob, "match_state")

	require.NoError(t, bob.Close())
	readType(t, alice, "player_disconnected")

	bob = ts.connect(t, m.Token, pb)
	state := readType(t, bob, "match_state")
	assert.Equal(t, string(game.StatusPlaying), state["status"])
	readType(t, alice, "player_connected")

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, game.StatusPlaying, m.Status())
}

func TestHandleMatchEvent(t *testing.T) {
	ts := newTestServer(t, testConfig())
	m, pa, pb := ts.seat(t)

	alice := ts.connect(t, m.Token, pa)
	bob := ts.connect(t, m.Token, pb)
	readType(t, alice, "match_state")
	readType(t, bob, "match_state")

	next, err := ts.mm.SkipTurn(context.Background(), m, 0)
	require.NoError(t, err)

	payload, err := json.Marshal(game.MatchEvent{
		Type:       "turn_skipped",
		MatchID:    m.ID,
		Token:      m.Token,
		Player:     m.PlayerA.ID,
		NextTurn:   next,
		ShotNumber: 1,
		Message:    "Turn timed out",
	})
	require.NoError(t, err)
	ts.hub.handleMatchEvent(payload)

	skipped := readType(t, bob, "turn_skipped")
	assert.Equal(t, next, skipped["next_turn"])
	state := readType(t, bob, "match_state")
	assert.Equal(t, true, state["my_turn"])
}
