package main

import (
	"bytes"
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/playmatatu/bumper/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestSimulateJSONMatchesReplay(t *testing.T) {
	out, err := execute(t, "--width", "1000", "--height", "800", "--ball", "12", "--vx", "18", "--vy", "2", "--strict", "--json")
	require.NoError(t, err)

	var got summary
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(out), &got))

	initial := game.NewEngine(1000, 800).InitializeMatch()
	initial.Status = game.StatusPlaying
	want, err := game.Replay(initial, game.ShotDescriptor{BallID: 12, X: 18, Y: 2})
	require.NoError(t, err)

	assert.Equal(t, want.Ticks, got.Ticks)
	assert.Equal(t, want.State.Scores, got.Final.Scores)
	assert.Len(t, got.Events, len(want.Events))
}

func TestSimulateTextSummary(t *testing.T) {
	out, err := execute(t, "--vx", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "ticks:")
	assert.Contains(t, out, "score A")
}

func TestSimulateRealtime(t *testing.T) {
	out, err := execute(t, "--vx", "4", "--realtime", "--frame-ms", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "ticks:")
}

func TestSimulateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too strong", []string{"--vx", "500"}},
		{"unknown ball", []string{"--ball", "99"}},
		{"bad display", []string{"--width", "0"}},
		{"unknown flag", []string{"--spin", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
