package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canonical display used across the package tests: arena 800x560 centered
// at (500,400), ball radius 28, gap 96.
const (
	canonicalWidth  = 1000.0
	canonicalHeight = 800.0
)

func TestNewBoundsCanonical(t *testing.T) {
	b := NewBounds(canonicalWidth, canonicalHeight)

	assert.Equal(t, 800.0, b.Width)
	assert.InDelta(t, 560.0, b.Height, 1e-9)
	assert.Equal(t, 500.0, b.CenterX)
	assert.Equal(t, 400.0, b.CenterY)
	assert.Equal(t, 400.0, b.RX)
	assert.InDelta(t, 280.0, b.RY, 1e-9)
	assert.InDelta(t, 28.0, b.BallRadius(), 1e-9)
	assert.InDelta(t, 96.0, b.Gap(), 1e-9)
}

func TestNewBoundsNarrowDisplay(t *testing.T) {
	b := NewBounds(600, 1000)
	assert.Equal(t, 560.0, b.Width)
	assert.InDelta(t, 392.0, b.Height, 1e-9)
}

func TestNewBoundsShortDisplay(t *testing.T) {
	b := NewBounds(500, 300)
	assert.Equal(t, 260.0, b.Height)
	assert.InDelta(t, 260.0/ArenaAspect, b.Width, 1e-9)
	assert.InDelta(t, b.Width*ArenaAspect, b.Height, 1e-9)
}

func TestBoundsContains(t *testing.T) {
	b := NewBounds(canonicalWidth, canonicalHeight)
	assert.True(t, b.Contains(b.Center()))
	assert.True(t, b.Contains(Vec2{X: b.Left(), Y: b.Top()}))
	assert.False(t, b.Contains(Vec2{X: b.Left() - 0.01, Y: 400}))
	assert.False(t, b.Contains(Vec2{X: 500, Y: b.Bottom() + 0.01}))
}

func TestWallLayoutLeavesGaps(t *testing.T) {
	b := NewBounds(canonicalWidth, canonicalHeight)
	walls := b.Walls()
	require.Len(t, walls, 6)

	gap := b.Gap()
	var vertical, horizontal []Wall
	for _, w := range walls {
		switch w.Type {
		case WallVertical:
			vertical = append(vertical, w)
		case WallHorizontal:
			horizontal = append(horizontal, w)
		}
	}
	require.Len(t, vertical, 2)
	require.Len(t, horizontal, 4)

	for _, w := range vertical {
		_, top, _, bottom := w.Extents()
		assert.InDelta(t, b.Top()+gap, top, 1e-9, "corner gap above side wall")
		assert.InDelta(t, b.Bottom()-gap, bottom, 1e-9, "corner gap below side wall")
	}

	// Top edge: corner gap, segment, middle gap, segment, corner gap.
	leftSeg, rightSeg := horizontal[0], horizontal[1]
	l1, _, r1, _ := leftSeg.Extents()
	l2, _, r2, _ := rightSeg.Extents()
	assert.InDelta(t, b.Left()+gap, l1, 1e-9)
	assert.InDelta(t, gap, l2-r1, 1e-9)
	assert.InDelta(t, b.Right()-gap, r2, 1e-9)
	assert.Equal(t, b.Top(), leftSeg.Pos.Y)
	assert.Equal(t, b.Bottom(), horizontal[2].Pos.Y)
}

func TestEngineResizeRegeneratesWalls(t *testing.T) {
	e := NewEngine(canonicalWidth, canonicalHeight)
	before := e.Walls()

	e.Resize(600, 500)
	after := e.Walls()

	assert.NotEqual(t, before, after)
	assert.Equal(t, NewBounds(600, 500), e.Bounds())
	assert.Equal(t, e.Bounds().Walls(), after)
}
