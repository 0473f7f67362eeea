package game

import "math"

// WallType tells vertical side walls from horizontal edge segments.
type WallType string

const (
	WallVertical   WallType = "vertical"
	WallHorizontal WallType = "horizontal"
)

// Wall is a static axis-aligned rectangle, positioned by its center.
type Wall struct {
	Pos  Vec2     `json:"pos"`
	W    float64  `json:"w"`
	H    float64  `json:"h"`
	Type WallType `json:"type"`
}

// Extents returns the rectangle's left, top, right and bottom edges.
func (w Wall) Extents() (left, top, right, bottom float64) {
	return w.Pos.X - w.W/2, w.Pos.Y - w.H/2, w.Pos.X + w.W/2, w.Pos.Y + w.H/2
}

// Bounds is the playable rectangle derived from a display size.
type Bounds struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	RX      float64 `json:"rx"`
	RY      float64 `json:"ry"`
}

// NewBounds fits the arena into a display of the given size: padding is
// removed, width is capped at MaxArenaWidth and height follows ArenaAspect.
// When the display is too short for that height, width shrinks to match.
func NewBounds(displayWidth, displayHeight float64) Bounds {
	width := math.Min(displayWidth-ArenaPadding, MaxArenaWidth)
	height := width * ArenaAspect

	if maxHeight := displayHeight - ArenaPadding; height > maxHeight {
		height = maxHeight
		width = height / ArenaAspect
	}
	if width < 0 || height < 0 {
		width, height = 0, 0
	}

	return Bounds{
		Width:   width,
		Height:  height,
		CenterX: displayWidth / 2,
		CenterY: displayHeight / 2,
		RX:      width / 2,
		RY:      height / 2,
	}
}

func (b Bounds) Center() Vec2 {
	return Vec2{X: b.CenterX, Y: b.CenterY}
}

func (b Bounds) Left() float64   { return b.CenterX - b.RX }
func (b Bounds) Right() float64  { return b.CenterX + b.RX }
func (b Bounds) Top() float64    { return b.CenterY - b.RY }
func (b Bounds) Bottom() float64 { return b.CenterY + b.RY }

// Contains reports whether p lies inside the arena rectangle, edges included.
func (b Bounds) Contains(p Vec2) bool {
	return p.X >= b.Left() && p.X <= b.Right() && p.Y >= b.Top() && p.Y <= b.Bottom()
}

// Gap is the size of each corner gap and of the middle gap on the top and bottom edges.
func (b Bounds) Gap() float64 {
	return b.Width * GapFraction
}

// BallRadius is the radius every ball in this arena gets.
func (b Bounds) BallRadius() float64 {
	return b.Width * BallRadiusFactor
}

// Walls lays out the six static colliders: two side walls that stop one gap
// short of each corner, and two segments per horizontal edge separated by a
// middle gap.
func (b Bounds) Walls() []Wall {
	gap := b.Gap()
	sideHeight := 2*b.RY - 2*gap
	segment := (2*b.RX - 3*gap) / 2

	leftSegX := b.Left() + gap + segment/2
	rightSegX := b.Right() - gap - segment/2

	return []Wall{
		{Pos: Vec2{X: b.Left(), Y: b.CenterY}, W: WallThickness, H: sideHeight, Type: WallVertical},
		{Pos: Vec2{X: b.Right(), Y: b.CenterY}, W: WallThickness, H: sideHeight, Type: WallVertical},
		{Pos: Vec2{X: leftSegX, Y: b.Top()}, W: segment, H: WallThickness, Type: WallHorizontal},
		{Pos: Vec2{X: rightSegX, Y: b.Top()}, W: segment, H: WallThickness, Type: WallHorizontal},
		{Pos: Vec2{X: leftSegX, Y: b.Bottom()}, W: segment, H: WallThickness, Type: WallHorizontal},
		{Pos: Vec2{X: rightSegX, Y: b.Bottom()}, W: segment, H: WallThickness, Type: WallHorizontal},
	}
}
