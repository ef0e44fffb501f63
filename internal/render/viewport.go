package render

import (
	"time"

	"github.com/hyperjump/chatgraph/pkg/utils"
)

// fitPadding is the screen margin kept around nodes by ResetViewport.
const fitPadding = 40.0

// Rect is an axis-aligned rectangle in world coordinates.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

// Expand grows r by m on every side.
func (r Rect) Expand(m float64) Rect {
	return Rect{Left: r.Left - m, Top: r.Top - m, Right: r.Right + m, Bottom: r.Bottom + m}
}

// Viewport maps world coordinates to screen pixels: screen = world*Scale + Offset.
type Viewport struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Scale   float64 `json:"scale"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// ToScreen converts a world point to screen pixels.
func (v Viewport) ToScreen(x, y float64) (float64, float64) {
	return x*v.Scale + v.OffsetX, y*v.Scale + v.OffsetY
}

// ToWorld converts a screen point to world coordinates.
func (v Viewport) ToWorld(sx, sy float64) (float64, float64) {
	return (sx - v.OffsetX) / v.Scale, (sy - v.OffsetY) / v.Scale
}

// Visible returns the world rectangle currently on screen.
func (v Viewport) Visible() Rect {
	left, top := v.ToWorld(0, 0)
	right, bottom := v.ToWorld(v.Width, v.Height)
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// zoomAt sets the scale to target, clamped to [min, max], keeping the world
// point under (sx, sy) fixed on screen.
func (v *Viewport) zoomAt(sx, sy, target, min, max float64) {
	wx, wy := v.ToWorld(sx, sy)
	v.Scale = utils.Clamp(target, min, max)
	v.OffsetX = sx - wx*v.Scale
	v.OffsetY = sy - wy*v.Scale
}

// centerOn returns the offsets placing (x, y) at the screen center at scale.
func (v Viewport) centerOn(x, y, scale float64) (float64, float64) {
	return v.Width/2 - x*scale, v.Height/2 - y*scale
}

// transition animates the viewport between two states.
type transition struct {
	from, to Viewport
	start    time.Time
	duration time.Duration
}

// at returns the interpolated viewport and whether the transition finished.
func (tr *transition) at(now time.Time) (Viewport, bool) {
	t := 1.0
	if tr.duration > 0 {
		t = float64(now.Sub(tr.start)) / float64(tr.duration)
	}
	if t >= 1 {
		return tr.to, true
	}
	k := utils.EaseInOutCubic(t)
	v := tr.to
	v.OffsetX = tr.from.OffsetX + (tr.to.OffsetX-tr.from.OffsetX)*k
	v.OffsetY = tr.from.OffsetY + (tr.to.OffsetY-tr.from.OffsetY)*k
	v.Scale = tr.from.Scale + (tr.to.Scale-tr.from.Scale)*k
	return v, false
}
