package render

import (
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/pkg/utils"
)

const (
	backgroundColor = "#121212"
	edgeColor       = "#b0bec5"
	edgeAlpha       = 0.3
	edgeWidth       = 1.0
	ringColor       = "#ffffff"
	ringWidth       = 2.0
	emphasisScale   = 1.4
	dimAlpha        = 0.25
	plateColor      = "#000000"
	plateAlpha      = 0.65
	labelColor      = "#ffffff"
	labelHeight     = 15.0
	labelPadX       = 3.0
	labelGap        = 3.0
)

// Draw renders the culled graph onto s: edges, then nodes, then labels.
func (r *Renderer) Draw(s Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.Clear(backgroundColor)
	visible, edges := r.cullLocked()
	scale := r.view.Scale

	for _, e := range edges {
		a, b := r.nodes[e.Source], r.nodes[e.Target]
		x1, y1 := r.view.ToScreen(a.X, a.Y)
		x2, y2 := r.view.ToScreen(b.X, b.Y)
		s.Line(x1, y1, x2, y2, edgeWidth, edgeColor, edgeAlpha)
	}

	for _, i := range visible {
		n := r.nodes[i]
		x, y := r.view.ToScreen(n.X, n.Y)
		rad := r.screenRadius(n)
		alpha := 1.0
		if r.marked != nil && !r.marked[n.ID] && !r.focused(n) {
			alpha = dimAlpha
		}
		if r.focused(n) || r.marked[n.ID] {
			s.Circle(x, y, rad+ringWidth, ringColor, 1)
		}
		s.Circle(x, y, rad, models.StyleFor(n.Type).Color, alpha)
	}

	for _, i := range visible {
		n := r.nodes[i]
		if scale <= r.cfg.LabelScale && !r.focused(n) {
			continue
		}
		x, y := r.view.ToScreen(n.X, n.Y)
		r.drawLabel(s, n.Entity.Name, x, y+r.screenRadius(n)+labelGap)
	}
}

func (r *Renderer) focused(n *Node) bool {
	return n.ID == r.selected || n.ID == r.hovered
}

func (r *Renderer) screenRadius(n *Node) float64 {
	rad := n.Radius * r.view.Scale
	if r.focused(n) {
		rad *= emphasisScale
	}
	return rad
}

// drawLabel draws text centered on x with its plate top at y.
func (r *Renderer) drawLabel(s Surface, text string, x, y float64) {
	text = fitLabel(text, r.cfg.MaxLabelWidth, s.MeasureText)
	if text == "" {
		return
	}
	w := s.MeasureText(text)
	left := x - w/2
	s.Rect(left-labelPadX, y, w+2*labelPadX, labelHeight, plateColor, plateAlpha)
	s.Text(text, left, y+labelHeight-4, labelColor)
}

// fitLabel truncates text with an ellipsis so it measures at most maxWidth.
func fitLabel(text string, maxWidth float64, measure func(string) float64) string {
	if maxWidth <= 0 || measure(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if measure(string(runes[:mid])+utils.Ellipsis) <= maxWidth {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return utils.Ellipsis
	}
	return string(runes[:lo]) + utils.Ellipsis
}
