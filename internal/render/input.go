package render

import "math"

// hitTestLocked returns the topmost visible node under screen point (sx, sy), or -1.
// Nodes are drawn in order, so the search runs back to front.
func (r *Renderer) hitTestLocked(sx, sy float64) int {
	visible, _ := r.cullLocked()
	for k := len(visible) - 1; k >= 0; k-- {
		n := r.nodes[visible[k]]
		x, y := r.view.ToScreen(n.X, n.Y)
		rad := n.Radius * r.view.Scale
		if (sx-x)*(sx-x)+(sy-y)*(sy-y) <= rad*rad {
			return visible[k]
		}
	}
	return -1
}

// PointerDown starts dragging the node under the pointer, or panning.
func (r *Renderer) PointerDown(sx, sy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anim = nil
	r.downX, r.downY = sx, sy
	r.lastX, r.lastY = sx, sy
	i := r.hitTestLocked(sx, sy)
	if i < 0 {
		r.mode = panning
		return
	}
	n := r.nodes[i]
	wx, wy := r.view.ToWorld(sx, sy)
	r.mode = dragging
	r.dragIdx = i
	r.grabX, r.grabY = n.X-wx, n.Y-wy
	n.pin(n.X, n.Y)
	r.sim.reheat(alphaReheat)
}

// PointerMove drags, pans, or updates the hover target.
func (r *Renderer) PointerMove(sx, sy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.mode {
	case dragging:
		wx, wy := r.view.ToWorld(sx, sy)
		r.nodes[r.dragIdx].pin(wx+r.grabX, wy+r.grabY)
		r.sim.reheat(alphaReheat)
	case panning:
		r.view.OffsetX += sx - r.lastX
		r.view.OffsetY += sy - r.lastY
	default:
		id := ""
		if i := r.hitTestLocked(sx, sy); i >= 0 {
			id = r.nodes[i].ID
		}
		r.setHoverLocked(id)
	}
	r.lastX, r.lastY = sx, sy
}

// PointerUp ends a drag or pan. A drag that moved less than the click
// threshold selects the node before it is released.
func (r *Renderer) PointerUp(sx, sy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == dragging {
		n := r.nodes[r.dragIdx]
		if math.Hypot(sx-r.downX, sy-r.downY) < clickThreshold {
			r.selected = n.ID
			r.emit(NodeSelected, n.ID)
		}
		n.unpin()
	}
	r.mode = idle
}

// PointerLeave cancels any gesture and clears the hover target.
func (r *Renderer) PointerLeave() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == dragging {
		r.nodes[r.dragIdx].unpin()
	}
	r.mode = idle
	r.setHoverLocked("")
}

func (r *Renderer) setHoverLocked(id string) {
	if id == r.hovered {
		return
	}
	r.hovered = id
	if id == "" {
		r.emit(HoverCleared, "")
		return
	}
	r.emit(NodeHovered, id)
}

// Wheel zooms toward (sx, sy). Negative delta zooms in.
func (r *Renderer) Wheel(sx, sy, delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anim = nil
	r.view.zoomAt(sx, sy, r.view.Scale*math.Exp(-delta*wheelZoomRate), r.cfg.MinScale, r.cfg.MaxScale)
}

// Pinch multiplies the scale by ratio, anchored at the gesture midpoint.
func (r *Renderer) Pinch(cx, cy, ratio float64) {
	if ratio <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anim = nil
	r.view.zoomAt(cx, cy, r.view.Scale*ratio, r.cfg.MinScale, r.cfg.MaxScale)
}
