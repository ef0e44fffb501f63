package render

import (
	"math"

	"github.com/hyperjump/chatgraph/internal/config"
)

// Alpha bounds.
const (
	alphaStart  = 1.0
	alphaReheat = 0.3
	minDistance = 1.0
)

type cell struct{ x, y int }

// simulation advances node positions. It owns no nodes; the renderer passes them in.
type simulation struct {
	cfg   *config.GraphConfig
	alpha float64
}

func newSimulation(cfg *config.GraphConfig) *simulation {
	return &simulation{cfg: cfg, alpha: alphaStart}
}

// active reports whether the layout is still moving.
func (s *simulation) active() bool {
	return s.alpha > s.cfg.AlphaMin
}

func (s *simulation) reheat(alpha float64) {
	if s.alpha < alpha {
		s.alpha = alpha
	}
}

// step applies one tick of forces centered on (cx, cy) and decays alpha.
// It does nothing once alpha is below the threshold.
func (s *simulation) step(nodes []*Node, edges []Edge, cx, cy float64) bool {
	if !s.active() {
		return false
	}
	cfg := s.cfg
	fx := make([]float64, len(nodes))
	fy := make([]float64, len(nodes))

	for i, n := range nodes {
		fx[i] += (cx - n.X) * cfg.CenterForce * s.alpha
		fy[i] += (cy - n.Y) * cfg.CenterForce * s.alpha
	}

	s.repel(nodes, fx, fy)

	for _, e := range edges {
		a, b := nodes[e.Source], nodes[e.Target]
		dx, dy := b.X-a.X, b.Y-a.Y
		d := math.Hypot(dx, dy)
		if d < minDistance {
			d = minDistance
		}
		f := (d - cfg.SpringLength) * cfg.SpringConstant * s.alpha
		ux, uy := dx/d*f, dy/d*f
		fx[e.Source] += ux
		fy[e.Source] += uy
		fx[e.Target] -= ux
		fy[e.Target] -= uy
	}

	for i, n := range nodes {
		if n.pinned {
			n.X, n.Y = n.pinX, n.pinY
			n.VX, n.VY = 0, 0
			continue
		}
		n.VX = (n.VX + fx[i]) * cfg.Damping
		n.VY = (n.VY + fy[i]) * cfg.Damping
		n.X += n.VX
		n.Y += n.VY
	}

	s.alpha -= s.alpha * cfg.AlphaDecay
	return true
}

// repel applies k/d² repulsion between nodes closer than the cutoff, using a
// grid of cutoff-sized cells so only neighbouring cells are compared.
func (s *simulation) repel(nodes []*Node, fx, fy []float64) {
	cutoff := s.cfg.RepulsionCutoff
	if cutoff <= 0 || len(nodes) < 2 {
		return
	}
	grid := make(map[cell][]int)
	for i, n := range nodes {
		c := cell{int(math.Floor(n.X / cutoff)), int(math.Floor(n.Y / cutoff))}
		grid[c] = append(grid[c], i)
	}
	cutoff2 := cutoff * cutoff
	for c, members := range grid {
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				others := grid[cell{c.x + dx, c.y + dy}]
				for _, i := range members {
					for _, j := range others {
						if j <= i {
							continue
						}
						s.repelPair(nodes, i, j, cutoff2, fx, fy)
					}
				}
			}
		}
	}
}

func (s *simulation) repelPair(nodes []*Node, i, j int, cutoff2 float64, fx, fy []float64) {
	a, b := nodes[i], nodes[j]
	dx, dy := a.X-b.X, a.Y-b.Y
	d2 := dx*dx + dy*dy
	if d2 > cutoff2 {
		return
	}
	if d2 < minDistance {
		// Coincident nodes separate along a direction derived from their indexes.
		angle := float64(i+j) * goldenAngle
		dx, dy = math.Cos(angle), math.Sin(angle)
		d2 = minDistance
	}
	d := math.Sqrt(d2)
	f := s.cfg.Repulsion / d2
	ux, uy := dx/d*f, dy/d*f
	fx[i] += ux
	fy[i] += uy
	fx[j] -= ux
	fy[j] -= uy
}
