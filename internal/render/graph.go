// Package render lays out the entity graph with a force simulation and draws
// the visible part of it through a pan/zoom viewport.
package render

import (
	"math"

	"github.com/hyperjump/chatgraph/internal/models"
)

const (
	minNodeRadius = 5.0
	maxNodeRadius = 18.0
	seedSpacing   = 10.0
)

var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Node is a simulated graph vertex.
type Node struct {
	ID     string
	X, Y   float64
	VX, VY float64
	Radius float64
	Type   models.EntityType
	Entity *models.Entity

	pinned     bool
	pinX, pinY float64
}

// Pinned reports whether the node is held at a fixed position.
func (n *Node) Pinned() bool { return n.pinned }

func (n *Node) pin(x, y float64) {
	n.pinned = true
	n.pinX, n.pinY = x, y
	n.X, n.Y = x, y
	n.VX, n.VY = 0, 0
}

func (n *Node) unpin() { n.pinned = false }

// Edge is an undirected link between two node indexes, Source < Target.
type Edge struct {
	Source, Target int
}

// nodeRadius grows with occurrences on a log scale.
func nodeRadius(occurrences int) float64 {
	r := minNodeRadius + 2*math.Log2(float64(occurrences)+1)
	return math.Min(r, maxNodeRadius)
}

// buildGraph creates nodes seeded on a phyllotaxis spiral around (cx, cy) and
// deduplicated edges from entity links. Links to unknown ids are ignored.
func buildGraph(entities []*models.Entity, cx, cy float64) ([]*Node, []Edge, map[string]int) {
	nodes := make([]*Node, 0, len(entities))
	index := make(map[string]int, len(entities))
	for _, e := range entities {
		if _, dup := index[e.ID]; dup {
			continue
		}
		i := len(nodes)
		r := seedSpacing * math.Sqrt(float64(i)+0.5)
		a := float64(i) * goldenAngle
		nodes = append(nodes, &Node{
			ID:     e.ID,
			X:      cx + r*math.Cos(a),
			Y:      cy + r*math.Sin(a),
			Radius: nodeRadius(e.Occurrences),
			Type:   e.Type,
			Entity: e,
		})
		index[e.ID] = i
	}

	seen := make(map[Edge]struct{})
	var edges []Edge
	for i, n := range nodes {
		for _, link := range n.Entity.Links {
			j, ok := index[link]
			if !ok || j == i {
				continue
			}
			e := Edge{Source: i, Target: j}
			if j < i {
				e = Edge{Source: j, Target: i}
			}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			edges = append(edges, e)
		}
	}
	return nodes, edges, index
}
