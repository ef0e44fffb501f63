package render

import "github.com/hyperjump/chatgraph/internal/models"

// cull returns the indexes of nodes inside view expanded by margin that are not
// hidden by type, and the edges whose endpoints are both in that set.
func cull(nodes []*Node, edges []Edge, view Rect, margin float64, hidden map[models.EntityType]bool) ([]int, []Edge) {
	bounds := view.Expand(margin)
	visible := make([]int, 0, len(nodes))
	in := make([]bool, len(nodes))
	for i, n := range nodes {
		if hidden[n.Type] || !bounds.Contains(n.X, n.Y) {
			continue
		}
		in[i] = true
		visible = append(visible, i)
	}
	var visibleEdges []Edge
	for _, e := range edges {
		if in[e.Source] && in[e.Target] {
			visibleEdges = append(visibleEdges, e)
		}
	}
	return visible, visibleEdges
}
