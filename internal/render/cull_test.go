package render

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/hyperjump/chatgraph/internal/models"
)

func TestCull_MatchesBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 60).Draw(t, "n")
		nodes := make([]*Node, n)
		for i := range nodes {
			nodes[i] = &Node{
				ID:   fmt.Sprintf("n%d", i),
				X:    rapid.Float64Range(-3000, 3000).Draw(t, "x"),
				Y:    rapid.Float64Range(-3000, 3000).Draw(t, "y"),
				Type: rapid.SampledFrom(models.EntityTypes).Draw(t, "type"),
			}
		}
		var edges []Edge
		if n > 1 {
			for k := rapid.IntRange(0, n).Draw(t, "edges"); k > 0; k-- {
				a := rapid.IntRange(0, n-1).Draw(t, "a")
				b := rapid.IntRange(0, n-1).Draw(t, "b")
				edges = append(edges, Edge{Source: a, Target: b})
			}
		}
		v := Viewport{
			OffsetX: rapid.Float64Range(-1500, 1500).Draw(t, "ox"),
			OffsetY: rapid.Float64Range(-1500, 1500).Draw(t, "oy"),
			Scale:   rapid.Float64Range(0.1, 5).Draw(t, "scale"),
			Width:   800,
			Height:  600,
		}
		margin := rapid.Float64Range(0, 200).Draw(t, "margin")
		hidden := map[models.EntityType]bool{}
		for _, et := range models.EntityTypes {
			hidden[et] = rapid.Bool().Draw(t, "hide")
		}

		visible, visibleEdges := cull(nodes, edges, v.Visible(), margin, hidden)

		view := v.Visible()
		in := make(map[int]bool, len(visible))
		for _, i := range visible {
			in[i] = true
		}
		for i, nd := range nodes {
			inside := nd.X >= view.Left-margin && nd.X <= view.Right+margin &&
				nd.Y >= view.Top-margin && nd.Y <= view.Bottom+margin
			want := inside && !hidden[nd.Type]
			if in[i] != want {
				t.Fatalf("node %d at (%.1f, %.1f) culled=%v want=%v view=%+v margin=%.1f",
					i, nd.X, nd.Y, !in[i], !want, view, margin)
			}
		}
		for _, e := range visibleEdges {
			if !in[e.Source] || !in[e.Target] {
				t.Fatalf("edge %+v has an invisible endpoint", e)
			}
		}
		for _, e := range edges {
			if in[e.Source] && in[e.Target] {
				found := false
				for _, ve := range visibleEdges {
					if ve == e {
						found = true
						break
					}
				}
				if !found {
					t.Fatalf("edge %+v between visible nodes was dropped", e)
				}
			}
		}
	})
}

func TestZoomAt_KeepsAnchor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := Viewport{
			OffsetX: rapid.Float64Range(-1000, 1000).Draw(t, "ox"),
			OffsetY: rapid.Float64Range(-1000, 1000).Draw(t, "oy"),
			Scale:   rapid.Float64Range(0.1, 5).Draw(t, "scale"),
			Width:   800,
			Height:  600,
		}
		sx := rapid.Float64Range(0, 800).Draw(t, "sx")
		sy := rapid.Float64Range(0, 600).Draw(t, "sy")
		target := rapid.Float64Range(0.01, 20).Draw(t, "target")

		wx, wy := v.ToWorld(sx, sy)
		v.zoomAt(sx, sy, target, 0.1, 5)
		if v.Scale < 0.1 || v.Scale > 5 {
			t.Fatalf("scale %v outside bounds", v.Scale)
		}
		gx, gy := v.ToWorld(sx, sy)
		if d := (gx-wx)*(gx-wx) + (gy-wy)*(gy-wy); d > 1e-6 {
			t.Fatalf("anchor moved from (%v, %v) to (%v, %v)", wx, wy, gx, gy)
		}
	})
}
