package render

import (
	"fmt"
	"io"

	"github.com/hyperjump/chatgraph/internal/config"
	"github.com/hyperjump/chatgraph/internal/models"
)

// NodeView is the serialisable state of one node.
type NodeView struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Type    models.EntityType `json:"type"`
	X       float64           `json:"x"`
	Y       float64           `json:"y"`
	Radius  float64           `json:"radius"`
	Color   string            `json:"color"`
	Visible bool              `json:"visible"`
}

// EdgeView is an undirected edge between two node ids.
type EdgeView struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphView is a snapshot of the laid-out graph.
type GraphView struct {
	Nodes    []NodeView `json:"nodes"`
	Edges    []EdgeView `json:"edges"`
	Viewport Viewport   `json:"viewport"`
	Settled  bool       `json:"settled"`
}

// Snapshot returns the current positions and the culled visibility of every node.
func (r *Renderer) Snapshot() *GraphView {
	r.mu.Lock()
	defer r.mu.Unlock()
	visible, _ := r.cullLocked()
	in := make(map[int]bool, len(visible))
	for _, i := range visible {
		in[i] = true
	}
	g := &GraphView{
		Nodes:    make([]NodeView, len(r.nodes)),
		Edges:    make([]EdgeView, len(r.edges)),
		Viewport: r.view,
		Settled:  !r.sim.active(),
	}
	for i, n := range r.nodes {
		g.Nodes[i] = NodeView{
			ID: n.ID, Name: n.Entity.Name, Type: n.Type,
			X: n.X, Y: n.Y, Radius: n.Radius,
			Color:   models.StyleFor(n.Type).Color,
			Visible: in[i],
		}
	}
	for i, e := range r.edges {
		g.Edges[i] = EdgeView{Source: r.nodes[e.Source].ID, Target: r.nodes[e.Target].ID}
	}
	return g
}

// ExportOptions adjust a one-shot export.
type ExportOptions struct {
	Types     []models.EntityType
	Highlight []string
	Focus     string
}

// Export lays out entities headless, fits them on screen, and returns the renderer.
func Export(cfg *config.GraphConfig, entities []*models.Entity, opts ExportOptions) (*Renderer, error) {
	r := NewRenderer(cfg)
	r.LoadData(entities)
	r.FilterByType(opts.Types)
	r.HighlightNodes(opts.Highlight)
	r.Layout(cfg.LayoutIterations)
	r.ResetViewport()
	if opts.Focus != "" {
		if err := r.FocusOnNode(opts.Focus, false); err != nil {
			return nil, fmt.Errorf("focus %q: %w", opts.Focus, err)
		}
		if err := r.SelectNode(opts.Focus); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// WritePNG lays out entities and writes the drawn graph as a PNG image.
func WritePNG(w io.Writer, cfg *config.GraphConfig, entities []*models.Entity, opts ExportOptions) error {
	r, err := Export(cfg, entities, opts)
	if err != nil {
		return err
	}
	s := NewGGSurface(cfg.Width, cfg.Height)
	r.Draw(s)
	if err := s.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
