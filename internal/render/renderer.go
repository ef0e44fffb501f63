package render

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chatgraph/internal/config"
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/pkg/utils"
)

const (
	defaultFrameInterval = time.Second / 60
	eventBuffer          = 32
	// clickThreshold is the largest pointer travel, in pixels, still treated as a click.
	clickThreshold = 3.0
	wheelZoomRate  = 0.001
)

// ErrUnknownNode is returned for ids not present in the loaded graph.
var ErrUnknownNode = errors.New("unknown node")

type interaction int

const (
	idle interaction = iota
	dragging
	panning
)

// Renderer owns the node/edge graph, the simulation and the viewport.
// All methods are safe for concurrent use.
type Renderer struct {
	mu     sync.Mutex
	cfg    *config.GraphConfig
	nodes  []*Node
	edges  []Edge
	index  map[string]int
	sim    *simulation
	view   Viewport
	anim   *transition
	hidden map[models.EntityType]bool
	marked map[string]bool

	selected string
	hovered  string

	mode         interaction
	dragIdx      int
	grabX, grabY float64
	downX, downY float64
	lastX, lastY float64

	events        chan Event
	now           func() time.Time
	frameInterval time.Duration
	logger        *zap.Logger

	cancel   context.CancelFunc
	loopDone chan struct{}
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets a logger for lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithClock overrides the clock used to start focus animations.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithFrameInterval sets the frame loop cadence used by Start.
func WithFrameInterval(d time.Duration) Option {
	return func(r *Renderer) { r.frameInterval = d }
}

// NewRenderer creates a renderer with a cfg.Width × cfg.Height viewport.
func NewRenderer(cfg *config.GraphConfig, opts ...Option) *Renderer {
	r := &Renderer{
		cfg:           cfg,
		index:         map[string]int{},
		sim:           newSimulation(cfg),
		view:          Viewport{Scale: 1, Width: float64(cfg.Width), Height: float64(cfg.Height)},
		hidden:        map[models.EntityType]bool{},
		events:        make(chan Event, eventBuffer),
		now:           time.Now,
		frameInterval: defaultFrameInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Events returns the renderer's event channel. Events are dropped when the
// consumer falls behind.
func (r *Renderer) Events() <-chan Event {
	return r.events
}

func (r *Renderer) emit(kind EventKind, id string) {
	ev := Event{Kind: kind, NodeID: id}
	if i, ok := r.index[id]; ok {
		ev.Entity = r.nodes[i].Entity
	}
	select {
	case r.events <- ev:
	default:
	}
}

// LoadData replaces the graph with entities and restarts the simulation.
func (r *Renderer) LoadData(entities []*models.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cx, cy := r.center()
	r.nodes, r.edges, r.index = buildGraph(entities, cx, cy)
	r.sim = newSimulation(r.cfg)
	r.mode = idle
	r.anim = nil
	if _, ok := r.index[r.selected]; !ok {
		r.selected = ""
	}
	if _, ok := r.index[r.hovered]; !ok {
		r.hovered = ""
	}
	if r.logger != nil {
		r.logger.Debug("graph loaded", zap.Int("nodes", len(r.nodes)), zap.Int("edges", len(r.edges)))
	}
}

// center is the world point the simulation attracts toward.
func (r *Renderer) center() (float64, float64) {
	return float64(r.cfg.Width) / 2, float64(r.cfg.Height) / 2
}

// Start runs Frame on a ticker until ctx is cancelled or Stop is called.
func (r *Renderer) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel, r.loopDone = cancel, done
	interval := r.frameInterval
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Frame(now)
			}
		}
	}()
}

// Stop ends the frame loop and waits for it to exit.
func (r *Renderer) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.loopDone
	r.cancel, r.loopDone = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Frame advances physics by one step and any focus animation to now.
// It reports whether anything moved.
func (r *Renderer) Frame(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cx, cy := r.center()
	moved := r.sim.step(r.nodes, r.edges, cx, cy)
	if r.anim != nil {
		v, done := r.anim.at(now)
		v.Width, v.Height = r.view.Width, r.view.Height
		r.view = v
		moved = true
		if done {
			r.anim = nil
			r.emit(FocusFinished, r.selected)
		}
	}
	return moved
}

// Layout runs up to iterations physics steps and returns how many ran.
func (r *Renderer) Layout(iterations int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cx, cy := r.center()
	n := 0
	for n < iterations && r.sim.step(r.nodes, r.edges, cx, cy) {
		n++
	}
	return n
}

// Settled reports whether the simulation has cooled below its threshold.
func (r *Renderer) Settled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.sim.active()
}

// Resize sets the screen size.
func (r *Renderer) Resize(w, h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Width, r.view.Height = float64(w), float64(h)
}

// Viewport returns the current viewport.
func (r *Renderer) Viewport() Viewport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// FilterByType shows only nodes of the given types. An empty list shows all.
// A selected node that becomes hidden is deselected.
func (r *Renderer) FilterByType(types []models.EntityType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden = map[models.EntityType]bool{}
	if len(types) > 0 {
		keep := make(map[models.EntityType]bool, len(types))
		for _, t := range types {
			keep[t] = true
		}
		for _, t := range models.EntityTypes {
			if !keep[t] {
				r.hidden[t] = true
			}
		}
	}
	if i, ok := r.index[r.selected]; ok && r.hidden[r.nodes[i].Type] {
		r.clearSelectionLocked()
	}
}

// HighlightNodes emphasises ids and dims the rest. nil clears highlighting.
func (r *Renderer) HighlightNodes(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ids) == 0 {
		r.marked = nil
		return
	}
	r.marked = make(map[string]bool, len(ids))
	for _, id := range ids {
		r.marked[id] = true
	}
}

// FocusOnNode centers id at the focus scale, easing over the focus duration
// when animated.
func (r *Renderer) FocusOnNode(id string, animated bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return ErrUnknownNode
	}
	n := r.nodes[i]
	target := r.view
	target.Scale = utils.Clamp(r.cfg.FocusScale, r.cfg.MinScale, r.cfg.MaxScale)
	target.OffsetX, target.OffsetY = r.view.centerOn(n.X, n.Y, target.Scale)
	if !animated {
		r.anim = nil
		r.view = target
		return nil
	}
	r.anim = &transition{from: r.view, to: target, start: r.now(), duration: r.cfg.FocusDuration()}
	return nil
}

// ResetViewport fits the visible nodes on screen. The scale never exceeds 1.
func (r *Renderer) ResetViewport() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anim = nil
	box, ok := r.boundsLocked()
	if !ok {
		r.view.Scale, r.view.OffsetX, r.view.OffsetY = 1, 0, 0
		return
	}
	w := math.Max(box.Right-box.Left, 1)
	h := math.Max(box.Bottom-box.Top, 1)
	availW := math.Max(r.view.Width-2*fitPadding, 1)
	availH := math.Max(r.view.Height-2*fitPadding, 1)
	scale := math.Min(availW/w, availH/h)
	scale = utils.Clamp(math.Min(scale, 1), r.cfg.MinScale, r.cfg.MaxScale)
	r.view.Scale = scale
	r.view.OffsetX, r.view.OffsetY = r.view.centerOn((box.Left+box.Right)/2, (box.Top+box.Bottom)/2, scale)
}

// boundsLocked returns the bounding box of type-visible nodes including radii.
func (r *Renderer) boundsLocked() (Rect, bool) {
	box := Rect{Left: math.Inf(1), Top: math.Inf(1), Right: math.Inf(-1), Bottom: math.Inf(-1)}
	found := false
	for _, n := range r.nodes {
		if r.hidden[n.Type] {
			continue
		}
		found = true
		box.Left = math.Min(box.Left, n.X-n.Radius)
		box.Top = math.Min(box.Top, n.Y-n.Radius)
		box.Right = math.Max(box.Right, n.X+n.Radius)
		box.Bottom = math.Max(box.Bottom, n.Y+n.Radius)
	}
	return box, found
}

// SelectNode selects id and emits NodeSelected.
func (r *Renderer) SelectNode(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[id]; !ok {
		return ErrUnknownNode
	}
	r.selected = id
	r.emit(NodeSelected, id)
	return nil
}

// ClearSelection deselects the current node, if any.
func (r *Renderer) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearSelectionLocked()
}

func (r *Renderer) clearSelectionLocked() {
	if r.selected == "" {
		return
	}
	r.selected = ""
	r.emit(SelectionCleared, "")
}

// Selected returns the selected node id, or "".
func (r *Renderer) Selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// Hovered returns the hovered node id, or "".
func (r *Renderer) Hovered() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hovered
}

// Node returns a copy of the node with id.
func (r *Renderer) Node(id string) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return Node{}, false
	}
	return *r.nodes[i], true
}

// VisibleNodeIDs returns the ids of the culled render set in draw order.
func (r *Renderer) VisibleNodeIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	visible, _ := r.cullLocked()
	ids := make([]string, len(visible))
	for k, i := range visible {
		ids[k] = r.nodes[i].ID
	}
	return ids
}

func (r *Renderer) cullLocked() ([]int, []Edge) {
	return cull(r.nodes, r.edges, r.view.Visible(), r.cfg.CullMargin, r.hidden)
}
