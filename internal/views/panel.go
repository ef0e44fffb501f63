package views

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/chatgraph/internal/render"
)

// Focuser is the renderer surface the panel drives.
type Focuser interface {
	SelectNode(id string) error
	FocusOnNode(id string, animated bool) error
}

// Panel follows renderer selection events, keeps the detail of the selected
// entity, and asks the renderer to focus it.
type Panel struct {
	reader   Reader
	renderer Focuser
	logger   *zap.Logger

	mu      sync.Mutex
	current *EntityDetail
	changes chan *EntityDetail
}

// PanelOption configures a Panel.
type PanelOption func(*Panel)

// WithLogger sets a logger for panel errors.
func WithLogger(l *zap.Logger) PanelOption {
	return func(p *Panel) { p.logger = l }
}

// NewPanel creates a panel reading from r and driving renderer.
func NewPanel(r Reader, renderer Focuser, opts ...PanelOption) *Panel {
	p := &Panel{reader: r, renderer: renderer, changes: make(chan *EntityDetail, 8)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current returns the detail shown, or nil when nothing is selected.
func (p *Panel) Current() *EntityDetail {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Changes delivers the new detail after each selection change (nil when cleared).
// Updates are dropped when the consumer falls behind.
func (p *Panel) Changes() <-chan *EntityDetail {
	return p.changes
}

// Select selects id in the renderer, e.g. from a related-entity link.
// The resulting event updates the panel.
func (p *Panel) Select(id string) error {
	return p.renderer.SelectNode(id)
}

// Run consumes events until ctx is done or the channel closes.
func (p *Panel) Run(ctx context.Context, events <-chan render.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handle(ctx, ev)
		}
	}
}

func (p *Panel) handle(ctx context.Context, ev render.Event) {
	switch ev.Kind {
	case render.NodeSelected:
		d, err := Detail(ctx, p.reader, ev.NodeID)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("entity detail failed", zap.String("id", ev.NodeID), zap.Error(err))
			}
			return
		}
		if err := p.renderer.FocusOnNode(ev.NodeID, true); err != nil && p.logger != nil {
			p.logger.Debug("focus failed", zap.String("id", ev.NodeID), zap.Error(err))
		}
		p.set(d)
	case render.SelectionCleared:
		p.set(nil)
	}
}

func (p *Panel) set(d *EntityDetail) {
	p.mu.Lock()
	p.current = d
	p.mu.Unlock()
	select {
	case p.changes <- d:
	default:
	}
}
