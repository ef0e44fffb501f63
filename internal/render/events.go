package render

import "github.com/hyperjump/chatgraph/internal/models"

// EventKind identifies a renderer event.
type EventKind int

const (
	NodeSelected EventKind = iota + 1
	SelectionCleared
	NodeHovered
	HoverCleared
	FocusFinished
)

func (k EventKind) String() string {
	switch k {
	case NodeSelected:
		return "node-selected"
	case SelectionCleared:
		return "selection-cleared"
	case NodeHovered:
		return "node-hovered"
	case HoverCleared:
		return "hover-cleared"
	case FocusFinished:
		return "focus-finished"
	}
	return "unknown"
}

// Event is delivered on Renderer.Events. Entity is nil for cleared events.
type Event struct {
	Kind   EventKind
	NodeID string
	Entity *models.Entity
}
