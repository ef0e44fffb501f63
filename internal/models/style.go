package models

// Style is the single presentation descriptor for an entity type.
type Style struct {
	Color string // hex fill color
	Label string // human-readable type label
	Lane  int    // timeline lane index
}

// DefaultStyle is used for unknown types.
var DefaultStyle = Style{Color: "#9e9e9e", Label: "Other", Lane: len(EntityTypes)}

var styles = map[EntityType]Style{
	TypePerson:    {Color: "#4fc3f7", Label: "Person", Lane: 0},
	TypeProject:   {Color: "#81c784", Label: "Project", Lane: 1},
	TypeKnowledge: {Color: "#ffb74d", Label: "Knowledge", Lane: 2},
	TypeQuestion:  {Color: "#e57373", Label: "Question", Lane: 3},
	TypeThought:   {Color: "#ba68c8", Label: "Thought", Lane: 4},
	TypePattern:   {Color: "#f06292", Label: "Pattern", Lane: 5},
}

// StyleFor returns the style of t, or DefaultStyle for unknown types.
func StyleFor(t EntityType) Style {
	if s, ok := styles[t]; ok {
		return s
	}
	return DefaultStyle
}
