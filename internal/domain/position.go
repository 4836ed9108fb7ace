package domain

// Position represents the coordinates and pinning state of a node in the visualization
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Pinned bool    `json:"pinned,omitempty"`
}

// NewPosition creates a new unpinned position
func NewPosition(x, y float64) *Position {
	return &Position{
		X:      x,
		Y:      y,
		Pinned: false,
	}
}

// IsPinned reports whether p is set and pinned
func (p *Position) IsPinned() bool {
	return p != nil && p.Pinned
}
