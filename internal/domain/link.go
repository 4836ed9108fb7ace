package domain

import (
	"crypto/sha256"
	"fmt"
	"maps"
)

// Direction describes how a relationship is traversed
type Direction string

const (
	DirectionOutgoing      Direction = "outgoing"
	DirectionIncoming      Direction = "incoming"
	DirectionBidirectional Direction = "bidirectional"
)

// Common relationship types
const (
	RelationFlow     = "flow" // execution graph hierarchy
	RelationSupports = "supports"
	RelationTreats   = "treats"
	RelationAsks     = "asks"
)

// Link represents a relationship between two nodes
type Link struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type,omitempty"`
	Direction  Direction      `json:"direction,omitempty"`
	Strength   float64        `json:"strength"`
	Active     bool           `json:"active"`
	Properties map[string]any `json:"properties,omitempty"`
}

// NewLink creates a new active outgoing link with full strength
func NewLink(source, target, relType string) *Link {
	link := &Link{
		Source:    source,
		Target:    target,
		Type:      relType,
		Direction: DirectionOutgoing,
		Strength:  1,
		Active:    true,
	}
	link.ID = link.GenerateID()
	return link
}

// GenerateID creates a deterministic ID for the link based on its endpoints
// and type. Links are directed, so endpoints are not normalized.
func (l Link) GenerateID() string {
	key := fmt.Sprintf("%s->%s-%s", l.Source, l.Target, l.Type)
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash[:8])
}

// Normalize clamps strength, fills the default direction and generates a
// missing ID.
func (l *Link) Normalize() {
	l.Strength = Clamp01(l.Strength)
	switch l.Direction {
	case DirectionOutgoing, DirectionIncoming, DirectionBidirectional:
	default:
		l.Direction = DirectionOutgoing
	}
	if l.ID == "" {
		l.ID = l.GenerateID()
	}
}

// Connects reports whether the link joins source to target
func (l Link) Connects(source, target string) bool {
	return l.Source == source && l.Target == target
}

// Clone returns a copy of the link with its own property map
func (l Link) Clone() Link {
	l.Properties = maps.Clone(l.Properties)
	return l
}

// SetProperty sets a property value
func (l *Link) SetProperty(key string, value any) {
	if l.Properties == nil {
		l.Properties = make(map[string]any)
	}
	l.Properties[key] = value
}

// GetProperty gets a property value
func (l Link) GetProperty(key string) (any, bool) {
	if l.Properties == nil {
		return nil, false
	}
	val, ok := l.Properties[key]
	return val, ok
}
