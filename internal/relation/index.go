// Package relation derives adjacency from a graph snapshot and computes the
// single-hop highlight path around a selected node.
package relation

import (
	"clinigraph/internal/domain"
)

// Edge is one adjacency entry, annotated with the neighbor it reaches
type Edge struct {
	NeighborID   string          `json:"neighborId"`
	NeighborKind domain.NodeKind `json:"neighborKind"`
	LinkID       string          `json:"linkId"`
	Type         string          `json:"type,omitempty"`
	Confidence   float64         `json:"confidence"`
	Active       bool            `json:"active"`
}

// Index holds forward and reverse adjacency. It is derived and never
// authoritative; rebuild it whenever the graph changes.
type Index struct {
	kinds   map[string]domain.NodeKind
	forward map[string][]Edge
	reverse map[string][]Edge
}

// Build creates an index over nodes and links in O(V+E). Links whose
// endpoints are not among nodes are dropped.
func Build(nodes []domain.Node, links []domain.Link) *Index {
	idx := &Index{
		kinds:   make(map[string]domain.NodeKind, len(nodes)),
		forward: make(map[string][]Edge),
		reverse: make(map[string][]Edge),
	}
	for _, n := range nodes {
		idx.kinds[n.ID] = n.Kind
	}

	for _, l := range links {
		if !idx.Has(l.Source) || !idx.Has(l.Target) {
			continue
		}
		switch l.Direction {
		case domain.DirectionIncoming:
			idx.insert(l.Target, l.Source, l)
		case domain.DirectionBidirectional:
			idx.insert(l.Source, l.Target, l)
			idx.insert(l.Target, l.Source, l)
		default:
			idx.insert(l.Source, l.Target, l)
		}
	}
	return idx
}

// insert records from→to in forward and to←from in reverse, skipping
// duplicate link entries.
func (idx *Index) insert(from, to string, l domain.Link) {
	conf := domain.Clamp01(l.Strength)
	idx.forward[from] = appendEdge(idx.forward[from], Edge{
		NeighborID:   to,
		NeighborKind: idx.kinds[to],
		LinkID:       l.ID,
		Type:         l.Type,
		Confidence:   conf,
		Active:       l.Active,
	})
	idx.reverse[to] = appendEdge(idx.reverse[to], Edge{
		NeighborID:   from,
		NeighborKind: idx.kinds[from],
		LinkID:       l.ID,
		Type:         l.Type,
		Confidence:   conf,
		Active:       l.Active,
	})
}

func appendEdge(edges []Edge, e Edge) []Edge {
	for _, existing := range edges {
		if existing.LinkID == e.LinkID && existing.NeighborID == e.NeighborID {
			return edges
		}
	}
	return append(edges, e)
}

// Has reports whether the node was part of the indexed snapshot
func (idx *Index) Has(id string) bool {
	_, ok := idx.kinds[id]
	return ok
}

// Kind returns the kind of an indexed node
func (idx *Index) Kind(id string) domain.NodeKind {
	return idx.kinds[id]
}

// Forward returns the edges pointing away from id
func (idx *Index) Forward(id string) []Edge {
	return idx.forward[id]
}

// Reverse returns the edges pointing at id
func (idx *Index) Reverse(id string) []Edge {
	return idx.reverse[id]
}

// Neighbors returns forward edges followed by reverse edges
func (idx *Index) Neighbors(id string) []Edge {
	fwd, rev := idx.forward[id], idx.reverse[id]
	out := make([]Edge, 0, len(fwd)+len(rev))
	out = append(out, fwd...)
	return append(out, rev...)
}

// HasRelationships reports whether id has any forward or reverse edge
func (idx *Index) HasRelationships(id string) bool {
	return len(idx.forward[id]) > 0 || len(idx.reverse[id]) > 0
}
