// Package graph holds the in-memory Graph Model of one session or execution
// graph. Records are stored by value and replaced wholesale on every write,
// and every mutation bumps Version so derived views can be memoized.
package graph

import (
	"slices"
	"time"

	"clinigraph/internal/domain"
)

// StatePatch carries the execution fields recorded with a state transition.
// Nil fields leave the stored value unchanged.
type StatePatch struct {
	StartedAt   *time.Time
	CompletedAt *time.Time
	Duration    *int64
	Cost        *float64
	Output      any
	Error       *string
}

// Model is a last-write-wins container of nodes and links. It is not safe
// for concurrent use; the owning engine serializes access.
type Model struct {
	nodes     map[string]domain.Node
	nodeOrder []string
	links     map[string]domain.Link
	linkOrder []string
	version   uint64
}

// New creates an empty model
func New() *Model {
	return &Model{
		nodes: make(map[string]domain.Node),
		links: make(map[string]domain.Link),
	}
}

// Version returns the mutation counter
func (m *Model) Version() uint64 {
	return m.version
}

// UpsertNode inserts or replaces a node. The stored layout fields survive a
// replacement because positions belong to the layout engine.
func (m *Model) UpsertNode(node domain.Node) {
	node = node.Clone()
	node.Normalize()

	if existing, ok := m.nodes[node.ID]; ok {
		node.Position = existing.Position
		node.Layer = existing.Layer
		if node.Parent == "" {
			node.Parent = existing.Parent
		}
		if node.Children == nil {
			node.Children = existing.Children
		}
	} else {
		m.nodeOrder = append(m.nodeOrder, node.ID)
	}
	m.nodes[node.ID] = node
	m.version++
}

// UpsertLink inserts or replaces a link by ID
func (m *Model) UpsertLink(link domain.Link) {
	link = link.Clone()
	link.Normalize()

	if _, ok := m.links[link.ID]; !ok {
		m.linkOrder = append(m.linkOrder, link.ID)
	}
	m.links[link.ID] = link
	m.version++
}

// RemoveLink deletes a link. It reports whether the link existed.
func (m *Model) RemoveLink(id string) bool {
	if _, ok := m.links[id]; !ok {
		return false
	}
	delete(m.links, id)
	m.linkOrder = slices.DeleteFunc(m.linkOrder, func(v string) bool { return v == id })
	m.version++
	return true
}

// SetNodeState records a state transition. It reports false when the node
// is unknown.
func (m *Model) SetNodeState(id string, state domain.ExecState, patch StatePatch) bool {
	node, ok := m.nodes[id]
	if !ok {
		return false
	}
	node = node.Clone()
	node.State = state
	if patch.StartedAt != nil {
		t := *patch.StartedAt
		node.StartedAt = &t
	}
	if patch.CompletedAt != nil {
		t := *patch.CompletedAt
		node.CompletedAt = &t
	}
	if patch.Duration != nil {
		node.Duration = *patch.Duration
	}
	if patch.Cost != nil {
		node.Cost = *patch.Cost
	}
	if patch.Output != nil {
		node.Output = patch.Output
	}
	if patch.Error != nil {
		node.Error = *patch.Error
	}
	m.nodes[id] = node
	m.version++
	return true
}

// Node returns a copy of the node with the given id
func (m *Model) Node(id string) (domain.Node, bool) {
	node, ok := m.nodes[id]
	if !ok {
		return domain.Node{}, false
	}
	return node.Clone(), true
}

// HasNode reports whether the node exists
func (m *Model) HasNode(id string) bool {
	_, ok := m.nodes[id]
	return ok
}

// Link returns a copy of the link with the given id
func (m *Model) Link(id string) (domain.Link, bool) {
	link, ok := m.links[id]
	if !ok {
		return domain.Link{}, false
	}
	return link.Clone(), true
}

// FindLink returns the first link from source to target
func (m *Model) FindLink(source, target string) (domain.Link, bool) {
	for _, id := range m.linkOrder {
		if l := m.links[id]; l.Connects(source, target) {
			return l.Clone(), true
		}
	}
	return domain.Link{}, false
}

// Nodes returns copies of all nodes in insertion order
func (m *Model) Nodes() []domain.Node {
	out := make([]domain.Node, 0, len(m.nodeOrder))
	for _, id := range m.nodeOrder {
		out = append(out, m.nodes[id].Clone())
	}
	return out
}

// Links returns copies of all links in insertion order
func (m *Model) Links() []domain.Link {
	out := make([]domain.Link, 0, len(m.linkOrder))
	for _, id := range m.linkOrder {
		out = append(out, m.links[id].Clone())
	}
	return out
}

// Len returns the number of nodes and links
func (m *Model) Len() (nodes, links int) {
	return len(m.nodes), len(m.links)
}

// Replace swaps the whole content of the model
func (m *Model) Replace(nodes []domain.Node, links []domain.Link) {
	m.nodes = make(map[string]domain.Node, len(nodes))
	m.nodeOrder = m.nodeOrder[:0]
	m.links = make(map[string]domain.Link, len(links))
	m.linkOrder = m.linkOrder[:0]

	for _, n := range nodes {
		n = n.Clone()
		n.Normalize()
		if _, ok := m.nodes[n.ID]; !ok {
			m.nodeOrder = append(m.nodeOrder, n.ID)
		}
		m.nodes[n.ID] = n
	}
	for _, l := range links {
		l = l.Clone()
		l.Normalize()
		if _, ok := m.links[l.ID]; !ok {
			m.linkOrder = append(m.linkOrder, l.ID)
		}
		m.links[l.ID] = l
	}
	m.version++
}

// Reset empties the model
func (m *Model) Reset() {
	m.Replace(nil, nil)
}

// ApplyLayout copies the layout fields of the given nodes onto the stored
// records. Nodes that are not stored yet are inserted as given.
func (m *Model) ApplyLayout(nodes []domain.Node) {
	if len(nodes) == 0 {
		return
	}
	for _, laid := range nodes {
		node, ok := m.nodes[laid.ID]
		if !ok {
			node = laid.Clone()
			node.Normalize()
			m.nodeOrder = append(m.nodeOrder, node.ID)
			m.nodes[node.ID] = node
			continue
		}
		node = node.Clone()
		node.Layer = laid.Layer
		node.Parent = laid.Parent
		node.Children = slices.Clone(laid.Children)
		if laid.Position != nil {
			p := *laid.Position
			node.Position = &p
		} else {
			node.Position = nil
		}
		m.nodes[node.ID] = node
	}
	m.version++
}

// ReconcileLinks brings the stored links in line with a new layout result:
// links present in prev but absent from current are removed, links in
// current are added or merged by ID.
func (m *Model) ReconcileLinks(prev, current []domain.Link) {
	keep := make(map[string]struct{}, len(current))
	for _, l := range current {
		keep[l.ID] = struct{}{}
	}
	for _, l := range prev {
		if _, ok := keep[l.ID]; !ok {
			m.RemoveLink(l.ID)
		}
	}
	for _, l := range current {
		m.UpsertLink(l)
	}
}
