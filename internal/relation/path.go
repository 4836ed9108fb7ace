package relation

import "slices"

// Path is the highlighted sub-graph around a trigger node
type Path struct {
	Nodes []string `json:"nodes"`
	Links []string `json:"links"`
}

// Contains reports whether the node is part of the path
func (p *Path) Contains(id string) bool {
	return p != nil && slices.Contains(p.Nodes, id)
}

// CalculatePath returns the trigger node, every node one hop away in either
// direction and the links used to reach them. It returns nil when the node
// has no relationships, and the caller should then clear any highlight.
func CalculatePath(idx *Index, nodeID string) *Path {
	if idx == nil || !idx.HasRelationships(nodeID) {
		return nil
	}

	path := &Path{Nodes: []string{nodeID}}
	seenNodes := map[string]struct{}{nodeID: {}}
	seenLinks := make(map[string]struct{})

	for _, e := range idx.Neighbors(nodeID) {
		if _, ok := seenNodes[e.NeighborID]; !ok {
			seenNodes[e.NeighborID] = struct{}{}
			path.Nodes = append(path.Nodes, e.NeighborID)
		}
		if _, ok := seenLinks[e.LinkID]; !ok {
			seenLinks[e.LinkID] = struct{}{}
			path.Links = append(path.Links, e.LinkID)
		}
	}
	return path
}
