package domain

// Graph is a derived, read-only view of nodes and links handed to renderers
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// NewGraph creates an empty graph view
func NewGraph() *Graph {
	return &Graph{
		Nodes: make([]Node, 0),
		Links: make([]Link, 0),
	}
}

// AddNode adds a node to the view
func (g *Graph) AddNode(node Node) {
	g.Nodes = append(g.Nodes, node)
}

// AddLink adds a link to the view
func (g *Graph) AddLink(link Link) {
	g.Links = append(g.Links, link)
}

// NodeIDs returns the ids of the nodes in view order
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}
