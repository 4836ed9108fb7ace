package layout

import (
	"slices"

	"clinigraph/internal/domain"
)

// orient returns the hierarchy direction of a link
func orient(l domain.Link) (from, to string) {
	if l.Direction == domain.DirectionIncoming {
		return l.Target, l.Source
	}
	return l.Source, l.Target
}

// place derives layers and hierarchy from the links and assigns
// coordinates. With full unset only layers whose ordered membership changed
// are repositioned.
func (e *Engine) place(full bool) {
	parents := make(map[string][]string, len(e.order))
	children := make(map[string][]string, len(e.order))
	for _, lid := range e.linkOrder {
		from, to := orient(e.links[lid])
		if e.isDetached(from) || e.isDetached(to) || from == to {
			continue
		}
		if !slices.Contains(parents[to], from) {
			parents[to] = append(parents[to], from)
		}
		if !slices.Contains(children[from], to) {
			children[from] = append(children[from], to)
		}
	}

	layers := assignLayers(e.order, parents, e.detached)

	membership := make(map[int][]string)
	for _, id := range e.order {
		n := e.nodes[id]
		if e.isDetached(id) {
			n.Layer = 0
			if !n.Position.IsPinned() {
				n.Position = nil
			}
			n.Children = nil
			continue
		}
		n.Layer = layers[id]
		n.Parent = primaryParent(n.Parent, parents[id])
		n.Children = slices.Clone(children[id])
		membership[n.Layer] = append(membership[n.Layer], id)
	}

	for layer, ids := range membership {
		changed := full || !slices.Equal(e.membership[layer], ids)
		for i, id := range ids {
			n := e.nodes[id]
			if n.Position.IsPinned() {
				continue
			}
			if changed || n.Position == nil {
				n.Position = e.slot(layer, i, len(ids))
			}
		}
	}
	e.membership = membership
}

func (e *Engine) isDetached(id string) bool {
	_, ok := e.detached[id]
	return ok
}

// slot returns the evenly spaced position of member i of n in layer
func (e *Engine) slot(layer, i, n int) *domain.Position {
	x := e.viewport.Width * float64(i+1) / float64(n+1)
	y := e.viewport.Padding + float64(layer)*e.viewport.LayerSpacing
	return domain.NewPosition(x, y)
}

// primaryParent keeps the current parent while it is still linked and
// otherwise falls back to the first linked parent.
func primaryParent(current string, linked []string) string {
	if current != "" && slices.Contains(linked, current) {
		return current
	}
	if len(linked) == 0 {
		return ""
	}
	return linked[0]
}

// assignLayers computes layer = 1 + max(parent layers), 0 without parents.
// Edges closing a cycle are ignored.
func assignLayers(order []string, parents map[string][]string, detached map[string]struct{}) map[string]int {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(order))
	layers := make(map[string]int, len(order))

	var visit func(id string) int
	visit = func(id string) int {
		switch state[id] {
		case done:
			return layers[id]
		case visiting:
			return -1
		}
		state[id] = visiting
		layer := 0
		for _, p := range parents[id] {
			if _, off := detached[p]; off {
				continue
			}
			if pl := visit(p); pl >= 0 {
				layer = max(layer, pl+1)
			}
		}
		state[id] = done
		layers[id] = layer
		return layer
	}

	for _, id := range order {
		if _, off := detached[id]; !off {
			visit(id)
		}
	}
	return layers
}
