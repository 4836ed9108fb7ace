// Package layout assigns layered coordinates to graph nodes. A full layout
// is computed by Generate; AddNode, AddNodes and AddLink update it in place
// and only reposition the layers whose membership changed, so nodes the
// user is looking at do not jump when an expert branch is spliced in.
package layout

import (
	"slices"

	"go.uber.org/zap"

	"clinigraph/internal/domain"
)

// Viewport bounds the layout
type Viewport struct {
	Width        float64 `json:"width" yaml:"width"`
	Height       float64 `json:"height" yaml:"height"`
	Padding      float64 `json:"padding" yaml:"padding"`
	LayerSpacing float64 `json:"layerSpacing" yaml:"layer_spacing"`
}

// DefaultViewport returns the viewport used when none is configured
func DefaultViewport() Viewport {
	return Viewport{
		Width:        1200,
		Height:       800,
		Padding:      60,
		LayerSpacing: 140,
	}
}

// orDefault fills unset dimensions. A zero viewport is the default one; a
// zero padding is kept only when other dimensions are set.
func (v Viewport) orDefault() Viewport {
	d := DefaultViewport()
	if v == (Viewport{}) {
		return d
	}
	if v.Width <= 0 {
		v.Width = d.Width
	}
	if v.Height <= 0 {
		v.Height = d.Height
	}
	if v.Padding < 0 {
		v.Padding = d.Padding
	}
	if v.LayerSpacing <= 0 {
		v.LayerSpacing = d.LayerSpacing
	}
	return v
}

// Config is a declarative description of a graph to lay out
type Config struct {
	Nodes       []domain.Node
	Connections []domain.Link
	Viewport    Viewport
}

// InsertBetween splices a new node into the edges from Parents to Children
type InsertBetween struct {
	Parents  []string `json:"parents"`
	Children []string `json:"children"`
}

// Options modify an incremental insertion
type Options struct {
	InsertBetween *InsertBetween
}

// Result is an ordered, positioned snapshot of the layout
type Result struct {
	Nodes  []domain.Node `json:"nodes"`
	Links  []domain.Link `json:"links"`
	Width  float64       `json:"width"`
	Height float64       `json:"height"`
}

// Engine holds the current layout. It is not safe for concurrent use.
type Engine struct {
	logger      *zap.Logger
	viewport    Viewport
	initialized bool

	nodes     map[string]*domain.Node
	order     []string
	links     map[string]domain.Link
	linkOrder []string

	// detached nodes have no resolvable placement and stay unpositioned
	detached map[string]struct{}
	// pending maps a detached node to the declared parent it waits for
	pending map[string]string
	// membership is the ordered node ids per layer at the last placement
	membership map[int][]string
}

// New creates an uninitialized layout engine
func New(logger *zap.Logger, viewport Viewport) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:   logger,
		viewport: viewport.orDefault(),
	}
	e.clear()
	return e
}

func (e *Engine) clear() {
	e.nodes = make(map[string]*domain.Node)
	e.order = nil
	e.links = make(map[string]domain.Link)
	e.linkOrder = nil
	e.detached = make(map[string]struct{})
	e.pending = make(map[string]string)
	e.membership = make(map[int][]string)
}

// Initialized reports whether Generate has been called since the last Reset
func (e *Engine) Initialized() bool {
	return e.initialized
}

// Reset discards the layout and returns the engine to the uninitialized state
func (e *Engine) Reset() {
	e.clear()
	e.initialized = false
}

// Viewport returns the viewport in use
func (e *Engine) Viewport() Viewport {
	return e.viewport
}

// Generate computes a full layout from cfg, replacing any previous state
func (e *Engine) Generate(cfg Config) Result {
	e.clear()
	if cfg.Viewport != (Viewport{}) {
		e.viewport = cfg.Viewport.orDefault()
	}

	for _, n := range cfg.Nodes {
		e.storeNode(n)
	}
	for _, l := range cfg.Connections {
		if !e.hasNode(l.Source) || !e.hasNode(l.Target) {
			e.logger.Debug("layout connection references unknown node",
				zap.String("source", l.Source), zap.String("target", l.Target))
			continue
		}
		e.putLink(l)
	}
	for _, id := range e.order {
		e.declareHierarchy(id)
	}

	e.initialized = true
	e.place(true)
	return e.Result()
}

// AddNode inserts or updates a single node and returns the updated layout
func (e *Engine) AddNode(node domain.Node, opts Options) Result {
	return e.AddNodes([]domain.Node{node}, opts)
}

// AddNodes inserts or updates nodes and lays out once. The options apply to
// every node.
func (e *Engine) AddNodes(nodes []domain.Node, opts Options) Result {
	if !e.initialized {
		e.logger.Warn("layout engine not initialized, dropping nodes", zap.Int("count", len(nodes)))
		return e.Result()
	}

	for _, n := range nodes {
		isNew := !e.hasNode(n.ID)
		e.storeNode(n)
		switch {
		case opts.InsertBetween != nil:
			e.splice(n.ID, opts.InsertBetween)
		case isNew:
			e.declareHierarchy(n.ID)
		}
		e.resolvePending(n.ID)
	}

	e.place(false)
	return e.Result()
}

// AddLink adds or merges a link. Links with an unknown endpoint are skipped.
func (e *Engine) AddLink(link domain.Link) Result {
	if !e.initialized {
		e.logger.Warn("layout engine not initialized, dropping link", zap.String("link_id", link.ID))
		return e.Result()
	}
	if !e.hasNode(link.Source) || !e.hasNode(link.Target) {
		e.logger.Warn("layout link references unknown node",
			zap.String("source", link.Source), zap.String("target", link.Target))
		return e.Result()
	}

	e.putLink(link)
	e.attach(link.Source)
	e.attach(link.Target)
	e.place(false)
	return e.Result()
}

// Result returns the current layout. Nodes come in insertion order and
// detached nodes keep only a pinned position.
func (e *Engine) Result() Result {
	res := Result{
		Nodes:  make([]domain.Node, 0, len(e.order)),
		Links:  make([]domain.Link, 0, len(e.linkOrder)),
		Width:  e.viewport.Width,
		Height: e.viewport.Height,
	}
	maxLayer := 0
	for _, id := range e.order {
		n := e.nodes[id]
		res.Nodes = append(res.Nodes, n.Clone())
		if _, off := e.detached[id]; !off {
			maxLayer = max(maxLayer, n.Layer)
		}
	}
	for _, id := range e.linkOrder {
		res.Links = append(res.Links, e.links[id].Clone())
	}
	if len(e.order) > 0 {
		res.Height = max(res.Height, 2*e.viewport.Padding+float64(maxLayer)*e.viewport.LayerSpacing)
	}
	return res
}

func (e *Engine) hasNode(id string) bool {
	_, ok := e.nodes[id]
	return ok
}

// storeNode upserts a node. Layout fields of an existing node survive
// unless the caller pins a new position.
func (e *Engine) storeNode(n domain.Node) {
	n = n.Clone()
	n.Normalize()
	existing, ok := e.nodes[n.ID]
	if !ok {
		e.order = append(e.order, n.ID)
		e.nodes[n.ID] = &n
		return
	}
	if !n.Position.IsPinned() {
		n.Position = existing.Position
	}
	n.Layer = existing.Layer
	n.Parent = existing.Parent
	n.Children = existing.Children
	e.nodes[n.ID] = &n
}

func (e *Engine) putLink(l domain.Link) {
	l = l.Clone()
	l.Normalize()
	if _, ok := e.links[l.ID]; !ok {
		e.linkOrder = append(e.linkOrder, l.ID)
	}
	e.links[l.ID] = l
}

func (e *Engine) removeLinksBetween(source, target string) {
	e.linkOrder = slices.DeleteFunc(e.linkOrder, func(id string) bool {
		if e.links[id].Connects(source, target) {
			delete(e.links, id)
			return true
		}
		return false
	})
}

func (e *Engine) hasLinkBetween(source, target string) bool {
	for _, id := range e.linkOrder {
		if e.links[id].Connects(source, target) {
			return true
		}
	}
	return false
}

func (e *Engine) hasIncoming(id string) bool {
	for _, lid := range e.linkOrder {
		if _, to := orient(e.links[lid]); to == id {
			return true
		}
	}
	return false
}

// declareHierarchy turns a node's declared parent and children into flow
// links. A node whose declared parent is unknown is detached until the
// parent arrives.
func (e *Engine) declareHierarchy(id string) {
	n := e.nodes[id]
	if n.Parent != "" {
		if e.hasNode(n.Parent) {
			if !e.hasLinkBetween(n.Parent, id) {
				e.putLink(*domain.NewLink(n.Parent, id, domain.RelationFlow))
			}
		} else if !e.hasIncoming(id) {
			e.logger.Debug("parent not in layout yet, node detached",
				zap.String("node_id", id), zap.String("parent", n.Parent))
			e.detached[id] = struct{}{}
			e.pending[id] = n.Parent
		}
	}
	for _, child := range n.Children {
		if !e.hasNode(child) {
			e.logger.Debug("declared child not in layout", zap.String("node_id", id), zap.String("child", child))
			continue
		}
		if !e.hasLinkBetween(id, child) {
			e.putLink(*domain.NewLink(id, child, domain.RelationFlow))
		}
	}
}

// resolvePending attaches detached nodes that were waiting for id
func (e *Engine) resolvePending(id string) {
	for _, child := range e.order {
		if parent, ok := e.pending[child]; !ok || parent != id {
			continue
		}
		if !e.hasLinkBetween(id, child) {
			e.putLink(*domain.NewLink(id, child, domain.RelationFlow))
		}
		delete(e.pending, child)
		delete(e.detached, child)
	}
}

func (e *Engine) attach(id string) {
	delete(e.detached, id)
	delete(e.pending, id)
}

// splice replaces parent->child links with parent->id->child. Unknown
// parents and children are skipped; without any known parent the node is
// left detached.
func (e *Engine) splice(id string, ib *InsertBetween) {
	var parents, children []string
	for _, p := range ib.Parents {
		if p != id && e.hasNode(p) {
			parents = append(parents, p)
		} else {
			e.logger.Warn("insert-between parent not in layout", zap.String("node_id", id), zap.String("parent", p))
		}
	}
	for _, c := range ib.Children {
		if c != id && e.hasNode(c) {
			children = append(children, c)
		} else {
			e.logger.Warn("insert-between child not in layout", zap.String("node_id", id), zap.String("child", c))
		}
	}

	if len(parents) == 0 {
		e.detached[id] = struct{}{}
		return
	}

	for _, p := range parents {
		for _, c := range children {
			e.removeLinksBetween(p, c)
		}
		if !e.hasLinkBetween(p, id) {
			e.putLink(*domain.NewLink(p, id, domain.RelationFlow))
		}
	}
	for _, c := range children {
		if !e.hasLinkBetween(id, c) {
			e.putLink(*domain.NewLink(id, c, domain.RelationFlow))
		}
	}
	e.nodes[id].Parent = parents[0]
	e.attach(id)
}
