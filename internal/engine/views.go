package engine

import (
	"go.uber.org/zap"

	"clinigraph/internal/domain"
	"clinigraph/internal/layout"
	"clinigraph/internal/relation"
	"clinigraph/internal/scoring"
	"clinigraph/internal/threshold"
)

// sessionView returns the memoized views of the current session graph
func (e *Engine) sessionView() *sessionViews {
	v := e.session.Version()
	if e.sv != nil && e.sv.version == v {
		return e.sv
	}
	nodes, links := e.session.Nodes(), e.session.Links()
	idx := relation.Build(nodes, links)
	scorer := scoring.New(e.opts.weights(), nodes, idx)
	e.sv = &sessionViews{
		version: v,
		nodes:   nodes,
		links:   links,
		index:   idx,
		ranked:  scoring.FilterPending(scorer.Rank(scoring.Questions(nodes))),
	}
	return e.sv
}

// filterView returns the memoized threshold view
func (e *Engine) filterView() *filterViews {
	sv := e.sessionView()
	if e.fv != nil && e.fv.version == sv.version && e.fv.thresholds == e.thresholdsVersion {
		return e.fv
	}
	e.fv = &filterViews{
		version:    sv.version,
		thresholds: e.thresholdsVersion,
		filtered:   threshold.Apply(sv.nodes, sv.links, e.thresholds),
	}
	return e.fv
}

func (e *Engine) setThresholds(mutate func(*domain.ThresholdConfig)) domain.ThresholdConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped("set_threshold") {
		return e.thresholds
	}
	mutate(&e.thresholds)
	e.thresholdsVersion++
	e.notify(ChangeControls)
	return e.thresholds
}

// SetSymptomThreshold sets the symptom severity ceiling (1-10)
func (e *Engine) SetSymptomThreshold(v int) domain.ThresholdConfig {
	return e.setThresholds(func(c *domain.ThresholdConfig) { c.SetSymptomThreshold(v) })
}

// SetDiagnosisThreshold sets the diagnosis probability floor (0-1)
func (e *Engine) SetDiagnosisThreshold(v float64) domain.ThresholdConfig {
	return e.setThresholds(func(c *domain.ThresholdConfig) { c.SetDiagnosisThreshold(v) })
}

// SetTreatmentThreshold sets the treatment priority ceiling (1-10)
func (e *Engine) SetTreatmentThreshold(v int) domain.ThresholdConfig {
	return e.setThresholds(func(c *domain.ThresholdConfig) { c.SetTreatmentThreshold(v) })
}

// SetShowAll disables filtering for one kind
func (e *Engine) SetShowAll(kind domain.NodeKind, showAll bool) domain.ThresholdConfig {
	return e.setThresholds(func(c *domain.ThresholdConfig) { c.SetShowAll(kind, showAll) })
}

// SetThresholds replaces the whole threshold configuration
func (e *Engine) SetThresholds(cfg domain.ThresholdConfig) domain.ThresholdConfig {
	return e.setThresholds(func(c *domain.ThresholdConfig) {
		cfg.Clamp()
		*c = cfg
	})
}

// Thresholds returns the current threshold configuration
func (e *Engine) Thresholds() domain.ThresholdConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds
}

// SelectItem selects a node and highlights its one-hop neighborhood. A node
// without relationships clears the highlight.
func (e *Engine) SelectItem(kind domain.NodeKind, id string) *relation.Path {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped("select_item") {
		return nil
	}
	e.selection = &Selection{Kind: kind, ID: id}
	e.highlight = relation.CalculatePath(e.sessionView().index, id)
	e.notify(ChangeControls)
	return clonePath(e.highlight)
}

// ClearSelection drops the selection and highlight
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped("clear_selection") {
		return
	}
	e.selection = nil
	e.highlight = nil
	e.notify(ChangeControls)
}

// refreshHighlight recomputes the highlight of the current selection
func (e *Engine) refreshHighlight() {
	if e.selection == nil {
		return
	}
	e.highlight = relation.CalculatePath(e.sessionView().index, e.selection.ID)
}

// SetZoom sets the zoom level clamped to [MinZoom, MaxZoom]
func (e *Engine) SetZoom(level float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped("set_zoom") {
		return e.zoom
	}
	e.zoom = domain.ClampFloat(level, MinZoom, MaxZoom)
	e.notify(ChangeControls)
	return e.zoom
}

// Controls returns the presentation state
func (e *Engine) Controls() Controls {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := Controls{
		Thresholds: e.thresholds,
		Zoom:       e.zoom,
		Highlight:  clonePath(e.highlight),
	}
	if e.selection != nil {
		sel := *e.selection
		c.Selection = &sel
	}
	return c
}

// Highlight returns the current highlight, nil when nothing is highlighted
func (e *Engine) Highlight() *relation.Path {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clonePath(e.highlight)
}

// CalculatePath returns the one-hop path around a session node
func (e *Engine) CalculatePath(id string) *relation.Path {
	e.mu.Lock()
	defer e.mu.Unlock()
	return relation.CalculatePath(e.sessionView().index, id)
}

func clonePath(p *relation.Path) *relation.Path {
	if p == nil {
		return nil
	}
	return &relation.Path{
		Nodes: append([]string(nil), p.Nodes...),
		Links: append([]string(nil), p.Links...),
	}
}

// actionsForNode returns the actions of a subtype linked to id in either
// direction, in index order
func (e *Engine) actionsForNode(id, subtype string) []domain.Node {
	sv := e.sessionView()
	out := make([]domain.Node, 0)
	seen := make(map[string]struct{})
	for _, edge := range sv.index.Neighbors(id) {
		if edge.NeighborKind != domain.KindAction {
			continue
		}
		if _, ok := seen[edge.NeighborID]; ok {
			continue
		}
		n, ok := e.session.Node(edge.NeighborID)
		if !ok || n.Subtype != subtype {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

// QuestionsForNode returns the questions linked to a node
func (e *Engine) QuestionsForNode(id string) []domain.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actionsForNode(id, domain.SubtypeQuestion)
}

// AlertsForNode returns the alerts linked to a node
func (e *Engine) AlertsForNode(id string) []domain.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actionsForNode(id, domain.SubtypeAlert)
}

// SortedPendingQuestions returns pending questions, highest score first
func (e *Engine) SortedPendingQuestions() []scoring.Ranked {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]scoring.Ranked(nil), e.sessionView().ranked...)
}

// FilteredGraph returns the session graph after thresholds
func (e *Engine) FilteredGraph() threshold.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterView().filtered
}

// HiddenCounts returns how many nodes per kind the thresholds suppress
func (e *Engine) HiddenCounts() threshold.HiddenCounts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterView().filtered.Hidden
}

// SankeyDataFiltered returns the positioned, filtered session graph
func (e *Engine) SankeyDataFiltered() layout.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	fv := e.filterView()
	if fv.sankey == nil {
		g := fv.filtered.Graph
		res := layout.New(e.logger, e.opts.Viewport).Generate(layout.Config{
			Nodes:       g.Nodes,
			Connections: g.Links,
		})
		fv.sankey = &res
		e.logger.Debug("sankey layout computed", zap.Int("nodes", len(res.Nodes)), zap.Int("links", len(res.Links)))
	}
	return *fv.sankey
}
