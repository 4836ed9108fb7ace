package execution

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"clinigraph/internal/domain"
	"clinigraph/internal/graph"
	"clinigraph/internal/layout"
)

// DefaultConsensusNode is the downstream node experts are spliced in front of
const DefaultConsensusNode = "consensus_merger"

// Status is the overall run status
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Reasons an event is ignored
const (
	ReasonUnknownNode  = "unknown_node"
	ReasonTerminal     = "terminal_state"
	ReasonInvalid      = "invalid_event"
	ReasonAfterCleanup = "after_cleanup"
)

// State is the aggregate execution state of a run
type State struct {
	QOMID          string     `json:"qomId,omitempty"`
	Status         Status     `json:"status"`
	ActiveNodes    []string   `json:"activeNodes"`
	CompletedNodes []string   `json:"completedNodes"`
	FailedNodes    []string   `json:"failedNodes"`
	TotalDuration  int64      `json:"totalDuration"` // milliseconds
	TotalCost      float64    `json:"totalCost"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func (s State) clone() State {
	s.ActiveNodes = slices.Clone(s.ActiveNodes)
	s.CompletedNodes = slices.Clone(s.CompletedNodes)
	s.FailedNodes = slices.Clone(s.FailedNodes)
	return s
}

func initialState() State {
	return State{
		Status:         StatusIdle,
		ActiveNodes:    []string{},
		CompletedNodes: []string{},
		FailedNodes:    []string{},
	}
}

// Recorder observes what the machine did with each event
type Recorder interface {
	EventApplied(eventType string)
	EventIgnored(eventType, reason string)
	LayoutUpdated(op string)
}

type nopRecorder struct{}

func (nopRecorder) EventApplied(string)         {}
func (nopRecorder) EventIgnored(string, string) {}
func (nopRecorder) LayoutUpdated(string)        {}

// MachineOption configures a Machine
type MachineOption func(*Machine)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRecorder sets the recorder notified for every event
func WithRecorder(r Recorder) MachineOption {
	return func(m *Machine) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithConsensusNode overrides the default consensus node id
func WithConsensusNode(id string) MachineOption {
	return func(m *Machine) {
		if id != "" {
			m.consensusID = id
		}
	}
}

// WithClock sets the time source used for events without a timestamp
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// Machine applies events in arrival order. Events that reference unknown
// nodes are logged and ignored; Apply never fails.
type Machine struct {
	graph       *graph.Model
	layout      *layout.Engine
	logger      *zap.Logger
	recorder    Recorder
	consensusID string
	now         func() time.Time

	state   State
	applied bool
	reason  string
}

// NewMachine creates a machine driving g and l
func NewMachine(g *graph.Model, l *layout.Engine, opts ...MachineOption) *Machine {
	m := &Machine{
		graph:       g,
		layout:      l,
		logger:      zap.NewNop(),
		recorder:    nopRecorder{},
		consensusID: DefaultConsensusNode,
		now:         time.Now,
		state:       initialState(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply applies one event and reports whether it changed anything
func (m *Machine) Apply(ev Event) bool {
	if ev == nil {
		return false
	}
	m.applied, m.reason = true, ""
	ev.accept(m)

	if m.applied {
		m.recorder.EventApplied(ev.EventType())
	} else {
		m.recorder.EventIgnored(ev.EventType(), m.reason)
	}
	return m.applied
}

// State returns a copy of the aggregate execution state
func (m *Machine) State() State {
	return m.state.clone()
}

// Reset returns the machine to idle. The graph and layout are reset by
// their owner.
func (m *Machine) Reset() {
	m.state = initialState()
}

// ConsensusNode returns the id experts are spliced in front of
func (m *Machine) ConsensusNode() string {
	return m.consensusID
}

func (m *Machine) ignore(eventType, reason string, fields ...zap.Field) {
	m.applied, m.reason = false, reason
	m.logger.Warn("ignoring execution event",
		append([]zap.Field{zap.String("type", eventType), zap.String("reason", reason)}, fields...)...)
}

func (m *Machine) timeOf(ts Timestamp) time.Time {
	if ts.IsZero() {
		return m.now()
	}
	return ts.Time
}

// moveTo places id in exactly one of the partition sets. A nil target
// removes it from all of them.
func (m *Machine) moveTo(id string, target *[]string) {
	del := func(v string) bool { return v == id }
	m.state.ActiveNodes = slices.DeleteFunc(m.state.ActiveNodes, del)
	m.state.CompletedNodes = slices.DeleteFunc(m.state.CompletedNodes, del)
	m.state.FailedNodes = slices.DeleteFunc(m.state.FailedNodes, del)
	if target != nil {
		*target = append(*target, id)
	}
}

// lookup returns the node or ignores the event when it is unknown
func (m *Machine) lookup(eventType, id string) (domain.Node, bool) {
	node, ok := m.graph.Node(id)
	if !ok {
		m.ignore(eventType, ReasonUnknownNode, zap.String("node_id", id))
		return domain.Node{}, false
	}
	if node.State.Terminal() {
		m.ignore(eventType, ReasonTerminal, zap.String("node_id", id), zap.String("state", string(node.State)))
		return domain.Node{}, false
	}
	return node, true
}

// sync writes a layout result back to the graph model
func (m *Machine) sync(prevLinks []domain.Link, res layout.Result) {
	m.graph.ApplyLayout(res.Nodes)
	m.graph.ReconcileLinks(prevLinks, res.Links)
}

// ensureLayout initializes the layout from the current graph
func (m *Machine) ensureLayout() {
	if m.layout.Initialized() {
		return
	}
	prev := m.graph.Links()
	res := m.layout.Generate(layout.Config{Nodes: m.graph.Nodes(), Connections: prev})
	m.sync(prev, res)
	m.recorder.LayoutUpdated("generate")
}

func (m *Machine) qomInitialized(ev QOMInitialized) {
	started := m.timeOf(ev.Timestamp)

	if len(ev.Nodes) > 0 || len(ev.Links) > 0 {
		res := m.layout.Generate(layout.Config{Nodes: ev.Nodes, Connections: ev.Links})
		m.graph.Replace(res.Nodes, res.Links)
		m.recorder.LayoutUpdated("generate")

		m.state = initialState()
		for _, n := range m.graph.Nodes() {
			switch n.State {
			case domain.StateRunning:
				m.moveTo(n.ID, &m.state.ActiveNodes)
			case domain.StateCompleted:
				m.moveTo(n.ID, &m.state.CompletedNodes)
				m.state.TotalDuration += n.Duration
				m.state.TotalCost += n.Cost
			case domain.StateFailed:
				m.moveTo(n.ID, &m.state.FailedNodes)
			}
		}
	} else {
		m.ensureLayout()
	}

	m.state.QOMID = ev.QOMID
	m.state.Status = StatusRunning
	m.state.StartedAt = &started
	m.state.CompletedAt = nil
}

func (m *Machine) nodeStarted(ev NodeStarted) {
	node, ok := m.lookup(ev.EventType(), ev.NodeID)
	if !ok {
		return
	}
	started := m.timeOf(ev.Timestamp)
	if node.StartedAt != nil && node.State == domain.StateRunning {
		started = *node.StartedAt
	}
	m.graph.SetNodeState(ev.NodeID, domain.StateRunning, graph.StatePatch{StartedAt: &started})
	m.moveTo(ev.NodeID, &m.state.ActiveNodes)
}

func (m *Machine) nodeCompleted(ev NodeCompleted) {
	node, ok := m.lookup(ev.EventType(), ev.NodeID)
	if !ok {
		return
	}
	completed := m.timeOf(ev.Timestamp)

	var duration int64
	switch {
	case ev.Duration != nil:
		duration = max(*ev.Duration, 0)
	case node.StartedAt != nil:
		duration = max(completed.Sub(*node.StartedAt).Milliseconds(), 0)
	}
	var cost float64
	if ev.Cost != nil {
		cost = max(*ev.Cost, 0)
	}

	m.graph.SetNodeState(ev.NodeID, domain.StateCompleted, graph.StatePatch{
		CompletedAt: &completed,
		Duration:    &duration,
		Cost:        &cost,
		Output:      ev.Output,
	})
	m.moveTo(ev.NodeID, &m.state.CompletedNodes)
	m.state.TotalDuration += duration
	m.state.TotalCost += cost
}

func (m *Machine) nodeFailed(ev NodeFailed) {
	if _, ok := m.lookup(ev.EventType(), ev.NodeID); !ok {
		return
	}
	completed := m.timeOf(ev.Timestamp)
	msg := ev.Error
	m.graph.SetNodeState(ev.NodeID, domain.StateFailed, graph.StatePatch{
		CompletedAt: &completed,
		Error:       &msg,
	})
	m.moveTo(ev.NodeID, &m.state.FailedNodes)
}

func (m *Machine) expertTriggered(ev ExpertTriggered) {
	if ev.ExpertID == "" {
		m.ignore(ev.EventType(), ReasonInvalid, zap.String("parent_id", ev.ParentID))
		return
	}
	if !m.graph.HasNode(ev.ParentID) {
		m.ignore(ev.EventType(), ReasonUnknownNode, zap.String("node_id", ev.ParentID))
		return
	}

	consensus := ev.ConsensusID
	if consensus == "" {
		consensus = m.consensusID
	}
	name := ev.ExpertName
	if name == "" {
		name = ev.ExpertID
	}

	expert := domain.NewReasoningNode(ev.ExpertID, domain.SubtypeSpecialist, name)
	expert.Parent = ev.ParentID
	expert.SetProperty("triggeredBy", ev.ParentID)
	if ev.Reason != "" {
		expert.SetProperty("reason", ev.Reason)
	}

	m.ensureLayout()
	if !m.graph.HasNode(ev.ExpertID) {
		m.graph.UpsertNode(*expert)
	}
	prev := m.layout.Result().Links
	res := m.layout.AddNode(*expert, layout.Options{InsertBetween: &layout.InsertBetween{
		Parents:  []string{ev.ParentID},
		Children: []string{consensus},
	}})
	m.sync(prev, res)
	m.recorder.LayoutUpdated("insert_between")

	m.logger.Info("expert triggered",
		zap.String("expert_id", ev.ExpertID),
		zap.String("parent_id", ev.ParentID),
		zap.String("consensus_id", consensus))
}

func (m *Machine) relationshipAdded(ev RelationshipAdded) {
	for _, id := range []string{ev.Source, ev.Target} {
		if !m.graph.HasNode(id) {
			m.ignore(ev.EventType(), ReasonUnknownNode, zap.String("node_id", id))
			return
		}
	}

	link := ev.Link()
	m.ensureLayout()
	m.graph.UpsertLink(link)
	prev := m.layout.Result().Links
	res := m.layout.AddLink(link)
	m.sync(prev, res)
	m.recorder.LayoutUpdated("add_link")
}

func (m *Machine) qomCompleted(ev QOMCompleted) {
	completed := m.timeOf(ev.Timestamp)
	m.state.Status = StatusCompleted
	m.state.CompletedAt = &completed
	if ev.TotalDuration != nil {
		m.state.TotalDuration = *ev.TotalDuration
	}
	if ev.TotalCost != nil {
		m.state.TotalCost = *ev.TotalCost
	}
}
