// Package engine bundles the graph models, layout, state machine and derived
// views of one session into an isolated Engine, and manages the engines of
// a process: many disposable document instances and one global live
// instance.
package engine

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinigraph/internal/domain"
	"clinigraph/internal/execution"
	"clinigraph/internal/graph"
	"clinigraph/internal/layout"
	"clinigraph/internal/relation"
	"clinigraph/internal/scoring"
	"clinigraph/internal/threshold"
)

// Kind distinguishes disposable document engines from the global one
type Kind string

const (
	KindDocument Kind = "document"
	KindGlobal   Kind = "global"
)

// Zoom bounds
const (
	MinZoom     = 0.1
	MaxZoom     = 4.0
	DefaultZoom = 1.0
)

// Observer receives execution and instance metrics
type Observer interface {
	execution.Recorder
	InstancesChanged(kind string, count int)
}

// Options configures new engines
type Options struct {
	Logger          *zap.Logger
	Observer        Observer
	Viewport        layout.Viewport
	Thresholds      *domain.ThresholdConfig
	Weights         *scoring.Weights
	ConsensusNodeID string
	// Notify receives every change in addition to the engine's own bus
	Notify func(Change)
}

func (o Options) thresholds() domain.ThresholdConfig {
	if o.Thresholds == nil {
		return domain.DefaultThresholds()
	}
	cfg := *o.Thresholds
	cfg.Clamp()
	return cfg
}

func (o Options) weights() scoring.Weights {
	if o.Weights == nil {
		return scoring.DefaultWeights()
	}
	return *o.Weights
}

// Selection is the item the clinician selected
type Selection struct {
	Kind domain.NodeKind `json:"kind"`
	ID   string          `json:"id"`
}

// Controls is the presentation state of an engine
type Controls struct {
	Thresholds domain.ThresholdConfig `json:"thresholds"`
	Selection  *Selection             `json:"selection,omitempty"`
	Zoom       float64                `json:"zoom"`
	Highlight  *relation.Path         `json:"highlight,omitempty"`
}

// sessionViews are derived from the session graph only
type sessionViews struct {
	version uint64
	nodes   []domain.Node
	links   []domain.Link
	index   *relation.Index
	ranked  []scoring.Ranked
}

// filterViews also depend on the thresholds
type filterViews struct {
	version    uint64
	thresholds uint64
	filtered   threshold.Result
	sankey     *layout.Result
}

// Engine is one isolated session analysis instance. All methods are safe
// for concurrent use; mutations are serialized.
type Engine struct {
	mu     sync.Mutex
	id     string
	kind   Kind
	opts   Options
	logger *zap.Logger

	sessionID   string
	session     *graph.Model
	userActions []domain.UserAction
	updatedAt   time.Time

	qom     *graph.Model
	layout  *layout.Engine
	machine *execution.Machine

	thresholds        domain.ThresholdConfig
	thresholdsVersion uint64
	selection         *Selection
	highlight         *relation.Path
	zoom              float64
	version           uint64

	sv *sessionViews
	fv *filterViews

	bus    *Bus
	closed bool
}

// New creates an engine of the given kind
func New(kind Kind, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	id := uuid.NewString()
	logger := opts.Logger.With(zap.String("instance_id", id), zap.String("kind", string(kind)))

	e := &Engine{
		id:      id,
		kind:    kind,
		opts:    opts,
		logger:  logger,
		session: graph.New(),
		qom:     graph.New(),
		layout:  layout.New(logger, opts.Viewport),
		bus:     NewBus(),
	}

	machineOpts := []execution.MachineOption{
		execution.WithLogger(logger),
		execution.WithConsensusNode(opts.ConsensusNodeID),
	}
	if opts.Observer != nil {
		machineOpts = append(machineOpts, execution.WithRecorder(opts.Observer))
	}
	e.machine = execution.NewMachine(e.qom, e.layout, machineOpts...)
	e.resetLocked()
	return e
}

// ID returns the unique instance id
func (e *Engine) ID() string {
	return e.id
}

// Kind returns the instance kind
func (e *Engine) Kind() Kind {
	return e.kind
}

// SessionID returns the id of the loaded session
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Closed reports whether a document engine has been cleaned up
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Subscribe returns the engine's change stream and an unsubscribe func
func (e *Engine) Subscribe() (<-chan Change, func()) {
	return e.bus.Subscribe(64)
}

func (e *Engine) notify(t ChangeType) {
	e.version++
	c := Change{
		InstanceID: e.id,
		Kind:       e.kind,
		SessionID:  e.sessionID,
		Type:       t,
		Version:    e.version,
		At:         time.Now(),
	}
	e.bus.Publish(c)
	if e.opts.Notify != nil {
		e.opts.Notify(c)
	}
}

// Version returns the change counter of the engine
func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// dropped logs a mutation that arrived after cleanup
func (e *Engine) dropped(op string) bool {
	if !e.closed {
		return false
	}
	e.logger.Debug("instance cleaned up, ignoring mutation", zap.String("op", op))
	return true
}

// LoadSession replaces the session graph with the snapshot. A nil snapshot
// or missing groups load as empty.
func (e *Engine) LoadSession(s *domain.SessionAnalysis) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped("load_session") {
		return
	}
	if s == nil {
		s = domain.NewSessionAnalysis(e.sessionID)
	}
	s = s.Clone()
	s.EnsureGroups()

	e.session.Replace(s.AllNodes(), s.Links)
	e.userActions = s.UserActions
	if s.SessionID != "" {
		e.sessionID = s.SessionID
	}
	e.updatedAt = s.UpdatedAt
	e.selection = nil
	e.highlight = nil
	e.notify(ChangeSession)
}

// UpdateSession merges the snapshot into the session graph by id
func (e *Engine) UpdateSession(s *domain.SessionAnalysis) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped("update_session") || s == nil {
		return
	}
	s = s.Clone()
	s.EnsureGroups()

	for _, n := range s.AllNodes() {
		e.session.UpsertNode(n)
	}
	for _, l := range s.Links {
		e.session.UpsertLink(l)
	}
	for _, a := range s.UserActions {
		if !slices.ContainsFunc(e.userActions, func(x domain.UserAction) bool { return x.ID == a.ID }) {
			e.userActions = append(e.userActions, a)
		}
	}
	if e.sessionID == "" {
		e.sessionID = s.SessionID
	}
	if s.UpdatedAt.After(e.updatedAt) {
		e.updatedAt = s.UpdatedAt
	}
	e.refreshHighlight()
	e.notify(ChangeSession)
}

// CurrentSessionData returns the snapshot for the external document store
func (e *Engine) CurrentSessionData() *domain.SessionAnalysis {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := domain.NewSessionAnalysis(e.sessionID)
	for _, n := range e.session.Nodes() {
		s.AddNode(n)
	}
	s.Links = append(s.Links, e.session.Links()...)
	s.UserActions = append(s.UserActions, e.userActions...)
	s.UpdatedAt = e.updatedAt
	return s
}

// RecordUserAction appends to the clinician interaction log
func (e *Engine) RecordUserAction(actionType, target string, value any) domain.UserAction {
	e.mu.Lock()
	defer e.mu.Unlock()

	action := domain.UserAction{
		ID:        uuid.NewString(),
		Type:      actionType,
		Target:    target,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
	if e.dropped("record_user_action") {
		return action
	}
	e.userActions = append(e.userActions, action)
	e.updatedAt = action.Timestamp
	e.notify(ChangeSession)
	return action
}

// ApplyEvent feeds one execution event to the state machine. Events after
// cleanup are no-ops.
func (e *Engine) ApplyEvent(ev execution.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev == nil {
		return false
	}
	if e.closed {
		if e.opts.Observer != nil {
			e.opts.Observer.EventIgnored(ev.EventType(), execution.ReasonAfterCleanup)
		}
		return false
	}
	if !e.machine.Apply(ev) {
		return false
	}
	e.notify(ChangeExecution)
	return true
}

// ExecutionState returns the aggregate execution state
func (e *Engine) ExecutionState() execution.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.State()
}

// QOMLayout returns the positioned execution graph with current node states
func (e *Engine) QOMLayout() layout.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.layout.Result()
	res.Nodes = e.qom.Nodes()
	res.Links = e.qom.Links()
	return res
}

// Reset returns the engine to its initial state. Subscriptions survive.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped("reset") {
		return
	}
	e.resetLocked()
	e.notify(ChangeReset)
}

func (e *Engine) resetLocked() {
	e.session.Reset()
	e.userActions = make([]domain.UserAction, 0)
	e.updatedAt = time.Time{}
	e.qom.Reset()
	e.layout.Reset()
	e.machine.Reset()
	e.thresholds = e.opts.thresholds()
	e.thresholdsVersion++
	e.selection = nil
	e.highlight = nil
	e.zoom = DefaultZoom
	e.sv = nil
	e.fv = nil
}

// Cleanup disposes a document engine: state is reset, subscriptions are
// closed and later mutations become no-ops. On the global engine it only
// resets. Cleanup is idempotent.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.resetLocked()
	if e.kind == KindGlobal {
		e.sessionID = ""
		e.notify(ChangeReset)
		return
	}
	e.notify(ChangeCleanup)
	e.closed = true
	e.bus.Close()
	e.logger.Debug("instance cleaned up")
}
