package engine

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"clinigraph/internal/domain"
)

// ErrInstanceNotFound is returned when no instance has the requested id
var ErrInstanceNotFound = errors.New("instance not found")

// Manager tracks the document instances and the global instance of a
// process. Document instances share no mutable state with each other or
// with the global instance.
type Manager struct {
	mu        sync.RWMutex
	opts      Options
	logger    *zap.Logger
	documents map[string]*Engine
	global    *Engine
	bus       *Bus
}

// NewManager creates a manager whose engines are built with opts
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Manager{
		opts:      opts,
		logger:    opts.Logger,
		documents: make(map[string]*Engine),
		bus:       NewBus(),
	}
	return m
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// DefaultManager returns the process-wide manager with default options
func DefaultManager() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager(Options{})
	})
	return defaultManager
}

// Subscribe returns the changes of every engine of this manager
func (m *Manager) Subscribe(buffer int) (<-chan Change, func()) {
	return m.bus.Subscribe(buffer)
}

func (m *Manager) engineOptions() Options {
	opts := m.opts
	notify := opts.Notify
	opts.Notify = func(c Change) {
		m.bus.Publish(c)
		if notify != nil {
			notify(c)
		}
	}
	return opts
}

func (m *Manager) observeDocuments() {
	if m.opts.Observer != nil {
		m.opts.Observer.InstancesChanged(string(KindDocument), len(m.documents))
	}
}

// CreateDocumentInstance creates an isolated engine, loading initial when
// it is not nil
func (m *Manager) CreateDocumentInstance(initial *domain.SessionAnalysis) *Engine {
	e := New(KindDocument, m.engineOptions())
	if initial != nil {
		e.LoadSession(initial)
	}

	m.mu.Lock()
	m.documents[e.ID()] = e
	m.observeDocuments()
	m.mu.Unlock()

	m.logger.Info("document instance created",
		zap.String("instance_id", e.ID()),
		zap.String("session_id", e.SessionID()))
	return e
}

// GetGlobalInstance returns the live-session singleton. A different
// non-empty sessionID resets the instance and re-keys it; an empty one
// returns it unchanged.
func (m *Manager) GetGlobalInstance(sessionID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.global == nil {
		m.global = New(KindGlobal, m.engineOptions())
		if m.opts.Observer != nil {
			m.opts.Observer.InstancesChanged(string(KindGlobal), 1)
		}
	}

	g := m.global
	g.mu.Lock()
	defer g.mu.Unlock()
	switch current := g.sessionID; {
	case sessionID == "" || sessionID == current:
	case current == "":
		g.sessionID = sessionID
	default:
		m.logger.Info("global session changed, resetting",
			zap.String("previous_session_id", current),
			zap.String("session_id", sessionID))
		g.resetLocked()
		g.sessionID = sessionID
		g.notify(ChangeReset)
	}
	return g
}

// Instance returns a document instance, or the global instance by its id
func (m *Manager) Instance(id string) (*Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.documents[id]; ok {
		return e, nil
	}
	if m.global != nil && m.global.ID() == id {
		return m.global, nil
	}
	return nil, ErrInstanceNotFound
}

// Documents returns the live document instances
func (m *Manager) Documents() []*Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Engine, 0, len(m.documents))
	for _, e := range m.documents {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *Engine) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// CleanupInstance disposes a document instance, or resets the global one.
// It reports whether the id was known.
func (m *Manager) CleanupInstance(id string) bool {
	m.mu.Lock()
	e, ok := m.documents[id]
	if ok {
		delete(m.documents, id)
		m.observeDocuments()
	} else if m.global != nil && m.global.ID() == id {
		e, ok = m.global, true
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	e.Cleanup()
	m.logger.Info("instance cleaned up", zap.String("instance_id", id), zap.String("kind", string(e.Kind())))
	return true
}

// CleanupAll disposes every document instance and resets the global one
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	docs := m.documents
	m.documents = make(map[string]*Engine)
	m.observeDocuments()
	global := m.global
	m.mu.Unlock()

	for _, e := range docs {
		e.Cleanup()
	}
	if global != nil {
		global.Cleanup()
	}
	m.logger.Info("all instances cleaned up", zap.Int("documents", len(docs)))
}
