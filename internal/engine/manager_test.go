package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinigraph/internal/domain"
	"clinigraph/internal/execution"
)

type instanceCounter struct {
	mu     sync.Mutex
	counts map[string]int
	after  int
}

func (c *instanceCounter) EventApplied(string) {}
func (c *instanceCounter) EventIgnored(_, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reason == execution.ReasonAfterCleanup {
		c.after++
	}
}
func (c *instanceCounter) LayoutUpdated(string) {}
func (c *instanceCounter) InstancesChanged(kind string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[kind] = n
}

func newTestManager() (*Manager, *instanceCounter) {
	obs := &instanceCounter{counts: map[string]int{}}
	return NewManager(Options{Logger: zap.NewNop(), Observer: obs}), obs
}

func TestCreateDocumentInstance(t *testing.T) {
	m, obs := newTestManager()

	empty := m.CreateDocumentInstance(nil)
	loaded := m.CreateDocumentInstance(testSession())

	assert.Equal(t, KindDocument, empty.Kind())
	assert.Empty(t, empty.CurrentSessionData().Nodes.Symptoms)
	assert.Len(t, loaded.CurrentSessionData().Nodes.Symptoms, 2)
	assert.Len(t, m.Documents(), 2)
	assert.Equal(t, 2, obs.counts[string(KindDocument)])

	got, err := m.Instance(loaded.ID())
	require.NoError(t, err)
	assert.Same(t, loaded, got)
}

func TestDocumentInstancesAreIsolated(t *testing.T) {
	m, _ := newTestManager()
	a := m.CreateDocumentInstance(testSession())
	b := m.CreateDocumentInstance(testSession())

	a.SetSymptomThreshold(1)
	a.UpdateSession(&domain.SessionAnalysis{Nodes: domain.NodeGroups{Symptoms: []domain.Node{{ID: "extra"}}}})
	a.ApplyEvent(execution.QOMInitialized{Nodes: []domain.Node{*domain.NewReasoningNode("n1", domain.SubtypeModel, "n1")}})

	assert.Equal(t, 7, b.Thresholds().Symptoms.SeverityThreshold)
	assert.Len(t, b.CurrentSessionData().Nodes.Symptoms, 2)
	assert.Empty(t, b.QOMLayout().Nodes)

	global := m.GetGlobalInstance("live")
	assert.Empty(t, global.CurrentSessionData().Nodes.Symptoms)
}

func TestGetGlobalInstance(t *testing.T) {
	m, obs := newTestManager()

	g := m.GetGlobalInstance("live-1")
	assert.Equal(t, KindGlobal, g.Kind())
	assert.Equal(t, "live-1", g.SessionID())
	assert.Equal(t, 1, obs.counts[string(KindGlobal)])

	t.Run("singleton", func(t *testing.T) {
		assert.Same(t, g, m.GetGlobalInstance("live-1"))
		assert.Same(t, g, m.GetGlobalInstance(""))
	})

	t.Run("same session keeps state", func(t *testing.T) {
		g.LoadSession(testSession())
		m.GetGlobalInstance("sess-1")
		assert.Len(t, g.CurrentSessionData().Nodes.Symptoms, 2)
	})

	t.Run("different session resets and re-keys", func(t *testing.T) {
		again := m.GetGlobalInstance("live-2")
		assert.Same(t, g, again)
		assert.Equal(t, "live-2", again.SessionID())
		assert.Empty(t, again.CurrentSessionData().Nodes.Symptoms)
	})

	t.Run("lookup by id", func(t *testing.T) {
		got, err := m.Instance(g.ID())
		require.NoError(t, err)
		assert.Same(t, g, got)
	})
}

func TestCleanupInstance(t *testing.T) {
	m, obs := newTestManager()
	doc := m.CreateDocumentInstance(testSession())

	assert.True(t, m.CleanupInstance(doc.ID()))
	assert.False(t, m.CleanupInstance(doc.ID()))
	assert.True(t, doc.Closed())
	assert.Equal(t, 0, obs.counts[string(KindDocument)])

	_, err := m.Instance(doc.ID())
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	doc.ApplyEvent(execution.NodeStarted{NodeID: "n1"})
	assert.Equal(t, 1, obs.after)

	t.Run("global is reset not removed", func(t *testing.T) {
		g := m.GetGlobalInstance("live")
		g.LoadSession(testSession())
		assert.True(t, m.CleanupInstance(g.ID()))
		assert.False(t, g.Closed())
		assert.Empty(t, g.CurrentSessionData().Nodes.Symptoms)
		assert.Same(t, g, m.GetGlobalInstance("next"))
	})

	assert.False(t, m.CleanupInstance("unknown"))
}

func TestCleanupAll(t *testing.T) {
	m, _ := newTestManager()
	docs := []*Engine{m.CreateDocumentInstance(testSession()), m.CreateDocumentInstance(nil)}
	g := m.GetGlobalInstance("live")
	g.LoadSession(testSession())

	m.CleanupAll()
	m.CleanupAll()

	assert.Empty(t, m.Documents())
	for _, d := range docs {
		assert.True(t, d.Closed())
	}
	assert.False(t, g.Closed())
	assert.Empty(t, g.CurrentSessionData().Nodes.Symptoms)
}

func TestManagerSubscribe(t *testing.T) {
	m, _ := newTestManager()
	ch, unsubscribe := m.Subscribe(16)
	defer unsubscribe()

	doc := m.CreateDocumentInstance(testSession())
	g := m.GetGlobalInstance("live")
	g.SetZoom(2)

	first := <-ch
	second := <-ch
	assert.Equal(t, doc.ID(), first.InstanceID)
	assert.Equal(t, ChangeSession, first.Type)
	assert.Equal(t, g.ID(), second.InstanceID)
	assert.Equal(t, KindGlobal, second.Kind)
}

func TestDefaultManager(t *testing.T) {
	assert.Same(t, DefaultManager(), DefaultManager())
}

func TestConcurrentDocumentInstances(t *testing.T) {
	m, _ := newTestManager()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := m.CreateDocumentInstance(testSession())
			e.SetSymptomThreshold(9)
			_ = e.SankeyDataFiltered()
			e.ApplyEvent(execution.QOMInitialized{})
			m.CleanupInstance(e.ID())
		}()
	}
	wg.Wait()
	assert.Empty(t, m.Documents())
}
