package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode(t *testing.T) {
	t.Run("creates node with defaults", func(t *testing.T) {
		node := NewNode("s1", KindSymptom, "Chest pain")

		assert.Equal(t, "s1", node.ID)
		assert.Equal(t, KindSymptom, node.Kind)
		assert.Equal(t, "Chest pain", node.Name)
		assert.NotNil(t, node.Properties)
		assert.Zero(t, node.Layer)
		assert.Nil(t, node.Position)
	})

	t.Run("actions start pending", func(t *testing.T) {
		node := NewNode("q1", KindAction, "Ask about onset")
		assert.Equal(t, ActionPending, node.Status)
	})

	t.Run("reasoning nodes start in pending state", func(t *testing.T) {
		node := NewReasoningNode("gp", SubtypeModel, "General practitioner")
		assert.Equal(t, KindReasoning, node.Kind)
		assert.Equal(t, SubtypeModel, node.Subtype)
		assert.Equal(t, StatePending, node.State)
	})
}

func TestNodeNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Node
		want Node
	}{
		{
			name: "clamps probability and confidence",
			in:   Node{Kind: KindDiagnosis, Probability: 1.7, Confidence: -0.2},
			want: Node{Kind: KindDiagnosis, Probability: 1, Confidence: 0},
		},
		{
			name: "clamps severity into 1-10",
			in:   Node{Kind: KindSymptom, Severity: 14},
			want: Node{Kind: KindSymptom, Severity: 10},
		},
		{
			name: "leaves unset priority alone",
			in:   Node{Kind: KindTreatment},
			want: Node{Kind: KindTreatment},
		},
		{
			name: "raises negative priority to minimum",
			in:   Node{Kind: KindTreatment, Priority: -3},
			want: Node{Kind: KindTreatment, Priority: 1},
		},
		{
			name: "negative layer becomes zero",
			in:   Node{Kind: KindSymptom, Layer: -2},
			want: Node{Kind: KindSymptom},
		},
		{
			name: "keeps explicit action status",
			in:   Node{Kind: KindAction, Status: ActionAnswered},
			want: Node{Kind: KindAction, Status: ActionAnswered},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.Normalize()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeActionSubtypes(t *testing.T) {
	q := NewNode("q1", KindAction, "Question")
	q.Subtype = SubtypeQuestion
	a := NewNode("a1", KindAction, "Alert")
	a.Subtype = SubtypeAlert
	s := NewNode("s1", KindSymptom, "Symptom")
	s.Subtype = SubtypeQuestion

	assert.True(t, q.IsQuestion())
	assert.False(t, q.IsAlert())
	assert.True(t, a.IsAlert())
	assert.False(t, a.IsQuestion())
	assert.False(t, s.IsQuestion(), "only actions can be questions")
}

func TestNodeClone(t *testing.T) {
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	node := *NewNode("n1", KindReasoning, "Model")
	node.Children = []string{"c1"}
	node.Position = NewPosition(10, 20)
	node.StartedAt = &started
	node.SetProperty("model", "large")

	clone := node.Clone()
	clone.Children[0] = "changed"
	clone.Position.X = 99
	*clone.StartedAt = started.Add(time.Hour)
	clone.SetProperty("model", "small")

	assert.Equal(t, []string{"c1"}, node.Children)
	assert.Equal(t, 10.0, node.Position.X)
	assert.Equal(t, started, *node.StartedAt)
	v, ok := node.GetProperty("model")
	require.True(t, ok)
	assert.Equal(t, "large", v)
}

func TestNodeSetGetProperty(t *testing.T) {
	node := Node{ID: "test"}

	t.Run("missing property on nil map", func(t *testing.T) {
		_, ok := node.GetProperty("source")
		assert.False(t, ok)
	})

	t.Run("set initializes map", func(t *testing.T) {
		node.SetProperty("source", "transcript")
		v, ok := node.GetProperty("source")
		require.True(t, ok)
		assert.Equal(t, "transcript", v)
	})
}

func TestExecStateTerminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 0.5, Clamp01(0.5))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.1, ClampFloat(0.01, 0.1, 4))
	assert.Equal(t, 4.0, ClampFloat(9, 0.1, 4))
	assert.Equal(t, 1, ClampInt(0, 1, 10))
	assert.Equal(t, 10, ClampInt(11, 1, 10))
	assert.Equal(t, 5, ClampInt(5, 1, 10))
}
