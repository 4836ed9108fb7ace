package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAnalysisAllNodes(t *testing.T) {
	s := NewSessionAnalysis("sess-1")
	s.Nodes.Symptoms = append(s.Nodes.Symptoms, Node{ID: "s1", Name: "Cough"})
	s.Nodes.Diagnoses = append(s.Nodes.Diagnoses, Node{ID: "d1", Name: "Bronchitis"})
	s.Nodes.Treatments = append(s.Nodes.Treatments, Node{ID: "t1", Name: "Rest"})
	s.Nodes.Actions = append(s.Nodes.Actions, Node{ID: "q1", Kind: KindAction, Subtype: SubtypeQuestion})

	nodes := s.AllNodes()
	require.Len(t, nodes, 4)

	t.Run("keeps group order", func(t *testing.T) {
		ids := make([]string, len(nodes))
		for i, n := range nodes {
			ids[i] = n.ID
		}
		assert.Equal(t, []string{"s1", "d1", "t1", "q1"}, ids)
	})

	t.Run("fills kind from group", func(t *testing.T) {
		assert.Equal(t, KindSymptom, nodes[0].Kind)
		assert.Equal(t, KindDiagnosis, nodes[1].Kind)
		assert.Equal(t, KindTreatment, nodes[2].Kind)
		assert.Equal(t, KindAction, nodes[3].Kind)
	})

	t.Run("works on a decoded value", func(t *testing.T) {
		decode := func(data string) SessionAnalysis {
			var out SessionAnalysis
			require.NoError(t, json.Unmarshal([]byte(data), &out))
			return out
		}
		got := decode(`{"sessionId":"sess-2","nodes":{"symptoms":[{"id":"s9","name":"Fever"}]}}`).AllNodes()
		require.Len(t, got, 1)
		assert.Equal(t, KindSymptom, got[0].Kind)
	})
}

func TestSessionAnalysisAddNode(t *testing.T) {
	s := NewSessionAnalysis("sess-1")

	assert.True(t, s.AddNode(*NewNode("s1", KindSymptom, "Cough")))
	assert.True(t, s.AddNode(*NewNode("q1", KindAction, "Ask")))
	assert.False(t, s.AddNode(*NewReasoningNode("gp", SubtypeModel, "GP")))

	assert.Len(t, s.Nodes.Symptoms, 1)
	assert.Len(t, s.Nodes.Actions, 1)
}

func TestSessionAnalysisMissingGroups(t *testing.T) {
	var s SessionAnalysis
	err := json.Unmarshal([]byte(`{"sessionId":"legacy","nodes":{"symptoms":[{"id":"s1"}]}}`), &s)
	require.NoError(t, err)

	s.EnsureGroups()

	assert.Len(t, s.Nodes.Symptoms, 1)
	assert.NotNil(t, s.Nodes.Diagnoses)
	assert.Empty(t, s.Nodes.Diagnoses)
	assert.NotNil(t, s.Nodes.Treatments)
	assert.NotNil(t, s.Nodes.Actions)
	assert.NotNil(t, s.Links)
	assert.NotNil(t, s.UserActions)
}

func TestSessionAnalysisClone(t *testing.T) {
	s := NewSessionAnalysis("sess-1")
	s.AddNode(*NewNode("s1", KindSymptom, "Cough"))
	s.AddLink(*NewLink("s1", "d1", RelationSupports))
	s.UserActions = append(s.UserActions, UserAction{ID: "u1", Type: "select"})

	clone := s.Clone()
	clone.Nodes.Symptoms[0].Name = "Changed"
	clone.Links[0].Strength = 0.1
	clone.UserActions[0].Type = "zoom"

	assert.Equal(t, "Cough", s.Nodes.Symptoms[0].Name)
	assert.Equal(t, 1.0, s.Links[0].Strength)
	assert.Equal(t, "select", s.UserActions[0].Type)
}
