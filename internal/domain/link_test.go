package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLink(t *testing.T) {
	t.Run("creates active outgoing link", func(t *testing.T) {
		link := NewLink("s1", "d1", RelationSupports)

		assert.Equal(t, "s1", link.Source)
		assert.Equal(t, "d1", link.Target)
		assert.Equal(t, RelationSupports, link.Type)
		assert.Equal(t, DirectionOutgoing, link.Direction)
		assert.Equal(t, 1.0, link.Strength)
		assert.True(t, link.Active)
		assert.NotEmpty(t, link.ID)
	})
}

func TestLinkGenerateID(t *testing.T) {
	t.Run("same endpoints and type produce same id", func(t *testing.T) {
		a := NewLink("gp", "consensus", RelationFlow)
		b := NewLink("gp", "consensus", RelationFlow)
		assert.Equal(t, a.ID, b.ID)
	})

	t.Run("reversed endpoints produce different ids", func(t *testing.T) {
		a := NewLink("gp", "consensus", RelationFlow)
		b := NewLink("consensus", "gp", RelationFlow)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("type is part of the id", func(t *testing.T) {
		a := NewLink("s1", "d1", RelationSupports)
		b := NewLink("s1", "d1", RelationTreats)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("id is 16 hex characters", func(t *testing.T) {
		link := NewLink("a", "b", "")
		assert.Len(t, link.ID, 16)
		assert.Regexp(t, "^[0-9a-f]+$", link.ID)
	})
}

func TestLinkNormalize(t *testing.T) {
	tests := []struct {
		name          string
		link          Link
		wantStrength  float64
		wantDirection Direction
	}{
		{"clamps strength above one", Link{Source: "a", Target: "b", Strength: 1.4, Direction: DirectionIncoming}, 1, DirectionIncoming},
		{"clamps negative strength", Link{Source: "a", Target: "b", Strength: -0.5}, 0, DirectionOutgoing},
		{"unknown direction falls back to outgoing", Link{Source: "a", Target: "b", Direction: "sideways"}, 0, DirectionOutgoing},
		{"keeps bidirectional", Link{Source: "a", Target: "b", Strength: 0.3, Direction: DirectionBidirectional}, 0.3, DirectionBidirectional},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := tt.link
			link.Normalize()
			assert.Equal(t, tt.wantStrength, link.Strength)
			assert.Equal(t, tt.wantDirection, link.Direction)
			assert.NotEmpty(t, link.ID)
		})
	}

	t.Run("keeps explicit id", func(t *testing.T) {
		link := Link{ID: "l-1", Source: "a", Target: "b"}
		link.Normalize()
		assert.Equal(t, "l-1", link.ID)
	})
}

func TestLinkConnects(t *testing.T) {
	link := NewLink("p", "c", RelationFlow)
	assert.True(t, link.Connects("p", "c"))
	assert.False(t, link.Connects("c", "p"))

	byID := map[string]Link{link.ID: *link}
	assert.True(t, byID[link.ID].Connects("p", "c"))
	assert.False(t, byID["missing"].Connects("p", "c"))
}

func TestLinkClone(t *testing.T) {
	link := *NewLink("a", "b", "")
	link.SetProperty("evidence", "ecg")

	clone := link.Clone()
	clone.SetProperty("evidence", "troponin")

	v, ok := link.GetProperty("evidence")
	assert.True(t, ok)
	assert.Equal(t, "ecg", v)
}
