package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinigraph/internal/domain"
)

func fixture() ([]domain.Node, []domain.Link) {
	nodes := []domain.Node{
		{ID: "s-mild", Kind: domain.KindSymptom, Severity: 2},
		{ID: "s-mid", Kind: domain.KindSymptom, Severity: 5},
		{ID: "s-severe", Kind: domain.KindSymptom, Severity: 9},
		{ID: "d-low", Kind: domain.KindDiagnosis, Probability: 0.1},
		{ID: "d-mid", Kind: domain.KindDiagnosis, Probability: 0.3},
		{ID: "d-high", Kind: domain.KindDiagnosis, Probability: 0.8},
		{ID: "t-urgent", Kind: domain.KindTreatment, Priority: 2},
		{ID: "t-later", Kind: domain.KindTreatment, Priority: 9},
		{ID: "q1", Kind: domain.KindAction, Subtype: domain.SubtypeQuestion},
	}
	links := []domain.Link{
		*domain.NewLink("s-mild", "d-high", domain.RelationSupports),
		*domain.NewLink("s-severe", "d-high", domain.RelationSupports),
		*domain.NewLink("d-low", "t-urgent", domain.RelationTreats),
		*domain.NewLink("d-high", "t-urgent", domain.RelationTreats),
		*domain.NewLink("q1", "d-mid", domain.RelationAsks),
	}
	return nodes, links
}

func countKind(g domain.Graph, kind domain.NodeKind) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}

func TestApplyDefaults(t *testing.T) {
	nodes, links := fixture()
	res := Apply(nodes, links, domain.DefaultThresholds())

	assert.ElementsMatch(t,
		[]string{"s-mild", "s-mid", "d-mid", "d-high", "t-urgent", "q1"},
		res.Graph.NodeIDs())
	assert.Equal(t, HiddenCounts{Symptoms: 1, Diagnoses: 1, Treatments: 1}, res.Hidden)
	assert.Equal(t, 3, res.Hidden.Total())

	t.Run("links need both endpoints visible", func(t *testing.T) {
		var pairs []string
		for _, l := range res.Graph.Links {
			pairs = append(pairs, l.Source+">"+l.Target)
		}
		assert.ElementsMatch(t, []string{"s-mild>d-high", "d-high>t-urgent", "q1>d-mid"}, pairs)
	})
}

func TestApplyShowAll(t *testing.T) {
	nodes, links := fixture()
	cfg := domain.DefaultThresholds()
	cfg.SetShowAll(domain.KindSymptom, true)
	cfg.SetShowAll(domain.KindDiagnosis, true)
	cfg.SetShowAll(domain.KindTreatment, true)

	res := Apply(nodes, links, cfg)
	assert.Len(t, res.Graph.Nodes, len(nodes))
	assert.Len(t, res.Graph.Links, len(links))
	assert.Zero(t, res.Hidden.Total())
}

func TestThresholdPolarity(t *testing.T) {
	nodes, links := fixture()

	t.Run("raising severity threshold never hides symptoms", func(t *testing.T) {
		low := domain.DefaultThresholds()
		low.SetSymptomThreshold(3)
		high := domain.DefaultThresholds()
		high.SetSymptomThreshold(7)

		before := countKind(Apply(nodes, links, low).Graph, domain.KindSymptom)
		after := countKind(Apply(nodes, links, high).Graph, domain.KindSymptom)
		assert.GreaterOrEqual(t, after, before)
		assert.Equal(t, 1, before)
		assert.Equal(t, 2, after)
	})

	t.Run("raising probability threshold never reveals diagnoses", func(t *testing.T) {
		low := domain.DefaultThresholds()
		low.SetDiagnosisThreshold(0.2)
		high := domain.DefaultThresholds()
		high.SetDiagnosisThreshold(0.5)

		before := countKind(Apply(nodes, links, low).Graph, domain.KindDiagnosis)
		after := countKind(Apply(nodes, links, high).Graph, domain.KindDiagnosis)
		assert.LessOrEqual(t, after, before)
		assert.Equal(t, 2, before)
		assert.Equal(t, 1, after)
	})

	t.Run("treatment threshold is a ceiling", func(t *testing.T) {
		cfg := domain.DefaultThresholds()
		cfg.SetTreatmentThreshold(10)
		assert.Equal(t, 2, countKind(Apply(nodes, links, cfg).Graph, domain.KindTreatment))
	})

	t.Run("sweep", func(t *testing.T) {
		prev := -1
		for v := 1; v <= 10; v++ {
			cfg := domain.DefaultThresholds()
			cfg.SetSymptomThreshold(v)
			got := countKind(Apply(nodes, links, cfg).Graph, domain.KindSymptom)
			assert.GreaterOrEqual(t, got, prev, "severity threshold %d", v)
			prev = got
		}
	})
}

func TestApplyDoesNotMutate(t *testing.T) {
	nodes, links := fixture()
	nodes[0].Children = []string{"x"}

	res := Apply(nodes, links, domain.DefaultThresholds())
	require.NotEmpty(t, res.Graph.Nodes)
	res.Graph.Nodes[0].Children[0] = "changed"
	res.Graph.Nodes[0].Name = "changed"

	assert.Equal(t, []string{"x"}, nodes[0].Children)
	assert.Empty(t, nodes[0].Name)
}
