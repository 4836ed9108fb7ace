// Package scoring ranks pending questions and alerts by a composite of
// intrinsic priority, diagnostic relevance and urgency.
package scoring

import (
	"cmp"
	"slices"

	"clinigraph/internal/domain"
	"clinigraph/internal/relation"
)

// Weights tunes the composite score
type Weights struct {
	PriorityWeight   float64 `json:"priorityWeight" yaml:"priority_weight"`
	DiagnosticWeight float64 `json:"diagnosticWeight" yaml:"diagnostic_weight"`
	UrgencyBoost     float64 `json:"urgencyBoost" yaml:"urgency_boost"`
	HighSeverity     int     `json:"highSeverity" yaml:"high_severity"`
}

// DefaultWeights returns the weights used when none are configured
func DefaultWeights() Weights {
	return Weights{
		PriorityWeight:   0.4,
		DiagnosticWeight: 0.6,
		UrgencyBoost:     0.5,
		HighSeverity:     7,
	}
}

// Scorer scores actions against one session snapshot
type Scorer struct {
	weights Weights
	nodes   map[string]domain.Node
	idx     *relation.Index
}

// New creates a scorer over nodes and their relationship index
func New(w Weights, nodes []domain.Node, idx *relation.Index) *Scorer {
	byID := make(map[string]domain.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return &Scorer{weights: w, nodes: byID, idx: idx}
}

// Score computes
//
//	(PriorityWeight*priority/10 + DiagnosticWeight*maxDiagnosisProbability) * urgency
//
// where maxDiagnosisProbability is taken over diagnoses one hop away and
// urgency is 1+UrgencyBoost when a linked symptom reaches HighSeverity.
func (s *Scorer) Score(action domain.Node) float64 {
	priority := float64(domain.ClampInt(action.Priority, 0, domain.MaxPriority)) / float64(domain.MaxPriority)

	var maxProb float64
	urgent := false
	if s.idx != nil {
		for _, e := range s.idx.Neighbors(action.ID) {
			neighbor, ok := s.nodes[e.NeighborID]
			if !ok {
				continue
			}
			switch neighbor.Kind {
			case domain.KindDiagnosis:
				maxProb = max(maxProb, domain.Clamp01(neighbor.Probability))
			case domain.KindSymptom:
				if neighbor.Severity >= s.weights.HighSeverity {
					urgent = true
				}
			}
		}
	}

	score := s.weights.PriorityWeight*priority + s.weights.DiagnosticWeight*maxProb
	if urgent {
		score *= 1 + s.weights.UrgencyBoost
	}
	return score
}

// Ranked is an action with its score
type Ranked struct {
	Node  domain.Node `json:"node"`
	Score float64     `json:"score"`
}

// Rank orders actions by descending score. Ties keep their input order.
func (s *Scorer) Rank(actions []domain.Node) []Ranked {
	out := make([]Ranked, len(actions))
	for i, a := range actions {
		out[i] = Ranked{Node: a, Score: s.Score(a)}
	}
	slices.SortStableFunc(out, func(a, b Ranked) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// FilterPending keeps ranked actions whose status is pending
func FilterPending(ranked []Ranked) []Ranked {
	out := make([]Ranked, 0, len(ranked))
	for _, r := range ranked {
		if r.Node.Status == domain.ActionPending || r.Node.Status == "" {
			out = append(out, r)
		}
	}
	return out
}

// Questions returns the question actions among nodes in input order
func Questions(nodes []domain.Node) []domain.Node {
	var out []domain.Node
	for _, n := range nodes {
		if n.IsQuestion() {
			out = append(out, n)
		}
	}
	return out
}
