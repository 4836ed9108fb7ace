// Package threshold derives the visible part of a session graph from the
// per-kind threshold configuration.
package threshold

import (
	"clinigraph/internal/domain"
)

// HiddenCounts reports how many nodes of each kind were suppressed
type HiddenCounts struct {
	Symptoms   int `json:"symptoms"`
	Diagnoses  int `json:"diagnoses"`
	Treatments int `json:"treatments"`
}

// Total returns the number of hidden nodes across kinds
func (h HiddenCounts) Total() int {
	return h.Symptoms + h.Diagnoses + h.Treatments
}

// Result is the filtered view and what it left out
type Result struct {
	Graph  domain.Graph `json:"graph"`
	Hidden HiddenCounts `json:"hidden"`
}

// Visible reports whether a node passes cfg. Symptoms and treatments use a
// ceiling, diagnoses use a floor, other kinds are always visible.
func Visible(n domain.Node, cfg domain.ThresholdConfig) bool {
	switch n.Kind {
	case domain.KindSymptom:
		return cfg.Symptoms.ShowAll || n.Severity <= cfg.Symptoms.SeverityThreshold
	case domain.KindDiagnosis:
		return cfg.Diagnoses.ShowAll || n.Probability >= cfg.Diagnoses.ProbabilityThreshold
	case domain.KindTreatment:
		return cfg.Treatments.ShowAll || n.Priority <= cfg.Treatments.PriorityThreshold
	default:
		return true
	}
}

// Apply returns copies of the visible nodes and of the links whose
// endpoints are both visible. The inputs are not modified.
func Apply(nodes []domain.Node, links []domain.Link, cfg domain.ThresholdConfig) Result {
	res := Result{Graph: *domain.NewGraph()}
	visible := make(map[string]struct{}, len(nodes))

	for _, n := range nodes {
		if Visible(n, cfg) {
			visible[n.ID] = struct{}{}
			res.Graph.AddNode(n.Clone())
			continue
		}
		switch n.Kind {
		case domain.KindSymptom:
			res.Hidden.Symptoms++
		case domain.KindDiagnosis:
			res.Hidden.Diagnoses++
		case domain.KindTreatment:
			res.Hidden.Treatments++
		}
	}

	for _, l := range links {
		_, src := visible[l.Source]
		_, tgt := visible[l.Target]
		if src && tgt {
			res.Graph.AddLink(l.Clone())
		}
	}
	return res
}
