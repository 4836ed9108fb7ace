package domain

import (
	"slices"
	"time"
)

// NodeGroups holds session nodes grouped by kind
type NodeGroups struct {
	Symptoms   []Node `json:"symptoms"`
	Diagnoses  []Node `json:"diagnoses"`
	Treatments []Node `json:"treatments"`
	Actions    []Node `json:"actions"`
}

// UserAction is one entry of the clinician interaction log
type UserAction struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Value     any       `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionAnalysis is the snapshot of one session's analysis graph. It is the
// unit exchanged with the external document store.
type SessionAnalysis struct {
	SessionID   string       `json:"sessionId"`
	Nodes       NodeGroups   `json:"nodes"`
	Links       []Link       `json:"links"`
	UserActions []UserAction `json:"userActions"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// NewSessionAnalysis creates an empty session snapshot
func NewSessionAnalysis(sessionID string) *SessionAnalysis {
	s := &SessionAnalysis{SessionID: sessionID}
	s.EnsureGroups()
	return s
}

// EnsureGroups replaces missing groups with empty ones, so partial or legacy
// snapshots load as empty groups instead of being rejected.
func (s *SessionAnalysis) EnsureGroups() {
	if s.Nodes.Symptoms == nil {
		s.Nodes.Symptoms = make([]Node, 0)
	}
	if s.Nodes.Diagnoses == nil {
		s.Nodes.Diagnoses = make([]Node, 0)
	}
	if s.Nodes.Treatments == nil {
		s.Nodes.Treatments = make([]Node, 0)
	}
	if s.Nodes.Actions == nil {
		s.Nodes.Actions = make([]Node, 0)
	}
	if s.Links == nil {
		s.Links = make([]Link, 0)
	}
	if s.UserActions == nil {
		s.UserActions = make([]UserAction, 0)
	}
}

// AllNodes flattens the groups in symptom, diagnosis, treatment, action
// order. A node without a kind takes the kind of its group.
func (s SessionAnalysis) AllNodes() []Node {
	total := len(s.Nodes.Symptoms) + len(s.Nodes.Diagnoses) + len(s.Nodes.Treatments) + len(s.Nodes.Actions)
	nodes := make([]Node, 0, total)

	appendGroup := func(group []Node, kind NodeKind) {
		for _, n := range group {
			n = n.Clone()
			if n.Kind == "" {
				n.Kind = kind
			}
			nodes = append(nodes, n)
		}
	}

	appendGroup(s.Nodes.Symptoms, KindSymptom)
	appendGroup(s.Nodes.Diagnoses, KindDiagnosis)
	appendGroup(s.Nodes.Treatments, KindTreatment)
	appendGroup(s.Nodes.Actions, KindAction)
	return nodes
}

// AddNode adds a node to the group matching its kind. Nodes of other kinds
// are ignored and false is returned.
func (s *SessionAnalysis) AddNode(n Node) bool {
	switch n.Kind {
	case KindSymptom:
		s.Nodes.Symptoms = append(s.Nodes.Symptoms, n)
	case KindDiagnosis:
		s.Nodes.Diagnoses = append(s.Nodes.Diagnoses, n)
	case KindTreatment:
		s.Nodes.Treatments = append(s.Nodes.Treatments, n)
	case KindAction:
		s.Nodes.Actions = append(s.Nodes.Actions, n)
	default:
		return false
	}
	return true
}

// AddLink adds a link to the snapshot
func (s *SessionAnalysis) AddLink(link Link) {
	s.Links = append(s.Links, link)
}

// Clone returns a deep copy of the snapshot
func (s *SessionAnalysis) Clone() *SessionAnalysis {
	out := &SessionAnalysis{
		SessionID: s.SessionID,
		UpdatedAt: s.UpdatedAt,
	}
	cloneNodes := func(in []Node) []Node {
		if in == nil {
			return nil
		}
		res := make([]Node, len(in))
		for i, n := range in {
			res[i] = n.Clone()
		}
		return res
	}
	out.Nodes.Symptoms = cloneNodes(s.Nodes.Symptoms)
	out.Nodes.Diagnoses = cloneNodes(s.Nodes.Diagnoses)
	out.Nodes.Treatments = cloneNodes(s.Nodes.Treatments)
	out.Nodes.Actions = cloneNodes(s.Nodes.Actions)
	if s.Links != nil {
		out.Links = make([]Link, len(s.Links))
		for i, l := range s.Links {
			out.Links[i] = l.Clone()
		}
	}
	out.UserActions = slices.Clone(s.UserActions)
	return out
}
