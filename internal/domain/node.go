package domain

import (
	"maps"
	"slices"
	"time"
)

// NodeKind represents the kind of a node in a session graph
type NodeKind string

const (
	KindSymptom   NodeKind = "symptom"
	KindDiagnosis NodeKind = "diagnosis"
	KindTreatment NodeKind = "treatment"
	KindAction    NodeKind = "action"
	KindReasoning NodeKind = "reasoning" // AI reasoning step in the execution graph
)

// Action subtypes
const (
	SubtypeQuestion = "question"
	SubtypeAlert    = "alert"
)

// Reasoning subtypes
const (
	SubtypeModel      = "model"
	SubtypeSpecialist = "specialist"
	SubtypeConsensus  = "consensus"
)

// ActionStatus represents the clinician-facing status of a question or alert
type ActionStatus string

const (
	ActionPending      ActionStatus = "pending"
	ActionAnswered     ActionStatus = "answered"
	ActionAcknowledged ActionStatus = "acknowledged"
)

// ExecState represents the lifecycle of an AI-generated node
type ExecState string

const (
	StatePending   ExecState = "pending"
	StateRunning   ExecState = "running"
	StateCompleted ExecState = "completed"
	StateFailed    ExecState = "failed"
)

// Terminal reports whether no further transitions are allowed from s
func (s ExecState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Value ranges for clinical payloads
const (
	MinSeverity = 1
	MaxSeverity = 10
	MinPriority = 1
	MaxPriority = 10
)

// Node represents a single entity in a session or execution graph
type Node struct {
	ID          string   `json:"id"`
	Kind        NodeKind `json:"kind"`
	Subtype     string   `json:"subtype,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`

	// Kind-specific payload
	Severity    int          `json:"severity,omitempty"`    // symptom, 1-10
	Probability float64      `json:"probability,omitempty"` // diagnosis, 0-1
	Priority    int          `json:"priority,omitempty"`    // treatment and action, 1-10
	Status      ActionStatus `json:"status,omitempty"`      // action
	Confidence  float64      `json:"confidence,omitempty"`

	// Layout fields, owned by the layout engine
	Layer    int       `json:"layer"`
	Parent   string    `json:"parent,omitempty"`
	Children []string  `json:"children,omitempty"`
	Position *Position `json:"position,omitempty"`

	// Execution fields for reasoning nodes
	State       ExecState  `json:"state,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Duration    int64      `json:"duration,omitempty"` // milliseconds
	Cost        float64    `json:"cost,omitempty"`
	Output      any        `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`

	Properties map[string]any `json:"properties,omitempty"`
}

// NewNode creates a new node with the defaults for its kind
func NewNode(id string, kind NodeKind, name string) *Node {
	n := &Node{
		ID:         id,
		Kind:       kind,
		Name:       name,
		Properties: make(map[string]any),
	}
	n.Normalize()
	return n
}

// NewReasoningNode creates a pending reasoning node for the execution graph
func NewReasoningNode(id, subtype, name string) *Node {
	n := NewNode(id, KindReasoning, name)
	n.Subtype = subtype
	return n
}

// Normalize clamps payload values to their documented ranges and fills
// kind defaults.
func (n *Node) Normalize() {
	n.Probability = Clamp01(n.Probability)
	n.Confidence = Clamp01(n.Confidence)
	if n.Severity != 0 {
		n.Severity = ClampInt(n.Severity, MinSeverity, MaxSeverity)
	}
	if n.Priority != 0 {
		n.Priority = ClampInt(n.Priority, MinPriority, MaxPriority)
	}
	if n.Layer < 0 {
		n.Layer = 0
	}

	switch n.Kind {
	case KindAction:
		if n.Status == "" {
			n.Status = ActionPending
		}
	case KindReasoning:
		if n.State == "" {
			n.State = StatePending
		}
	}
}

// IsQuestion reports whether the node is a question action
func (n Node) IsQuestion() bool {
	return n.Kind == KindAction && n.Subtype == SubtypeQuestion
}

// IsAlert reports whether the node is an alert action
func (n Node) IsAlert() bool {
	return n.Kind == KindAction && n.Subtype == SubtypeAlert
}

// Clone returns a deep copy of the node. Output is shared; it is treated as
// immutable once recorded.
func (n Node) Clone() Node {
	n.Children = slices.Clone(n.Children)
	n.Properties = maps.Clone(n.Properties)
	if n.Position != nil {
		p := *n.Position
		n.Position = &p
	}
	if n.StartedAt != nil {
		t := *n.StartedAt
		n.StartedAt = &t
	}
	if n.CompletedAt != nil {
		t := *n.CompletedAt
		n.CompletedAt = &t
	}
	return n
}

// SetProperty sets a property value
func (n *Node) SetProperty(key string, value any) {
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[key] = value
}

// GetProperty gets a property value
func (n Node) GetProperty(key string) (any, bool) {
	if n.Properties == nil {
		return nil, false
	}
	val, ok := n.Properties[key]
	return val, ok
}

// Clamp01 clamps v to [0,1]
func Clamp01(v float64) float64 {
	return ClampFloat(v, 0, 1)
}

// ClampFloat clamps v to [lo,hi]
func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt clamps v to [lo,hi]
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
