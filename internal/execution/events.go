// Package execution applies the ordered stream of execution events to an
// execution graph and its layout.
package execution

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"clinigraph/internal/domain"
)

// Event type tags as they appear on the wire
const (
	TypeQOMInitialized    = "qom_initialized"
	TypeNodeStarted       = "node_started"
	TypeNodeCompleted     = "node_completed"
	TypeNodeFailed        = "node_failed"
	TypeExpertTriggered   = "expert_triggered"
	TypeRelationshipAdded = "relationship_added"
	TypeQOMCompleted      = "qom_completed"
)

// Event is one of the seven execution events. The set is closed: every
// kind is dispatched through visitor, so adding a kind does not compile
// until the machine handles it.
type Event interface {
	EventType() string
	accept(v visitor)
}

type visitor interface {
	qomInitialized(QOMInitialized)
	nodeStarted(NodeStarted)
	nodeCompleted(NodeCompleted)
	nodeFailed(NodeFailed)
	expertTriggered(ExpertTriggered)
	relationshipAdded(RelationshipAdded)
	qomCompleted(QOMCompleted)
}

// Timestamp decodes either epoch milliseconds or an RFC 3339 string and
// encodes as epoch milliseconds.
type Timestamp struct {
	time.Time
}

// At wraps t
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(ts.UnixMilli(), 10)), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		ts.Time = time.Time{}
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", str, err)
		}
		ts.Time = t
		return nil
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", s, err)
	}
	ts.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// QOMInitialized starts an execution run, optionally replacing the graph
type QOMInitialized struct {
	QOMID     string        `json:"qomId,omitempty"`
	Nodes     []domain.Node `json:"nodes,omitempty"`
	Links     []domain.Link `json:"links,omitempty"`
	Timestamp Timestamp     `json:"timestamp,omitzero"`
}

// NodeStarted moves a node to running
type NodeStarted struct {
	NodeID    string    `json:"nodeId"`
	Timestamp Timestamp `json:"timestamp,omitzero"`
}

// NodeCompleted moves a node to completed and records its metrics
type NodeCompleted struct {
	NodeID    string    `json:"nodeId"`
	Duration  *int64    `json:"duration,omitempty"` // milliseconds
	Cost      *float64  `json:"cost,omitempty"`
	Output    any       `json:"output,omitempty"`
	Timestamp Timestamp `json:"timestamp,omitzero"`
}

// NodeFailed moves a node to failed
type NodeFailed struct {
	NodeID    string    `json:"nodeId"`
	Error     string    `json:"error,omitempty"`
	Timestamp Timestamp `json:"timestamp,omitzero"`
}

// ExpertTriggered spawns a specialist node between a parent and the
// consensus node
type ExpertTriggered struct {
	ParentID    string    `json:"parentId"`
	ExpertID    string    `json:"expertId"`
	ExpertName  string    `json:"expertName,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ConsensusID string    `json:"consensusId,omitempty"`
	Timestamp   Timestamp `json:"timestamp,omitzero"`
}

// RelationshipAdded adds a link to the execution graph
type RelationshipAdded struct {
	LinkID       string           `json:"linkId,omitempty"`
	Source       string           `json:"source"`
	Target       string           `json:"target"`
	Relationship string           `json:"relationship,omitempty"`
	Strength     *float64         `json:"strength,omitempty"`
	Direction    domain.Direction `json:"direction,omitempty"`
	Timestamp    Timestamp        `json:"timestamp,omitzero"`
}

// Link converts the event into a normalized, active link
func (e RelationshipAdded) Link() domain.Link {
	link := domain.NewLink(e.Source, e.Target, e.Relationship)
	if e.LinkID != "" {
		link.ID = e.LinkID
	}
	if e.Strength != nil {
		link.Strength = *e.Strength
	}
	if e.Direction != "" {
		link.Direction = e.Direction
	}
	link.Normalize()
	return *link
}

// QOMCompleted ends the run and carries the final aggregates
type QOMCompleted struct {
	TotalDuration *int64    `json:"totalDuration,omitempty"`
	TotalCost     *float64  `json:"totalCost,omitempty"`
	Timestamp     Timestamp `json:"timestamp,omitzero"`
}

func (QOMInitialized) EventType() string    { return TypeQOMInitialized }
func (NodeStarted) EventType() string       { return TypeNodeStarted }
func (NodeCompleted) EventType() string     { return TypeNodeCompleted }
func (NodeFailed) EventType() string        { return TypeNodeFailed }
func (ExpertTriggered) EventType() string   { return TypeExpertTriggered }
func (RelationshipAdded) EventType() string { return TypeRelationshipAdded }
func (QOMCompleted) EventType() string      { return TypeQOMCompleted }

func (e QOMInitialized) accept(v visitor)    { v.qomInitialized(e) }
func (e NodeStarted) accept(v visitor)       { v.nodeStarted(e) }
func (e NodeCompleted) accept(v visitor)     { v.nodeCompleted(e) }
func (e NodeFailed) accept(v visitor)        { v.nodeFailed(e) }
func (e ExpertTriggered) accept(v visitor)   { v.expertTriggered(e) }
func (e RelationshipAdded) accept(v visitor) { v.relationshipAdded(e) }
func (e QOMCompleted) accept(v visitor)      { v.qomCompleted(e) }
