package repository

import (
	"context"
	"errors"
	"time"

	"clinigraph/internal/domain"
	"clinigraph/internal/execution"
)

// ErrNotFound is returned when a snapshot does not exist
var ErrNotFound = errors.New("snapshot not found")

// SnapshotInfo summarizes a stored snapshot without loading it
type SnapshotInfo struct {
	SessionID string    `json:"sessionId"`
	NodeCount int       `json:"nodeCount"`
	LinkCount int       `json:"linkCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordedEvent is an execution event as stored in the event log
type RecordedEvent struct {
	Seq        int64
	Event      execution.Event
	RecordedAt time.Time
}

// SnapshotRepository stores session snapshots and their execution event logs
type SnapshotRepository interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, session *domain.SessionAnalysis) error
	GetSnapshot(ctx context.Context, sessionID string) (*domain.SessionAnalysis, error)
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)
	DeleteSnapshot(ctx context.Context, sessionID string) error

	// Event log
	AppendEvent(ctx context.Context, sessionID string, ev execution.Event) (int64, error)
	ListEvents(ctx context.Context, sessionID string) ([]RecordedEvent, error)

	// Close releases resources
	Close() error
}
