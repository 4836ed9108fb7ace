package sqlite

import (
	"fmt"
	"time"

	"clinigraph/internal/execution"
	"clinigraph/internal/repository"
)

// ============================================================================
// Time Conversion Helpers
// ============================================================================

// toMillis converts a time to unix milliseconds for storage
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis converts stored unix milliseconds back to UTC time
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ============================================================================
// Snapshot Row Scanner
// ============================================================================

// snapshotRow holds the summary columns of a snapshot query
type snapshotRow struct {
	SessionID string
	NodeCount int
	LinkCount int
	CreatedAt int64
	UpdatedAt int64
}

// snapshotColumns returns the SELECT column list for snapshot summaries
const snapshotColumns = `session_id, node_count, link_count, created_at, updated_at`

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match snapshotColumns order exactly
func (r *snapshotRow) scanArgs() []interface{} {
	return []interface{}{
		&r.SessionID,
		&r.NodeCount,
		&r.LinkCount,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
}

func (r *snapshotRow) toInfo() repository.SnapshotInfo {
	return repository.SnapshotInfo{
		SessionID: r.SessionID,
		NodeCount: r.NodeCount,
		LinkCount: r.LinkCount,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

// ============================================================================
// Event Row Scanner
// ============================================================================

// eventRow holds the columns of an event log query
type eventRow struct {
	Seq        int64
	Data       string
	RecordedAt int64
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match: seq, data, recorded_at
func (r *eventRow) scanArgs() []interface{} {
	return []interface{}{&r.Seq, &r.Data, &r.RecordedAt}
}

func (r *eventRow) toRecorded() (repository.RecordedEvent, error) {
	ev, err := execution.Decode([]byte(r.Data))
	if err != nil {
		return repository.RecordedEvent{}, fmt.Errorf("event %d: %w", r.Seq, err)
	}
	return repository.RecordedEvent{
		Seq:        r.Seq,
		Event:      ev,
		RecordedAt: fromMillis(r.RecordedAt),
	}, nil
}
