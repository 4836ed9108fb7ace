package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"clinigraph/internal/domain"
	"clinigraph/internal/execution"
	"clinigraph/internal/repository"
)

// Repository implements repository.SnapshotRepository using SQLite
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var _ repository.SnapshotRepository = (*Repository)(nil)

// New creates a new SQLite repository. ":memory:" opens a private
// in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if dbPath == ":memory:" {
		dsn = dbPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db, now: time.Now}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		session_id TEXT PRIMARY KEY,
		data JSON NOT NULL,
		node_count INTEGER NOT NULL DEFAULT 0,
		link_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS execution_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		type TEXT NOT NULL,
		data JSON NOT NULL,
		recorded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_execution_events_session ON execution_events(session_id, seq);
	CREATE INDEX IF NOT EXISTS idx_snapshots_updated ON snapshots(updated_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveSnapshot inserts or replaces the snapshot of a session
func (r *Repository) SaveSnapshot(ctx context.Context, session *domain.SessionAnalysis) error {
	if session == nil || session.SessionID == "" {
		return fmt.Errorf("snapshot requires a session id")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	now := toMillis(r.now())
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, data, node_count, link_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			data = excluded.data,
			node_count = excluded.node_count,
			link_count = excluded.link_count,
			updated_at = excluded.updated_at
	`, session.SessionID, string(data), len(session.AllNodes()), len(session.Links), now, now)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// GetSnapshot loads the snapshot of a session
func (r *Repository) GetSnapshot(ctx context.Context, sessionID string) (*domain.SessionAnalysis, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE session_id = ?`, sessionID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	session := &domain.SessionAnalysis{}
	if err := json.Unmarshal([]byte(data), session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	session.EnsureGroups()

	return session, nil
}

// ListSnapshots returns snapshot summaries, most recently updated first
func (r *Repository) ListSnapshots(ctx context.Context) ([]repository.SnapshotInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		ORDER BY updated_at DESC, session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	infos := make([]repository.SnapshotInfo, 0)
	for rows.Next() {
		var row snapshotRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		infos = append(infos, row.toInfo())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return infos, nil
}

// DeleteSnapshot removes a snapshot and its event log
func (r *Repository) DeleteSnapshot(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM execution_events WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}

	return tx.Commit()
}

// AppendEvent adds an execution event to a session's log and returns its
// sequence number
func (r *Repository) AppendEvent(ctx context.Context, sessionID string, ev execution.Event) (int64, error) {
	data, err := execution.Encode(ev)
	if err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO execution_events (session_id, type, data, recorded_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, ev.EventType(), string(data), toMillis(r.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to append event: %w", err)
	}

	return result.LastInsertId()
}

// ListEvents returns a session's events in the order they were appended
func (r *Repository) ListEvents(ctx context.Context, sessionID string) ([]repository.RecordedEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, data, recorded_at
		FROM execution_events
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]repository.RecordedEvent, 0)
	for rows.Next() {
		var row eventRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec, err := row.toRecorded()
		if err != nil {
			return nil, err
		}
		events = append(events, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
