package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"clinigraph/internal/codec"
	"clinigraph/internal/domain"
	"clinigraph/internal/engine"
	"clinigraph/internal/execution"
	"clinigraph/internal/repository"
)

// SnapshotObserver receives the outcome of snapshot store calls
type SnapshotObserver interface {
	SnapshotOperation(operation string, err error)
}

// SessionService provides session persistence and event forwarding on top
// of an engine manager
type SessionService struct {
	manager  *engine.Manager
	repo     repository.SnapshotRepository
	observer SnapshotObserver
	logger   *zap.Logger
}

// NewSessionService creates a new session service. observer may be nil.
func NewSessionService(manager *engine.Manager, repo repository.SnapshotRepository, observer SnapshotObserver, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		manager:  manager,
		repo:     repo,
		observer: observer,
		logger:   logger,
	}
}

// Manager returns the engine manager the service works on
func (s *SessionService) Manager() *engine.Manager {
	return s.manager
}

func (s *SessionService) observe(op string, err error) {
	if s.observer != nil {
		s.observer.SnapshotOperation(op, err)
	}
}

// CreateDocument creates a document instance from an optional snapshot
func (s *SessionService) CreateDocument(initial *domain.SessionAnalysis) (*engine.Engine, error) {
	if initial != nil {
		if err := s.validateSession(initial); err != nil {
			return nil, err
		}
	}
	return s.manager.CreateDocumentInstance(initial), nil
}

// OpenDocument creates a document instance loaded with a stored snapshot
func (s *SessionService) OpenDocument(ctx context.Context, sessionID string) (*engine.Engine, error) {
	snapshot, err := s.repo.GetSnapshot(ctx, sessionID)
	s.observe("get", err)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", sessionID, err)
	}
	return s.manager.CreateDocumentInstance(snapshot), nil
}

// SaveInstance stores the current snapshot of an instance
func (s *SessionService) SaveInstance(ctx context.Context, instanceID string) (*domain.SessionAnalysis, error) {
	e, err := s.manager.Instance(instanceID)
	if err != nil {
		return nil, err
	}

	snapshot := e.CurrentSessionData()
	if snapshot.SessionID == "" {
		return nil, fmt.Errorf("instance %s has no session id", instanceID)
	}

	err = s.repo.SaveSnapshot(ctx, snapshot)
	s.observe("save", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("snapshot saved",
		zap.String("instance_id", instanceID),
		zap.String("session_id", snapshot.SessionID),
		zap.Int("nodes", len(snapshot.AllNodes())))
	return snapshot, nil
}

// CloseDocument disposes a document instance, saving it first when save
// is set
func (s *SessionService) CloseDocument(ctx context.Context, instanceID string, save bool) error {
	if save {
		if _, err := s.SaveInstance(ctx, instanceID); err != nil {
			return err
		}
	}
	if !s.manager.CleanupInstance(instanceID) {
		return engine.ErrInstanceNotFound
	}
	return nil
}

// ListSnapshots returns the stored snapshot summaries
func (s *SessionService) ListSnapshots(ctx context.Context) ([]repository.SnapshotInfo, error) {
	infos, err := s.repo.ListSnapshots(ctx)
	s.observe("list", err)
	return infos, err
}

// DeleteSnapshot removes a stored snapshot and its event log
func (s *SessionService) DeleteSnapshot(ctx context.Context, sessionID string) error {
	err := s.repo.DeleteSnapshot(ctx, sessionID)
	s.observe("delete", err)
	return err
}

// Import parses a snapshot document and stores it. With merge set, the
// document is merged into the stored snapshot of the same session instead
// of replacing it.
func (s *SessionService) Import(ctx context.Context, r io.Reader, format string, merge bool) (*domain.SessionAnalysis, error) {
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, err
	}

	incoming, err := c.Parse(r)
	if err != nil {
		return nil, err
	}
	if err := s.validateSession(incoming); err != nil {
		return nil, err
	}
	if incoming.SessionID == "" {
		return nil, fmt.Errorf("imported snapshot has no session id")
	}

	result := incoming
	if merge {
		existing, err := s.repo.GetSnapshot(ctx, incoming.SessionID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			// merge rules live in Engine.UpdateSession
			scratch := engine.New(engine.KindDocument, engine.Options{Logger: s.logger})
			scratch.LoadSession(existing)
			scratch.UpdateSession(incoming)
			result = scratch.CurrentSessionData()
			scratch.Cleanup()
		}
	}

	err = s.repo.SaveSnapshot(ctx, result)
	s.observe("save", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("snapshot imported",
		zap.String("session_id", result.SessionID),
		zap.String("format", c.Format()),
		zap.Bool("merge", merge))
	return result, nil
}

// Export writes a stored snapshot in the given format
func (s *SessionService) Export(ctx context.Context, sessionID, format string, w io.Writer) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}

	snapshot, err := s.repo.GetSnapshot(ctx, sessionID)
	s.observe("get", err)
	if err != nil {
		return err
	}

	return c.Export(snapshot, w)
}

// ApplyEvent forwards an execution event to an instance and records it in
// the instance's session event log
func (s *SessionService) ApplyEvent(ctx context.Context, instanceID string, ev execution.Event) (bool, error) {
	e, err := s.manager.Instance(instanceID)
	if err != nil {
		return false, err
	}
	return s.apply(ctx, e, ev)
}

// ApplyLiveEvent forwards an execution event to the global instance keyed
// by sessionID
func (s *SessionService) ApplyLiveEvent(ctx context.Context, sessionID string, ev execution.Event) (bool, error) {
	return s.apply(ctx, s.manager.GetGlobalInstance(sessionID), ev)
}

func (s *SessionService) apply(ctx context.Context, e *engine.Engine, ev execution.Event) (bool, error) {
	applied := e.ApplyEvent(ev)

	if sessionID := e.SessionID(); sessionID != "" {
		if _, err := s.repo.AppendEvent(ctx, sessionID, ev); err != nil {
			s.logger.Warn("failed to record event",
				zap.String("session_id", sessionID),
				zap.String("event_type", ev.EventType()),
				zap.Error(err))
			return applied, err
		}
	}
	return applied, nil
}

// Replay opens a document instance for a session and applies its recorded
// events in order. A session without a stored snapshot replays onto an
// empty graph.
func (s *SessionService) Replay(ctx context.Context, sessionID string) (*engine.Engine, error) {
	snapshot, err := s.repo.GetSnapshot(ctx, sessionID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		snapshot = domain.NewSessionAnalysis(sessionID)
	case err != nil:
		return nil, err
	}

	events, err := s.repo.ListEvents(ctx, sessionID)
	s.observe("list_events", err)
	if err != nil {
		return nil, err
	}

	e := s.manager.CreateDocumentInstance(snapshot)
	applied := ReplayEvents(e, eventsOf(events))

	s.logger.Info("session replayed",
		zap.String("session_id", sessionID),
		zap.String("instance_id", e.ID()),
		zap.Int("events", len(events)),
		zap.Int("applied", applied))
	return e, nil
}

// ReplayEvents applies events to an instance in order and returns how many
// changed state
func ReplayEvents(e *engine.Engine, events []execution.Event) int {
	applied := 0
	for _, ev := range events {
		if e.ApplyEvent(ev) {
			applied++
		}
	}
	return applied
}

func eventsOf(recorded []repository.RecordedEvent) []execution.Event {
	out := make([]execution.Event, len(recorded))
	for i, r := range recorded {
		out[i] = r.Event
	}
	return out
}

// validateSession checks a snapshot for duplicate or empty node ids
func (s *SessionService) validateSession(session *domain.SessionAnalysis) error {
	seen := make(map[string]bool)
	for _, n := range session.AllNodes() {
		if n.ID == "" {
			return fmt.Errorf("node id is required")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %s", n.ID)
		}
		seen[n.ID] = true
	}
	for _, l := range session.Links {
		if l.Source == "" || l.Target == "" {
			return fmt.Errorf("link %s requires source and target", l.ID)
		}
	}
	return nil
}
