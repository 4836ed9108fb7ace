package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"clinigraph/internal/domain"
	"clinigraph/internal/engine"
	"clinigraph/internal/execution"
)

// InstanceInfo describes an engine instance
type InstanceInfo struct {
	ID        string      `json:"id"`
	Kind      engine.Kind `json:"kind"`
	SessionID string      `json:"sessionId,omitempty"`
	Version   uint64      `json:"version"`
	Closed    bool        `json:"closed"`
}

func infoOf(e *engine.Engine) InstanceInfo {
	return InstanceInfo{
		ID:        e.ID(),
		Kind:      e.Kind(),
		SessionID: e.SessionID(),
		Version:   e.Version(),
		Closed:    e.Closed(),
	}
}

// CreateInstanceRequest creates a document instance. SessionID alone opens
// the stored snapshot; Snapshot loads the given one.
type CreateInstanceRequest struct {
	SessionID string                  `json:"sessionId,omitempty" validate:"omitempty,max=200"`
	Snapshot  *domain.SessionAnalysis `json:"snapshot,omitempty"`
}

// UserActionRequest appends to the interaction log
type UserActionRequest struct {
	Type   string `json:"type" validate:"required,max=100"`
	Target string `json:"target,omitempty" validate:"max=200"`
	Value  any    `json:"value,omitempty"`
}

// ThresholdsRequest updates any subset of the thresholds
type ThresholdsRequest struct {
	SeverityThreshold    *int     `json:"severityThreshold,omitempty" validate:"omitempty,min=1,max=10"`
	ProbabilityThreshold *float64 `json:"probabilityThreshold,omitempty" validate:"omitempty,min=0,max=1"`
	PriorityThreshold    *int     `json:"priorityThreshold,omitempty" validate:"omitempty,min=1,max=10"`
	ShowAllSymptoms      *bool    `json:"showAllSymptoms,omitempty"`
	ShowAllDiagnoses     *bool    `json:"showAllDiagnoses,omitempty"`
	ShowAllTreatments    *bool    `json:"showAllTreatments,omitempty"`
}

// SelectionRequest selects a session node
type SelectionRequest struct {
	Kind string `json:"kind" validate:"required,oneof=symptom diagnosis treatment action"`
	ID   string `json:"id" validate:"required"`
}

// ZoomRequest sets the zoom level
type ZoomRequest struct {
	Level float64 `json:"level" validate:"gt=0"`
}

// EventResponse reports the outcome of an execution event
type EventResponse struct {
	Applied bool            `json:"applied"`
	State   execution.State `json:"state"`
}

// instance resolves the {instanceID} path parameter
func (h *Handler) instance(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	e, err := h.manager.Instance(chi.URLParam(r, "instanceID"))
	if err != nil {
		h.writeServiceError(w, "Failed to get instance", err)
		return nil, false
	}
	return e, true
}

// ListInstances returns the document instances
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	docs := h.manager.Documents()
	infos := make([]InstanceInfo, len(docs))
	for i, e := range docs {
		infos[i] = infoOf(e)
	}
	h.writeJSON(w, infos, http.StatusOK)
}

// CreateInstance creates a document instance
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req CreateInstanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		e   *engine.Engine
		err error
	)
	if req.Snapshot == nil && req.SessionID != "" {
		e, err = h.svc.OpenDocument(r.Context(), req.SessionID)
	} else {
		if req.Snapshot != nil && req.Snapshot.SessionID == "" {
			req.Snapshot.SessionID = req.SessionID
		}
		e, err = h.svc.CreateDocument(req.Snapshot)
	}
	if err != nil {
		if req.Snapshot != nil {
			h.writeError(w, "Invalid snapshot", err.Error(), http.StatusBadRequest)
			return
		}
		h.writeServiceError(w, "Failed to create instance", err)
		return
	}

	h.writeJSON(w, infoOf(e), http.StatusCreated)
}

// GetInstance describes one instance
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, infoOf(e), http.StatusOK)
}

// CloseInstance disposes a document instance, or resets the global one.
// ?save=true stores the snapshot first.
func (h *Handler) CloseInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceID")
	save, _ := strconv.ParseBool(r.URL.Query().Get("save"))

	if err := h.svc.CloseDocument(r.Context(), id, save); err != nil {
		h.writeServiceError(w, "Failed to close instance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveInstance stores the current snapshot of an instance
func (h *Handler) SaveInstance(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.SaveInstance(r.Context(), chi.URLParam(r, "instanceID"))
	if err != nil {
		h.writeServiceError(w, "Failed to save instance", err)
		return
	}
	h.writeJSON(w, snapshot, http.StatusOK)
}

// ResetInstance returns an instance to its initial state
func (h *Handler) ResetInstance(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	e.Reset()
	h.writeJSON(w, infoOf(e), http.StatusOK)
}

// GetSession returns the current session snapshot
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.CurrentSessionData(), http.StatusOK)
}

// LoadSession replaces the session graph
func (h *Handler) LoadSession(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	var snapshot domain.SessionAnalysis
	if !h.decode(w, r, &snapshot) {
		return
	}
	e.LoadSession(&snapshot)
	h.writeJSON(w, e.CurrentSessionData(), http.StatusOK)
}

// UpdateSession merges into the session graph
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	var snapshot domain.SessionAnalysis
	if !h.decode(w, r, &snapshot) {
		return
	}
	e.UpdateSession(&snapshot)
	h.writeJSON(w, e.CurrentSessionData(), http.StatusOK)
}

// RecordUserAction appends to the interaction log
func (h *Handler) RecordUserAction(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	var req UserActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.writeJSON(w, e.RecordUserAction(req.Type, req.Target, req.Value), http.StatusCreated)
}

// readEvent decodes an execution event body
func (h *Handler) readEvent(w http.ResponseWriter, r *http.Request) (execution.Event, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return nil, false
	}
	ev, err := execution.Decode(data)
	if err != nil {
		h.writeError(w, "Invalid event", err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return ev, true
}

// ApplyEvent feeds an execution event to an instance
func (h *Handler) ApplyEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	ev, ok := h.readEvent(w, r)
	if !ok {
		return
	}

	applied, err := h.svc.ApplyEvent(r.Context(), e.ID(), ev)
	if err != nil {
		// the engine already applied the event; only recording failed
		h.logger.Warn("event not recorded", zap.String("instance_id", e.ID()), zap.Error(err))
	}
	h.writeJSON(w, EventResponse{Applied: applied, State: e.ExecutionState()}, http.StatusOK)
}

// ExecutionState returns the aggregate execution state
func (h *Handler) ExecutionState(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.ExecutionState(), http.StatusOK)
}

// QOMLayout returns the positioned execution graph
func (h *Handler) QOMLayout(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.QOMLayout(), http.StatusOK)
}

// GetControls returns the presentation state
func (h *Handler) GetControls(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.Controls(), http.StatusOK)
}

// SetThresholds updates the thresholds present in the request
func (h *Handler) SetThresholds(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	var req ThresholdsRequest
	if !h.decode(w, r, &req) {
		return
	}

	cfg := e.Thresholds()
	if req.SeverityThreshold != nil {
		cfg.SetSymptomThreshold(*req.SeverityThreshold)
	}
	if req.ProbabilityThreshold != nil {
		cfg.SetDiagnosisThreshold(*req.ProbabilityThreshold)
	}
	if req.PriorityThreshold != nil {
		cfg.SetTreatmentThreshold(*req.PriorityThreshold)
	}
	if req.ShowAllSymptoms != nil {
		cfg.SetShowAll(domain.KindSymptom, *req.ShowAllSymptoms)
	}
	if req.ShowAllDiagnoses != nil {
		cfg.SetShowAll(domain.KindDiagnosis, *req.ShowAllDiagnoses)
	}
	if req.ShowAllTreatments != nil {
		cfg.SetShowAll(domain.KindTreatment, *req.ShowAllTreatments)
	}

	h.writeJSON(w, e.SetThresholds(cfg), http.StatusOK)
}

// SelectItem selects a node and returns its highlight path
func (h *Handler) SelectItem(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	var req SelectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	e.SelectItem(domain.NodeKind(req.Kind), req.ID)
	h.writeJSON(w, e.Controls(), http.StatusOK)
}

// ClearSelection drops the selection and highlight
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	e.ClearSelection()
	h.writeJSON(w, e.Controls(), http.StatusOK)
}

// SetZoom sets the clamped zoom level
func (h *Handler) SetZoom(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	var req ZoomRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.writeJSON(w, map[string]float64{"zoom": e.SetZoom(req.Level)}, http.StatusOK)
}

// FilteredGraph returns the thresholded session graph and hidden counts
func (h *Handler) FilteredGraph(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.FilteredGraph(), http.StatusOK)
}

// SankeyData returns the positioned, thresholded session graph
func (h *Handler) SankeyData(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.SankeyDataFiltered(), http.StatusOK)
}

// SortedPendingQuestions returns pending questions by composite score
func (h *Handler) SortedPendingQuestions(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.SortedPendingQuestions(), http.StatusOK)
}

// CalculatePath returns the one-hop path around a node, null when the node
// has no relationships
func (h *Handler) CalculatePath(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.CalculatePath(chi.URLParam(r, "nodeID")), http.StatusOK)
}

// QuestionsForNode returns the question actions linked to a node
func (h *Handler) QuestionsForNode(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.QuestionsForNode(chi.URLParam(r, "nodeID")), http.StatusOK)
}

// AlertsForNode returns the alert actions linked to a node
func (h *Handler) AlertsForNode(w http.ResponseWriter, r *http.Request) {
	e, ok := h.instance(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, e.AlertsForNode(chi.URLParam(r, "nodeID")), http.StatusOK)
}

// GetLive describes the global live instance
func (h *Handler) GetLive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, infoOf(h.manager.GetGlobalInstance("")), http.StatusOK)
}

// ApplyLiveEvent feeds an execution event to the global instance keyed by
// the session id in the path
func (h *Handler) ApplyLiveEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.readEvent(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	applied, err := h.svc.ApplyLiveEvent(r.Context(), sessionID, ev)
	if err != nil {
		h.logger.Warn("event not recorded", zap.String("session_id", sessionID), zap.Error(err))
	}
	g := h.manager.GetGlobalInstance(sessionID)
	h.writeJSON(w, EventResponse{Applied: applied, State: g.ExecutionState()}, http.StatusOK)
}

// UpdateLiveSession merges a snapshot into the global instance
func (h *Handler) UpdateLiveSession(w http.ResponseWriter, r *http.Request) {
	var snapshot domain.SessionAnalysis
	if !h.decode(w, r, &snapshot) {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if snapshot.SessionID == "" {
		snapshot.SessionID = sessionID
	}

	g := h.manager.GetGlobalInstance(sessionID)
	g.UpdateSession(&snapshot)
	h.writeJSON(w, g.CurrentSessionData(), http.StatusOK)
}
