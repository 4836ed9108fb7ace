package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clinigraph/internal/codec"
)

// ListSnapshots returns the stored snapshot summaries
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.ListSnapshots(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list snapshots", err)
		return
	}
	h.writeJSON(w, infos, http.StatusOK)
}

// ImportSnapshot stores the snapshot document in the body.
// ?format=json|yaml selects the codec, ?merge=true merges into the stored
// snapshot of the same session.
func (h *Handler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if _, err := codec.ForFormat(format); err != nil {
		h.writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}
	merge, _ := strconv.ParseBool(r.URL.Query().Get("merge"))

	snapshot, err := h.svc.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxBody), format, merge)
	if err != nil {
		h.writeError(w, "Failed to import snapshot", err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, snapshot, http.StatusCreated)
}

// ExportSnapshot writes a stored snapshot in the requested format
func (h *Handler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	c, err := codec.ForFormat(format)
	if err != nil {
		h.writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	// buffer so errors can still be reported as JSON
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), chi.URLParam(r, "sessionID"), c.Format(), &buf); err != nil {
		h.writeServiceError(w, "Failed to export snapshot", err)
		return
	}

	contentType := "application/json"
	if c.Format() == "yaml" {
		contentType = "application/x-yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// DeleteSnapshot removes a stored snapshot and its event log
func (h *Handler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSnapshot(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.writeServiceError(w, "Failed to delete snapshot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaySnapshot opens a document instance and replays the session's
// recorded events into it
func (h *Handler) ReplaySnapshot(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Replay(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeServiceError(w, "Failed to replay session", err)
		return
	}
	h.writeJSON(w, infoOf(e), http.StatusCreated)
}
