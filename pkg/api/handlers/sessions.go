package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"mikradb/pkg/auth"
	"mikradb/pkg/models"
	"mikradb/pkg/tracker"
	"mikradb/pkg/utils"
)

type sessionHandlers struct {
	tracker *tracker.Tracker
}

// RegisterSessions registers the reading-session and position routes.
func RegisterSessions(r *mux.Router, t *tracker.Tracker) {
	h := &sessionHandlers{tracker: t}
	r.HandleFunc("/sessions", h.startSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions", h.stopSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/position", h.updatePosition).Methods(http.MethodPut)
	r.HandleFunc("/sessions/complete", h.completeSection).Methods(http.MethodPost)
	r.HandleFunc("/positions/{textType}", h.lastPosition).Methods(http.MethodGet)
}

// startSession handles POST /sessions. Starting a new session replaces any
// session the identity already had open.
func (h *sessionHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == "" {
		utils.JSONError(w, http.StatusBadRequest, "reader identity required")
		return
	}
	var req struct {
		TextType string `json:"text_type"`
		TextID   string `json:"text_id"`
		Section  int    `json:"section"`
	}
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TextType == "" || req.TextID == "" {
		utils.JSONError(w, http.StatusBadRequest, "text_type and text_id are required")
		return
	}
	if !models.TextSystem(req.TextType).Known() {
		utils.JSONError(w, http.StatusBadRequest, "unknown text_type")
		return
	}
	s := h.tracker.Start(r.Context(), identity, req.TextType, req.TextID, req.Section)
	_ = utils.JSONWrite(w, http.StatusCreated, struct {
		SessionID string `json:"session_id"`
		Identity  string `json:"identity"`
		TextType  string `json:"text_type"`
		TextID    string `json:"text_id"`
	}{SessionID: s.ID, Identity: identity, TextType: req.TextType, TextID: req.TextID})
}

// updatePosition handles PUT /sessions/position: record the reader's current
// location and word advance in their active session.
func (h *sessionHandlers) updatePosition(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == "" {
		utils.JSONError(w, http.StatusBadRequest, "reader identity required")
		return
	}
	var req struct {
		Section    int `json:"section"`
		Unit       int `json:"unit"`
		SubUnit    int `json:"sub_unit"`
		WordsAdded int `json:"words_added"`
	}
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !h.tracker.Update(identity, req.Section, req.Unit, req.SubUnit, req.WordsAdded) {
		utils.JSONError(w, http.StatusNotFound, "no active session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// completeSection handles POST /sessions/complete. The completion write is
// idempotent; re-posting the same section never double-counts it.
func (h *sessionHandlers) completeSection(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == "" {
		utils.JSONError(w, http.StatusBadRequest, "reader identity required")
		return
	}
	var req struct {
		TextType   string `json:"text_type"`
		TextID     string `json:"text_id"`
		Section    int    `json:"section"`
		TotalUnits int    `json:"total_units"`
	}
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TextType == "" || req.TextID == "" {
		utils.JSONError(w, http.StatusBadRequest, "text_type and text_id are required")
		return
	}
	h.tracker.Complete(r.Context(), identity, req.TextType, req.TextID, req.Section, req.TotalUnits)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "completed"})
}

// stopSession handles DELETE /sessions: abandon the active session without a
// completion snapshot. Always 204, even when no session was open.
func (h *sessionHandlers) stopSession(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == "" {
		utils.JSONError(w, http.StatusBadRequest, "reader identity required")
		return
	}
	h.tracker.Stop(identity)
	w.WriteHeader(http.StatusNoContent)
}

// lastPosition handles GET /positions/{textType}: the most recent position
// for the identity within a text system, from the shared store when it is
// reachable and the device-local copy otherwise.
func (h *sessionHandlers) lastPosition(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == "" {
		utils.JSONError(w, http.StatusBadRequest, "reader identity required")
		return
	}
	textType := mux.Vars(r)["textType"]
	pos, textID := h.tracker.LastPosition(r.Context(), identity, textType)
	if pos == nil {
		utils.JSONError(w, http.StatusNotFound, "no recorded position")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		TextType string           `json:"text_type"`
		TextID   string           `json:"text_id"`
		Position *models.Position `json:"position"`
	}{TextType: textType, TextID: textID, Position: pos})
}
