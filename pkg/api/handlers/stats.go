package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mikradb/pkg/auth"
	"mikradb/pkg/models"
	"mikradb/pkg/shared"
	"mikradb/pkg/stats"
	"mikradb/pkg/telemetry"
	"mikradb/pkg/utils"
)

type statsHandlers struct {
	shared *shared.Client
	loc    *time.Location
}

// RegisterStats registers the reader statistics routes.
func RegisterStats(r *mux.Router, sh *shared.Client, loc *time.Location) {
	h := &statsHandlers{shared: sh, loc: loc}
	r.HandleFunc("/stats", h.getStats).Methods(http.MethodGet)
	r.HandleFunc("/stats/{system}", h.getSystemStats).Methods(http.MethodGet)
}

// getStats handles GET /stats: the identity's full derived snapshot, computed
// fresh from their progress records on every request.
func (h *statsHandlers) getStats(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == "" {
		utils.JSONError(w, http.StatusBadRequest, "reader identity required")
		return
	}
	if h.shared == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "statistics store not configured")
		return
	}
	end := telemetry.StartSpan(r.Context(), "stats.snapshot")
	recs, err := h.shared.ListProgress(r.Context(), identity, shared.ListFilter{})
	end()
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "statistics store unavailable")
		return
	}
	snap := stats.ComputeSnapshot(identity, recs, time.Now(), h.loc)
	_ = utils.JSONWrite(w, http.StatusOK, snap)
}

// getSystemStats handles GET /stats/{system}: the derived numbers for one
// text system only.
func (h *statsHandlers) getSystemStats(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == "" {
		utils.JSONError(w, http.StatusBadRequest, "reader identity required")
		return
	}
	system := models.TextSystem(mux.Vars(r)["system"])
	if !system.Known() {
		utils.JSONError(w, http.StatusNotFound, "unknown text system")
		return
	}
	if h.shared == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "statistics store not configured")
		return
	}
	recs, err := h.shared.ListProgress(r.Context(), identity, shared.ListFilter{TextType: string(system)})
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "statistics store unavailable")
		return
	}
	ss := stats.ComputeSystem(recs, system, time.Now(), h.loc)
	_ = utils.JSONWrite(w, http.StatusOK, ss)
}
