package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"mikradb/pkg/cache"
	"mikradb/pkg/logger"
	"mikradb/pkg/source"
	"mikradb/pkg/telemetry"
	"mikradb/pkg/utils"
)

type textHandlers struct {
	cache *cache.Cache
}

// RegisterTexts registers the text lookup routes.
func RegisterTexts(r *mux.Router, c *cache.Cache) {
	h := &textHandlers{cache: c}
	r.HandleFunc("/texts/{ref}", h.getText).Methods(http.MethodGet)
	r.HandleFunc("/texts/{ref}/preload", h.preloadText).Methods(http.MethodPost)
	r.HandleFunc("/texts/{ref}", h.deleteText).Methods(http.MethodDelete)
}

// getText handles GET /texts/{ref}: resolve through the tiered cache and
// return the cleaned units. 404 only when the source itself has no such ref.
func (h *textHandlers) getText(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	if ref == "" {
		utils.JSONError(w, http.StatusBadRequest, "text ref missing")
		return
	}
	end := telemetry.StartSpan(r.Context(), "cache.resolve")
	units, err := h.cache.Resolve(r.Context(), ref)
	end()
	if err != nil {
		switch {
		case errors.Is(err, source.ErrNotFound):
			utils.JSONError(w, http.StatusNotFound, "text not found")
		case errors.Is(err, source.ErrTimeout):
			utils.JSONError(w, http.StatusGatewayTimeout, "text source timed out")
		default:
			utils.JSONError(w, http.StatusBadGateway, "text source unavailable")
		}
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Ref   string   `json:"ref"`
		Units []string `json:"units"`
	}{Ref: ref, Units: units})
}

// preloadText handles POST /texts/{ref}/preload: warm the cache in the
// background. Always 202; preload failures are silent.
func (h *textHandlers) preloadText(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	if ref == "" {
		utils.JSONError(w, http.StatusBadRequest, "text ref missing")
		return
	}
	h.cache.Preload(ref)
	_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "preloading", "ref": ref})
}

// deleteText handles DELETE /texts/{ref}: drop the ref from every cache tier.
// Admin keys only.
func (h *textHandlers) deleteText(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Role-Name") != "admin" {
		utils.JSONError(w, http.StatusForbidden, "admin key required")
		return
	}
	ref := mux.Vars(r)["ref"]
	if ref == "" {
		utils.JSONError(w, http.StatusBadRequest, "text ref missing")
		return
	}
	h.cache.Invalidate(r.Context(), ref)
	logger.Info("text_invalidate_requested", "ref", ref)
	w.WriteHeader(http.StatusNoContent)
}
