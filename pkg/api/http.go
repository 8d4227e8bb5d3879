// Package api wires the versioned HTTP surface: text lookups, reading
// sessions and statistics for readers, plus the admin rollups.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mikradb/pkg/api/handlers"
	"mikradb/pkg/cache"
	"mikradb/pkg/shared"
	"mikradb/pkg/telemetry"
	"mikradb/pkg/tracker"
)

// Deps carries the wired services the handlers operate on.
type Deps struct {
	Cache   *cache.Cache
	Tracker *tracker.Tracker
	Shared  *shared.Client // nil disables stats backed by the shared store
	Loc     *time.Location // calendar-day boundary for streaks; nil means UTC
	TopN    int            // default leaderboard size; <=0 falls back to 10
}

// Handler builds the /v1 router. Authentication and identity resolution are
// applied by the caller; handlers read the identity from the request context.
func Handler(d Deps) http.Handler {
	if d.Loc == nil {
		d.Loc = time.UTC
	}
	r := mux.NewRouter()
	r.Use(telemetry.Middleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterTexts(v1, d.Cache)
	handlers.RegisterSessions(v1, d.Tracker)
	handlers.RegisterStats(v1, d.Shared, d.Loc)
	handlers.RegisterAdmin(v1, d.Shared, d.Loc, d.TopN)
	return r
}
