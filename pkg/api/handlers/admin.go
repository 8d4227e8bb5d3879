package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"mikradb/pkg/logger"
	"mikradb/pkg/shared"
	"mikradb/pkg/stats"
	"mikradb/pkg/store"
	"mikradb/pkg/utils"
)

const defaultLeaderboardN = 10

type adminHandlers struct {
	shared *shared.Client
	loc    *time.Location
	topN   int
}

// RegisterAdmin registers the admin rollup routes. The gateway restricts the
// /admin prefix to admin keys.
func RegisterAdmin(r *mux.Router, sh *shared.Client, loc *time.Location, topN int) {
	if topN <= 0 {
		topN = defaultLeaderboardN
	}
	h := &adminHandlers{shared: sh, loc: loc, topN: topN}
	r.HandleFunc("/admin/stats", h.getAdminStats).Methods(http.MethodGet)
	r.HandleFunc("/admin/leaderboard", h.getLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/admin/storage", h.getStorage).Methods(http.MethodGet)
}

// snapshots computes a fresh per-identity snapshot for every known identity.
// The population is small enough that a sequential walk is fine.
func (h *adminHandlers) snapshots(r *http.Request, now time.Time) ([]*stats.Snapshot, error) {
	identities, err := h.shared.ListIdentities(r.Context())
	if err != nil {
		return nil, err
	}
	out := make([]*stats.Snapshot, 0, len(identities))
	for _, id := range identities {
		recs, err := h.shared.ListProgress(r.Context(), id, shared.ListFilter{})
		if err != nil {
			logger.Warn("admin_snapshot_skipped", "identity", id, "error", err)
			continue
		}
		out = append(out, stats.ComputeSnapshot(id, recs, now, h.loc))
	}
	return out, nil
}

// getAdminStats handles GET /admin/stats: the system-wide rollup with a
// default level leaderboard.
func (h *adminHandlers) getAdminStats(w http.ResponseWriter, r *http.Request) {
	if h.shared == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "statistics store not configured")
		return
	}
	now := time.Now()
	perUser, err := h.snapshots(r, now)
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "statistics store unavailable")
		return
	}
	out := stats.ComputeAdmin(perUser, stats.MetricLevel, h.topN, now)
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

// getLeaderboard handles GET /admin/leaderboard?metric=<m>&n=<k>. Unknown
// metrics fall back to level.
func (h *adminHandlers) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	if h.shared == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "statistics store not configured")
		return
	}
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = stats.MetricLevel
	}
	n := h.topN
	if s := r.URL.Query().Get("n"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			n = v
		}
	}
	perUser, err := h.snapshots(r, time.Now())
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "statistics store unavailable")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Metric  string                   `json:"metric"`
		Entries []stats.LeaderboardEntry `json:"entries"`
	}{Metric: metric, Entries: stats.Leaderboard(perUser, metric, n)})
}

// getStorage handles GET /admin/storage: the durable tier's on-disk footprint.
func (h *adminHandlers) getStorage(w http.ResponseWriter, r *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, map[string]uint64{"disk_usage_bytes": store.DiskUsage()})
}
