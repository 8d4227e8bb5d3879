package stats

import (
	"sort"
	"time"
)

// AdminStats is the system-wide rollup over every user's snapshot. Built by
// a straightforward walk over the population; intended for small user
// counts, no pagination.
type AdminStats struct {
	TotalUsers  int `json:"total_users"`
	ActiveUsers int `json:"active_users"` // activity within the last 7 days

	TotalTimeMinutes       int     `json:"total_time_minutes"`
	TotalUnitsRead         int     `json:"total_units_read"`
	TotalSectionsCompleted int     `json:"total_sections_completed"`
	AverageLevel           float64 `json:"average_level"`

	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// LeaderboardEntry is one row of a metric ranking.
type LeaderboardEntry struct {
	Identity string `json:"identity"`
	Value    int    `json:"value"`
}

// Leaderboard metrics.
const (
	MetricLevel    = "level"
	MetricStreak   = "streak"
	MetricUnits    = "units"
	MetricSections = "sections"
	MetricTime     = "time"
)

const activeWindow = 7 * 24 * time.Hour

// ComputeAdmin rolls per-user snapshots into system-wide totals plus a
// top-N leaderboard for the chosen metric.
func ComputeAdmin(perUser []*Snapshot, metric string, topN int, now time.Time) AdminStats {
	out := AdminStats{TotalUsers: len(perUser)}
	levelSum := 0
	for _, s := range perUser {
		out.TotalTimeMinutes += s.TotalTimeMinutes
		out.TotalUnitsRead += s.TotalUnitsRead
		out.TotalSectionsCompleted += s.TotalSectionsCompleted
		levelSum += s.Level
		if s.LastActivity > 0 && now.Sub(time.Unix(0, s.LastActivity)) <= activeWindow {
			out.ActiveUsers++
		}
	}
	if len(perUser) > 0 {
		out.AverageLevel = float64(levelSum) / float64(len(perUser))
	}
	out.Leaderboard = Leaderboard(perUser, metric, topN)
	return out
}

// Leaderboard ranks users by the metric and slices the top n. Ties break by
// identity for a stable order.
func Leaderboard(perUser []*Snapshot, metric string, n int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(perUser))
	for _, s := range perUser {
		entries = append(entries, LeaderboardEntry{Identity: s.Identity, Value: metricValue(s, metric)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Identity < entries[j].Identity
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func metricValue(s *Snapshot, metric string) int {
	switch metric {
	case MetricStreak:
		return s.CurrentStreakDays
	case MetricUnits:
		return s.TotalUnitsRead
	case MetricSections:
		return s.TotalSectionsCompleted
	case MetricTime:
		return s.TotalTimeMinutes
	default:
		return s.Level
	}
}
