// Package stats derives statistics from persisted progress records. Every
// function here is pure: records in, snapshot out, no storage access and no
// mutation of the input. Snapshots are recomputed on each request rather
// than persisted.
package stats

import (
	"math"
	"sort"
	"time"

	"mikradb/pkg/models"
)

// SectionCount is one entry of a most-visited list.
type SectionCount struct {
	Section int `json:"section"`
	Count   int `json:"count"`
}

// SystemStats are the derived numbers for one text system.
type SystemStats struct {
	System               models.TextSystem `json:"system"`
	Completed            int               `json:"completed"`
	Remaining            int               `json:"remaining"`
	CompletionPercentage int               `json:"completion_percentage"`
	TotalTimeMinutes     int               `json:"total_time_minutes"`
	CurrentStreakDays    int               `json:"current_streak_days"`
	LongestStreakDays    int               `json:"longest_streak_days"`
	LastActivity         int64             `json:"last_activity"` // unix nanos, 0 when none
	MostVisited          []SectionCount    `json:"most_visited"`
}

// Snapshot is the full derived view for one identity.
type Snapshot struct {
	Identity string `json:"identity"`

	Systems []SystemStats `json:"systems"`

	TotalTimeMinutes       int `json:"total_time_minutes"`
	TotalUnitsRead         int `json:"total_units_read"`
	TotalSectionsCompleted int `json:"total_sections_completed"`

	CurrentStreakDays int `json:"current_streak_days"`
	LongestStreakDays int `json:"longest_streak_days"`

	XP    int    `json:"xp"`
	Level int    `json:"level"`
	Rank  string `json:"rank"`

	Achievements []Achievement `json:"achievements"`

	LastActivity int64 `json:"last_activity"`
}

const mostVisitedN = 3

// ComputeSystem derives the stats for one system from the records belonging
// to it. loc fixes the calendar-day boundary for streaks.
func ComputeSystem(records []models.ProgressRecord, system models.TextSystem, now time.Time, loc *time.Location) SystemStats {
	out := SystemStats{System: system}
	total := system.KnownTotal()

	visits := map[int]int{}
	var dates []time.Time
	totalSeconds := 0
	for _, r := range records {
		if models.TextSystem(r.TextType) != system {
			continue
		}
		out.Completed += r.SectionsCompleted
		totalSeconds += r.TotalTimeSeconds
		visits[r.Section]++
		if r.UpdatedTS > out.LastActivity {
			out.LastActivity = r.UpdatedTS
		}
		if r.UpdatedTS > 0 {
			dates = append(dates, time.Unix(0, r.UpdatedTS))
		}
		if r.LastReadAt > 0 && r.LastReadAt != r.UpdatedTS {
			dates = append(dates, time.Unix(0, r.LastReadAt))
		}
		if r.LongestStreakDays > out.LongestStreakDays {
			out.LongestStreakDays = r.LongestStreakDays
		}
	}
	// floor once over the summed seconds, not per record
	out.TotalTimeMinutes = totalSeconds / 60
	if out.Completed > total {
		out.Completed = total
	}
	out.Remaining = total - out.Completed
	if total > 0 {
		out.CompletionPercentage = int(math.Round(float64(out.Completed) / float64(total) * 100))
	}
	out.CurrentStreakDays = CurrentStreak(dates, now, loc)
	if ls := LongestStreak(dates, loc); ls > out.LongestStreakDays {
		out.LongestStreakDays = ls
	}
	out.MostVisited = topVisited(visits, mostVisitedN)
	return out
}

// CurrentStreak walks backward day-by-day from today: the streak is the
// count of consecutive calendar days (including today) with at least one
// activity timestamp, stopping at the first gap. Pure function of the date
// set, not of record order.
func CurrentStreak(activity []time.Time, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	days := dateSet(activity, loc)
	streak := 0
	day := dayKey(now.In(loc))
	for {
		if _, ok := days[day]; !ok {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// LongestStreak returns the longest run of consecutive calendar days in the
// activity set.
func LongestStreak(activity []time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	days := dateSet(activity, loc)
	longest := 0
	for day := range days {
		// only count runs from their first day
		if _, ok := days[day.AddDate(0, 0, -1)]; ok {
			continue
		}
		run := 1
		for {
			next := day.AddDate(0, 0, run)
			if _, ok := days[next]; !ok {
				break
			}
			run++
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

func dateSet(activity []time.Time, loc *time.Location) map[time.Time]struct{} {
	days := make(map[time.Time]struct{}, len(activity))
	for _, ts := range activity {
		days[dayKey(ts.In(loc))] = struct{}{}
	}
	return days
}

func dayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func topVisited(visits map[int]int, n int) []SectionCount {
	out := make([]SectionCount, 0, len(visits))
	for sec, cnt := range visits {
		out = append(out, SectionCount{Section: sec, Count: cnt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Section < out[j].Section
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ComputeSnapshot rolls the per-system stats up into the identity's full
// snapshot. An identity with zero records gets a zero-valued snapshot with
// level 1, never nil.
func ComputeSnapshot(identity string, records []models.ProgressRecord, now time.Time, loc *time.Location) *Snapshot {
	snap := &Snapshot{Identity: identity}
	for _, sys := range models.Systems {
		ss := ComputeSystem(records, sys, now, loc)
		snap.Systems = append(snap.Systems, ss)
		snap.TotalTimeMinutes += ss.TotalTimeMinutes
		snap.TotalSectionsCompleted += ss.Completed
		// overall streak is the max of per-system streaks: activity in any
		// one system counts for the day, but per-system streaks stay
		// independent rather than merging date sets
		if ss.CurrentStreakDays > snap.CurrentStreakDays {
			snap.CurrentStreakDays = ss.CurrentStreakDays
		}
		if ss.LongestStreakDays > snap.LongestStreakDays {
			snap.LongestStreakDays = ss.LongestStreakDays
		}
		if ss.LastActivity > snap.LastActivity {
			snap.LastActivity = ss.LastActivity
		}
	}
	for _, r := range records {
		snap.TotalUnitsRead += r.UnitsRead
	}
	snap.XP = ExperiencePoints(snap.TotalUnitsRead, snap.TotalSectionsCompleted, snap.TotalTimeMinutes)
	snap.Level = LevelForXP(snap.XP)
	snap.Rank = RankForLevel(snap.Level)
	snap.Achievements = Unlocked(snap)
	return snap
}
