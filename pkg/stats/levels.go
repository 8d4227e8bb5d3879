package stats

import "math"

// Experience weighting: each unit read, each completed section and each
// minute spent contribute a fixed amount.
const (
	xpPerUnit    = 10
	xpPerSection = 50
	xpPerMinute  = 1
)

// ExperiencePoints computes the XP total from the cumulative counters.
func ExperiencePoints(unitsRead, sectionsCompleted, minutes int) int {
	return unitsRead*xpPerUnit + sectionsCompleted*xpPerSection + minutes*xpPerMinute
}

// LevelForXP maps XP onto a level: floor(sqrt(xp/100)) + 1. Level 1 at zero.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Floor(math.Sqrt(float64(xp)/100))) + 1
}

// Rank tiers by level.
var rankThresholds = []struct {
	minLevel int
	name     string
}{
	{35, "luminary"},
	{20, "sage"},
	{10, "scholar"},
	{5, "apprentice"},
	{1, "novice"},
}

// RankForLevel returns the named tier for a level.
func RankForLevel(level int) string {
	for _, r := range rankThresholds {
		if level >= r.minLevel {
			return r.name
		}
	}
	return "novice"
}

// Achievement is one unlocked achievement in a snapshot.
type Achievement struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// The achievement catalog: id, title, and the unlock predicate over the
// rolled-up snapshot.
var catalog = []struct {
	id    string
	title string
	check func(*Snapshot) bool
}{
	{"first_section", "First Steps", func(s *Snapshot) bool { return s.TotalSectionsCompleted >= 1 }},
	{"ten_sections", "Getting Serious", func(s *Snapshot) bool { return s.TotalSectionsCompleted >= 10 }},
	{"streak_week", "A Full Week", func(s *Snapshot) bool { return s.LongestStreakDays >= 7 }},
	{"streak_month", "Thirty Days", func(s *Snapshot) bool { return s.LongestStreakDays >= 30 }},
	{"hour_ten", "Ten Hours In", func(s *Snapshot) bool { return s.TotalTimeMinutes >= 600 }},
	{"level_ten", "Double Digits", func(s *Snapshot) bool { return s.Level >= 10 }},
	{"psalms_done", "Sefer Tehilim", func(s *Snapshot) bool { return systemComplete(s, "psalms") }},
	{"talmud_century", "One Hundred Dapim", func(s *Snapshot) bool { return systemCompleted(s, "talmud") >= 100 }},
}

// Unlocked evaluates the catalog against the snapshot.
func Unlocked(s *Snapshot) []Achievement {
	var out []Achievement
	for _, a := range catalog {
		if a.check(s) {
			out = append(out, Achievement{ID: a.id, Title: a.title})
		}
	}
	return out
}

func systemCompleted(s *Snapshot, system string) int {
	for _, ss := range s.Systems {
		if string(ss.System) == system {
			return ss.Completed
		}
	}
	return 0
}

func systemComplete(s *Snapshot, system string) bool {
	for _, ss := range s.Systems {
		if string(ss.System) == system {
			return ss.Remaining == 0 && ss.Completed > 0
		}
	}
	return false
}
