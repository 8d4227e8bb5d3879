package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mikradb/pkg/models"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func activityOn(daysAgo ...int) []time.Time {
	var out []time.Time
	for _, d := range daysAgo {
		out = append(out, testNow.AddDate(0, 0, -d))
	}
	return out
}

func TestCurrentStreakStopsAtFirstGap(t *testing.T) {
	// activity today, yesterday, two days ago, then a gap
	got := CurrentStreak(activityOn(0, 1, 2, 4), testNow, time.UTC)
	require.Equal(t, 3, got)
}

func TestCurrentStreakZeroWithoutToday(t *testing.T) {
	got := CurrentStreak(activityOn(1, 2, 3), testNow, time.UTC)
	require.Equal(t, 0, got)
}

func TestCurrentStreakIgnoresOrderAndDuplicates(t *testing.T) {
	a := activityOn(2, 0, 1, 1, 0)
	require.Equal(t, 3, CurrentStreak(a, testNow, time.UTC))
}

func TestCurrentStreakRespectsTimezone(t *testing.T) {
	// 01:00 UTC on Sep 1 is still Aug 31 in New York
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2026, 9, 1, 1, 0, 0, 0, time.UTC)
	activity := []time.Time{now.Add(-30 * time.Minute)}
	require.Equal(t, 1, CurrentStreak(activity, now, time.UTC))
	require.Equal(t, 1, CurrentStreak(activity, now, ny))
}

func TestLongestStreakFindsInteriorRun(t *testing.T) {
	got := LongestStreak(activityOn(0, 5, 6, 7, 8, 20), time.UTC)
	require.Equal(t, 4, got)
}

func TestExperiencePointsAndLevels(t *testing.T) {
	require.Equal(t, 0, ExperiencePoints(0, 0, 0))
	require.Equal(t, 10, ExperiencePoints(1, 0, 0))
	require.Equal(t, 50, ExperiencePoints(0, 1, 0))
	require.Equal(t, 1, ExperiencePoints(0, 0, 1))
	require.Equal(t, 161, ExperiencePoints(10, 1, 11))

	require.Equal(t, 1, LevelForXP(0))
	require.Equal(t, 1, LevelForXP(99))
	require.Equal(t, 2, LevelForXP(100))
	require.Equal(t, 3, LevelForXP(400))
	require.Equal(t, 11, LevelForXP(10000))
}

func TestRankForLevel(t *testing.T) {
	require.Equal(t, "novice", RankForLevel(1))
	require.Equal(t, "apprentice", RankForLevel(5))
	require.Equal(t, "scholar", RankForLevel(10))
	require.Equal(t, "sage", RankForLevel(20))
	require.Equal(t, "luminary", RankForLevel(35))
	require.Equal(t, "luminary", RankForLevel(99))
}

func TestComputeSnapshotZeroRecords(t *testing.T) {
	snap := ComputeSnapshot("reader-1", nil, testNow, time.UTC)
	require.NotNil(t, snap)
	require.Equal(t, "reader-1", snap.Identity)
	require.Equal(t, 0, snap.XP)
	require.Equal(t, 1, snap.Level)
	require.Equal(t, "novice", snap.Rank)
	require.Equal(t, 0, snap.CurrentStreakDays)
	require.Len(t, snap.Systems, len(models.Systems))
	require.Empty(t, snap.Achievements)
}

func TestComputeSystemCompletionCapped(t *testing.T) {
	recs := []models.ProgressRecord{
		{TextType: "liturgy", TextID: "a", SectionsCompleted: 40, Section: 1},
		{TextType: "liturgy", TextID: "b", SectionsCompleted: 10, Section: 2},
	}
	ss := ComputeSystem(recs, models.SystemLiturgy, testNow, time.UTC)
	require.Equal(t, 45, ss.Completed)
	require.Equal(t, 0, ss.Remaining)
	require.Equal(t, 100, ss.CompletionPercentage)
}

func TestComputeSystemIgnoresOtherSystems(t *testing.T) {
	recs := []models.ProgressRecord{
		{TextType: "psalms", TextID: "a", SectionsCompleted: 3, TotalTimeSeconds: 600, Section: 23},
		{TextType: "talmud", TextID: "b", SectionsCompleted: 7, TotalTimeSeconds: 1200, Section: 2},
	}
	ss := ComputeSystem(recs, models.SystemPsalms, testNow, time.UTC)
	require.Equal(t, 3, ss.Completed)
	require.Equal(t, 10, ss.TotalTimeMinutes)
	require.Equal(t, 147, ss.Remaining)
	require.Equal(t, 2, ss.CompletionPercentage)
}

func TestComputeSystemTimeFloorsOnceOverSummedSeconds(t *testing.T) {
	// 30s + 40s is a minute of reading; flooring per record would lose it
	recs := []models.ProgressRecord{
		{TextType: "liturgy", TextID: "a", TotalTimeSeconds: 30},
		{TextType: "liturgy", TextID: "b", TotalTimeSeconds: 40},
	}
	ss := ComputeSystem(recs, models.SystemLiturgy, testNow, time.UTC)
	require.Equal(t, 1, ss.TotalTimeMinutes)
}

func TestComputeSystemMostVisited(t *testing.T) {
	recs := []models.ProgressRecord{
		{TextType: "psalms", TextID: "a", Section: 23},
		{TextType: "psalms", TextID: "b", Section: 23},
		{TextType: "psalms", TextID: "c", Section: 1},
		{TextType: "psalms", TextID: "d", Section: 90},
		{TextType: "psalms", TextID: "e", Section: 1},
		{TextType: "psalms", TextID: "f", Section: 119},
	}
	ss := ComputeSystem(recs, models.SystemPsalms, testNow, time.UTC)
	require.Len(t, ss.MostVisited, 3)
	require.Equal(t, SectionCount{Section: 1, Count: 2}, ss.MostVisited[0])
	require.Equal(t, SectionCount{Section: 23, Count: 2}, ss.MostVisited[1])
	require.Equal(t, SectionCount{Section: 90, Count: 1}, ss.MostVisited[2])
}

func TestSnapshotOverallStreakIsMaxOfSystems(t *testing.T) {
	recs := []models.ProgressRecord{
		{TextType: "psalms", TextID: "a", UpdatedTS: testNow.UnixNano()},
		{TextType: "talmud", TextID: "b", UpdatedTS: testNow.UnixNano()},
		{TextType: "talmud", TextID: "c", UpdatedTS: testNow.AddDate(0, 0, -1).UnixNano()},
	}
	snap := ComputeSnapshot("reader-1", recs, testNow, time.UTC)
	require.Equal(t, 2, snap.CurrentStreakDays)
}

func TestAchievementsUnlocked(t *testing.T) {
	recs := []models.ProgressRecord{
		{TextType: "psalms", TextID: "a", SectionsCompleted: 12, UnitsRead: 80, TotalTimeSeconds: 36000},
	}
	snap := ComputeSnapshot("reader-1", recs, testNow, time.UTC)
	ids := map[string]bool{}
	for _, a := range snap.Achievements {
		ids[a.ID] = true
	}
	require.True(t, ids["first_section"])
	require.True(t, ids["ten_sections"])
	require.True(t, ids["hour_ten"])
	require.False(t, ids["streak_week"])
	require.False(t, ids["psalms_done"])
}

func TestLeaderboardTopNAndTies(t *testing.T) {
	users := []*Snapshot{
		{Identity: "c", Level: 4},
		{Identity: "a", Level: 9},
		{Identity: "b", Level: 4},
		{Identity: "d", Level: 7},
	}
	lb := Leaderboard(users, MetricLevel, 3)
	require.Len(t, lb, 3)
	require.Equal(t, "a", lb[0].Identity)
	require.Equal(t, "d", lb[1].Identity)
	// tie between b and c breaks by identity
	require.Equal(t, "b", lb[2].Identity)
}

func TestComputeAdminActiveWindow(t *testing.T) {
	users := []*Snapshot{
		{Identity: "fresh", Level: 2, LastActivity: testNow.AddDate(0, 0, -2).UnixNano()},
		{Identity: "stale", Level: 4, LastActivity: testNow.AddDate(0, 0, -30).UnixNano()},
		{Identity: "never", Level: 1},
	}
	out := ComputeAdmin(users, MetricLevel, 10, testNow)
	require.Equal(t, 3, out.TotalUsers)
	require.Equal(t, 1, out.ActiveUsers)
	require.InDelta(t, 7.0/3.0, out.AverageLevel, 0.001)
	require.Len(t, out.Leaderboard, 3)
	require.Equal(t, "stale", out.Leaderboard[0].Identity)
}
