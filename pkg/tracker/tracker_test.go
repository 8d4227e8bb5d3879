package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mikradb/pkg/logger"
	"mikradb/pkg/models"
	"mikradb/pkg/shared"
	"mikradb/pkg/store"
)

func init() { logger.Init() }

func openTestStore(t *testing.T) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })
}

// progressServer is an in-memory stand-in for the shared progress table.
type progressServer struct {
	mu        sync.Mutex
	records   map[string]models.ProgressRecord
	failReads bool
	srv       *httptest.Server
}

func newProgressServer(t *testing.T) *progressServer {
	t.Helper()
	ps := &progressServer{records: map[string]models.ProgressRecord{}}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/rest/v1/progress/")
		ps.mu.Lock()
		defer ps.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			if ps.failReads {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			rec, ok := ps.records[key]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(rec)
		case http.MethodPut:
			var rec models.ProgressRecord
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			ps.records[key] = rec
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *progressServer) get(identity, textType, textID string) (models.ProgressRecord, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	rec, ok := ps.records[identity+"/"+textType+"/"+textID]
	return rec, ok
}

func (ps *progressServer) setFailReads(v bool) {
	ps.mu.Lock()
	ps.failReads = v
	ps.mu.Unlock()
}

func newTestTracker(ps *progressServer) *Tracker {
	var sh *shared.Client
	if ps != nil {
		sh = shared.New(ps.srv.URL, "k", time.Second)
	}
	// long save interval so the autosave ticker stays out of the way
	return New(sh, time.Hour, time.UTC)
}

func TestCompleteIsIdempotent(t *testing.T) {
	openTestStore(t)
	ps := newProgressServer(t)
	tr := newTestTracker(ps)
	ctx := context.Background()

	tr.Start(ctx, "reader-1", "psalms", "Psalms 23", 23)
	tr.Complete(ctx, "reader-1", "psalms", "Psalms 23", 23, 6)

	rec, ok := ps.get("reader-1", "psalms", "Psalms 23")
	require.True(t, ok)
	require.True(t, rec.Completed)
	require.Equal(t, 1, rec.SectionsCompleted)
	require.Equal(t, 6, rec.UnitsRead)
	require.Equal(t, 0, rec.Unit)

	// completing again without a session must not double-count
	tr.Complete(ctx, "reader-1", "psalms", "Psalms 23", 23, 6)
	rec, _ = ps.get("reader-1", "psalms", "Psalms 23")
	require.Equal(t, 1, rec.SectionsCompleted)
	require.True(t, rec.Completed)
}

func TestReadOutageSkipsRemoteUpsert(t *testing.T) {
	openTestStore(t)
	ps := newProgressServer(t)
	tr := newTestTracker(ps)
	ctx := context.Background()

	// an established record with real cumulative history
	ps.records["reader-1/psalms/Psalms 23"] = models.ProgressRecord{
		Identity: "reader-1", TextType: "psalms", TextID: "Psalms 23",
		Completed: true, SectionsCompleted: 5, UnitsRead: 120,
	}

	// store answers PUTs but reads fail: a merge against the empty record
	// would rewind the counters, so no remote write may happen
	ps.setFailReads(true)
	tr.Complete(ctx, "reader-1", "psalms", "Psalms 23", 23, 6)

	rec, ok := ps.get("reader-1", "psalms", "Psalms 23")
	require.True(t, ok)
	require.Equal(t, 5, rec.SectionsCompleted)
	require.Equal(t, 120, rec.UnitsRead)

	// the device-local fallback copy is still written during the outage
	lp, err := store.GetLocalPosition("reader-1", "psalms")
	require.NoError(t, err)
	require.NotNil(t, lp)
	require.Equal(t, 23, lp.Section)

	// once reads recover the completion merges against the real record and
	// stays idempotent
	ps.setFailReads(false)
	tr.Complete(ctx, "reader-1", "psalms", "Psalms 23", 23, 6)
	rec, _ = ps.get("reader-1", "psalms", "Psalms 23")
	require.Equal(t, 5, rec.SectionsCompleted)
	require.True(t, rec.Completed)
}

func TestUnitsReadIsMonotone(t *testing.T) {
	openTestStore(t)
	ps := newProgressServer(t)
	tr := newTestTracker(ps)
	ctx := context.Background()

	s := tr.Start(ctx, "reader-1", "psalms", "Psalms 23", 23)
	require.True(t, tr.Update("reader-1", 23, 5, 0, 100))
	tr.save(ctx, s, saveOpts{})

	rec, _ := ps.get("reader-1", "psalms", "Psalms 23")
	require.Equal(t, 5, rec.UnitsRead)

	// scrolling back up must not shrink the cumulative counter
	require.True(t, tr.Update("reader-1", 23, 2, 0, 0))
	tr.save(ctx, s, saveOpts{})
	rec, _ = ps.get("reader-1", "psalms", "Psalms 23")
	require.Equal(t, 5, rec.UnitsRead)
	require.Equal(t, 2, rec.Unit)
}

func TestDegenerateSpeedSampleKeepsPreviousWPM(t *testing.T) {
	openTestStore(t)
	ps := newProgressServer(t)
	tr := newTestTracker(ps)
	ctx := context.Background()

	s := tr.Start(ctx, "reader-1", "psalms", "Psalms 23", 23)

	// a real sample first: 300 words over 2 minutes
	base := time.Now()
	s.mu.Lock()
	s.startedAt = base.Add(-2 * time.Minute)
	s.wordCount = 300
	s.mu.Unlock()
	tr.save(ctx, s, saveOpts{})
	rec, _ := ps.get("reader-1", "psalms", "Psalms 23")
	require.Equal(t, 150, rec.ReadingSpeedWPM)

	// degenerate sample: zero words must not zero the stored speed
	s.mu.Lock()
	s.wordCount = 0
	s.mu.Unlock()
	tr.save(ctx, s, saveOpts{})
	rec, _ = ps.get("reader-1", "psalms", "Psalms 23")
	require.Equal(t, 150, rec.ReadingSpeedWPM)
}

func TestSaveWritesLocalFallbackWithoutShared(t *testing.T) {
	openTestStore(t)
	tr := newTestTracker(nil)
	ctx := context.Background()

	tr.Start(ctx, "reader-1", "psalms", "Psalms 23", 23)
	tr.Complete(ctx, "reader-1", "psalms", "Psalms 23", 23, 6)

	lp, err := store.GetLocalPosition("reader-1", "psalms")
	require.NoError(t, err)
	require.NotNil(t, lp)
	require.Equal(t, "Psalms 23", lp.TextID)
	require.Equal(t, 23, lp.Section)

	pos, textID := tr.LastPosition(ctx, "reader-1", "psalms")
	require.NotNil(t, pos)
	require.Equal(t, "Psalms 23", textID)
	require.Equal(t, 23, pos.Section)
}

func TestLastPositionPrefersSharedStore(t *testing.T) {
	openTestStore(t)
	ps := newProgressServer(t)
	tr := newTestTracker(ps)
	ctx := context.Background()

	tr.Start(ctx, "reader-1", "psalms", "Psalms 10", 10)
	tr.Stop("reader-1")
	tr.Start(ctx, "reader-1", "psalms", "Psalms 23", 23)
	tr.Stop("reader-1")

	pos, textID := tr.LastPosition(ctx, "reader-1", "psalms")
	require.NotNil(t, pos)
	require.Equal(t, "Psalms 23", textID)
}

func TestRollStreak(t *testing.T) {
	tr := New(nil, time.Hour, time.UTC)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// first activity ever
	cur, longest := tr.rollStreak(&models.ProgressRecord{}, now)
	require.Equal(t, 1, cur)
	require.Equal(t, 1, longest)

	// same day keeps the streak
	prev := &models.ProgressRecord{CurrentStreakDays: 3, LongestStreakDays: 5, LastReadAt: now.Add(-2 * time.Hour).UnixNano()}
	cur, longest = tr.rollStreak(prev, now)
	require.Equal(t, 3, cur)
	require.Equal(t, 5, longest)

	// next day extends it
	prev.LastReadAt = now.AddDate(0, 0, -1).UnixNano()
	cur, longest = tr.rollStreak(prev, now)
	require.Equal(t, 4, cur)
	require.Equal(t, 5, longest)

	// a gap resets to one
	prev.LastReadAt = now.AddDate(0, 0, -3).UnixNano()
	cur, longest = tr.rollStreak(prev, now)
	require.Equal(t, 1, cur)
	require.Equal(t, 5, longest)

	// extending past the record updates longest
	prev = &models.ProgressRecord{CurrentStreakDays: 5, LongestStreakDays: 5, LastReadAt: now.AddDate(0, 0, -1).UnixNano()}
	cur, longest = tr.rollStreak(prev, now)
	require.Equal(t, 6, cur)
	require.Equal(t, 6, longest)
}

func TestTotalTimeNeverRegresses(t *testing.T) {
	tr := New(nil, time.Hour, time.UTC)
	now := time.Now()
	s := newSession("reader-1", "psalms", "Psalms 23", 23, now.Add(-10*time.Second))

	prev := &models.ProgressRecord{
		Identity: "reader-1", TextType: "psalms", TextID: "Psalms 23",
		TotalTimeSeconds: 500,
	}
	snap := s.snapshot(now)
	rec := tr.merge(prev, s, snap, saveOpts{}, now)
	require.GreaterOrEqual(t, rec.TotalTimeSeconds, 500)
	require.Equal(t, 510, rec.TotalTimeSeconds)
}

func TestStartReplacesOpenSession(t *testing.T) {
	openTestStore(t)
	ps := newProgressServer(t)
	tr := newTestTracker(ps)
	ctx := context.Background()

	first := tr.Start(ctx, "reader-1", "psalms", "Psalms 1", 1)
	second := tr.Start(ctx, "reader-1", "psalms", "Psalms 2", 2)
	require.NotEqual(t, first.ID, second.ID)

	// the replaced session is dead; updates land in the new one
	require.True(t, tr.Update("reader-1", 2, 3, 0, 10))
	require.Equal(t, second, tr.sessions["reader-1"])

	// both initial saves counted a session each
	rec, _ := ps.get("reader-1", "psalms", "Psalms 2")
	require.Equal(t, 1, rec.TotalSessions)
}
