// Package tracker models reading sessions and persists progress records.
// Saves never surface errors to the reader: the shared store is best-effort
// and a device-local fallback copy is written after every attempt.
package tracker

import (
	"context"
	"math"
	"sync"
	"time"

	"mikradb/pkg/logger"
	"mikradb/pkg/models"
	"mikradb/pkg/shared"
	"mikradb/pkg/store"
)

const defaultSaveInterval = 3 * time.Second

// Tracker owns the active sessions, at most one per identity.
type Tracker struct {
	shared       *shared.Client // nil disables remote persistence
	saveInterval time.Duration
	loc          *time.Location
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// New builds a tracker. loc fixes the calendar-day boundary used for streak
// bookkeeping; nil means UTC.
func New(sh *shared.Client, saveInterval time.Duration, loc *time.Location) *Tracker {
	if saveInterval <= 0 {
		saveInterval = defaultSaveInterval
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		shared:       sh,
		saveInterval: saveInterval,
		loc:          loc,
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
}

// Start opens a session for identity on the given text, replacing any
// session the identity already had, and persists the initial position
// (section start, unit 1, sub-unit 0).
func (t *Tracker) Start(ctx context.Context, identity, textType, textID string, section int) *Session {
	now := t.now()
	s := newSession(identity, textType, textID, section, now)

	t.mu.Lock()
	if old, ok := t.sessions[identity]; ok {
		close(old.stop)
	}
	t.sessions[identity] = s
	t.mu.Unlock()

	t.save(ctx, s, saveOpts{initial: true})
	go t.autosave(s)
	logger.Info("session_started", "session", s.ID, "identity", identity, "text", textID, "section", section)
	return s
}

// autosave persists the session snapshot on a fixed interval until the
// session ends.
func (t *Tracker) autosave(s *Session) {
	defer close(s.done)
	ticker := time.NewTicker(t.saveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), t.saveInterval)
			t.save(ctx, s, saveOpts{})
			cancel()
		}
	}
}

// Update records a new position and word advance for the identity's active
// session. It reports false when no session is active.
func (t *Tracker) Update(identity string, section, unit, subUnit, wordsAdded int) bool {
	t.mu.Lock()
	s, ok := t.sessions[identity]
	t.mu.Unlock()
	if !ok {
		return false
	}
	s.setPosition(section, unit, subUnit)
	s.addWords(wordsAdded)
	return true
}

// Complete marks a section finished: the final record is persisted with
// completed=true and unit zeroed, and sections_completed is incremented
// exactly once per section (idempotent completion — re-completing an
// already-completed section never double-counts). Any active session the
// identity holds on this text is discarded, returning it to idle.
func (t *Tracker) Complete(ctx context.Context, identity, textType, textID string, section, totalUnits int) {
	t.mu.Lock()
	s, ok := t.sessions[identity]
	if ok && s.TextType == textType && s.TextID == textID {
		delete(t.sessions, identity)
	} else {
		ok = false
	}
	t.mu.Unlock()

	if ok {
		close(s.stop)
		<-s.done
	} else {
		// no live session (already completed once, or a different text is
		// open); synthesize one so the upsert path is identical
		now := t.now()
		s = newSession(identity, textType, textID, section, now)
	}
	s.setPosition(section, 0, 0)
	t.save(ctx, s, saveOpts{completed: true, totalUnits: totalUnits})
	logger.Info("section_completed", "session", s.ID, "identity", identity, "text", textID)
}

// Stop abandons the identity's active session without a completion snapshot;
// the last periodic save stands.
func (t *Tracker) Stop(identity string) {
	t.mu.Lock()
	s, ok := t.sessions[identity]
	if ok {
		delete(t.sessions, identity)
	}
	t.mu.Unlock()
	if ok {
		close(s.stop)
	}
}

type saveOpts struct {
	initial    bool
	completed  bool
	totalUnits int
}

// save performs the read-modify-write upsert described in the progress
// contract. Failures are logged and swallowed; the local fallback copy is
// written after every attempt regardless of the primary store's outcome.
func (t *Tracker) save(ctx context.Context, s *Session, opts saveOpts) {
	now := t.now()
	snap := s.snapshot(now)

	var prev *models.ProgressRecord
	readFailed := false
	if t.shared != nil {
		var err error
		prev, err = t.shared.GetProgress(ctx, s.Identity, s.TextType, s.TextID)
		if err != nil {
			// unavailable is not absence: merging against an empty record
			// would let the upsert rewind cumulative counters, so the remote
			// write is skipped until the store answers again
			logger.Warn("progress_read_failed", "identity", s.Identity, "text", s.TextID, "error", err)
			readFailed = true
		}
	}
	rec := t.merge(prev, s, snap, opts, now)

	if t.shared != nil && !readFailed {
		if err := t.shared.UpsertProgress(ctx, rec); err != nil {
			logger.Warn("progress_save_failed", "identity", s.Identity, "text", s.TextID, "error", err)
		}
	}
	// local fallback copy, independent of the primary store's success
	lp := models.LocalPosition{
		TextID:  s.TextID,
		Section: rec.Section,
		Unit:    rec.Unit,
		SubUnit: rec.SubUnit,
		TS:      now.UnixNano(),
	}
	if err := store.SaveLocalPosition(s.Identity, s.TextType, lp); err != nil {
		logger.Warn("local_position_save_failed", "identity", s.Identity, "error", err)
	}
}

// merge folds the current snapshot into the previous record under the
// progress-write semantics: units_read monotone except on a fresh completion
// snapshot, idempotent completion counting, and speed/time never overwritten
// with a degenerate zero sample.
func (t *Tracker) merge(prev *models.ProgressRecord, s *Session, snap snapshot, opts saveOpts, now time.Time) models.ProgressRecord {
	if prev == nil {
		prev = &models.ProgressRecord{
			Identity: s.Identity,
			TextType: s.TextType,
			TextID:   s.TextID,
		}
	}
	rec := *prev
	rec.Identity = s.Identity
	rec.TextType = s.TextType
	rec.TextID = s.TextID
	rec.Section = snap.section
	rec.SubUnit = snap.subUnit

	if opts.completed {
		rec.Completed = true
		rec.Unit = 0
		rec.UnitsRead = opts.totalUnits
		if !prev.Completed {
			rec.SectionsCompleted = prev.SectionsCompleted + 1
		}
	} else {
		rec.Completed = false
		rec.Unit = snap.unit
		if snap.unit > prev.UnitsRead {
			rec.UnitsRead = snap.unit
		}
	}

	if wpm := readingSpeed(snap.wordCount, now.Sub(snap.startedAt)); wpm > 0 {
		rec.ReadingSpeedWPM = wpm
	}
	if secs := int(snap.sinceSave.Seconds()); secs > 0 {
		// max-of-old-and-new guard keeps the cumulative counter from
		// regressing when saves race
		if total := prev.TotalTimeSeconds + secs; total > rec.TotalTimeSeconds {
			rec.TotalTimeSeconds = total
		}
	}
	if opts.initial {
		rec.TotalSessions = prev.TotalSessions + 1
	}

	rec.CurrentStreakDays, rec.LongestStreakDays = t.rollStreak(prev, now)
	rec.LastReadAt = now.UnixNano()
	rec.UpdatedTS = now.UnixNano()
	return rec
}

// readingSpeed computes rounded words-per-minute, or 0 for a degenerate
// sample (no elapsed time or no words), in which case the previous stored
// speed is retained by the caller.
func readingSpeed(words int, elapsed time.Duration) int {
	mins := elapsed.Minutes()
	if mins <= 0 || words <= 0 {
		return 0
	}
	return int(math.Round(float64(words) / mins))
}

// rollStreak advances the record's streak counters for activity at now:
// same calendar day keeps the streak, the following day extends it, and a
// gap restarts at one.
func (t *Tracker) rollStreak(prev *models.ProgressRecord, now time.Time) (current, longest int) {
	current = prev.CurrentStreakDays
	longest = prev.LongestStreakDays
	today := now.In(t.loc)
	switch {
	case prev.LastReadAt == 0:
		current = 1
	default:
		last := time.Unix(0, prev.LastReadAt).In(t.loc)
		days := daysBetween(last, today)
		switch {
		case days == 0:
			if current == 0 {
				current = 1
			}
		case days == 1:
			current++
		default:
			current = 1
		}
	}
	if current > longest {
		longest = current
	}
	return current, longest
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, a.Location())
	end := time.Date(by, bm, bd, 0, 0, 0, 0, b.Location())
	return int(end.Sub(start) / (24 * time.Hour))
}

// LastPosition returns the most recent position for the identity within a
// text system, falling back to the device-local copy when the shared store
// is unreachable or has no record. Returns (nil, "") when nothing is known.
func (t *Tracker) LastPosition(ctx context.Context, identity, textType string) (*models.Position, string) {
	if t.shared != nil {
		recs, err := t.shared.ListProgress(ctx, identity, shared.ListFilter{TextType: textType})
		if err == nil && len(recs) > 0 {
			best := recs[0]
			for _, r := range recs[1:] {
				if r.LastReadAt > best.LastReadAt {
					best = r
				}
			}
			return &models.Position{Section: best.Section, Unit: best.Unit, SubUnit: best.SubUnit}, best.TextID
		}
		if err != nil {
			logger.Warn("last_position_read_failed", "identity", identity, "error", err)
		}
	}
	lp, err := store.GetLocalPosition(identity, textType)
	if err != nil || lp == nil {
		return nil, ""
	}
	return &models.Position{Section: lp.Section, Unit: lp.Unit, SubUnit: lp.SubUnit}, lp.TextID
}
