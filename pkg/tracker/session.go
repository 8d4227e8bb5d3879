package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the transient in-memory state of one continuous reading
// episode. Sessions are explicit objects owned by the tracker and scoped to
// an identity; there is no package-level current session.
type Session struct {
	ID       string
	Identity string
	TextType string
	TextID   string

	mu          sync.Mutex
	section     int
	unit        int
	subUnit     int
	wordCount   int
	startedAt   time.Time
	lastSavedAt time.Time

	stop chan struct{}
	done chan struct{}
}

func newSession(identity, textType, textID string, section int, now time.Time) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Identity:    identity,
		TextType:    textType,
		TextID:      textID,
		section:     section,
		unit:        1,
		subUnit:     0,
		startedAt:   now,
		lastSavedAt: now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// snapshot is the consistent view of a session taken at save time.
type snapshot struct {
	section   int
	unit      int
	subUnit   int
	wordCount int
	startedAt time.Time
	sinceSave time.Duration
}

func (s *Session) snapshot(now time.Time) snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		section:   s.section,
		unit:      s.unit,
		subUnit:   s.subUnit,
		wordCount: s.wordCount,
		startedAt: s.startedAt,
		sinceSave: now.Sub(s.lastSavedAt),
	}
	s.lastSavedAt = now
	return snap
}

// setPosition records the reader's current location.
func (s *Session) setPosition(section, unit, subUnit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.section = section
	s.unit = unit
	s.subUnit = subUnit
}

// addWords accumulates the word counter; it is never reset between periodic
// saves, only by a new session.
func (s *Session) addWords(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.wordCount += n
	}
}
