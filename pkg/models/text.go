package models

import "time"

// CacheFormatVersion is bumped whenever the stored TextEntry layout or the
// cleaning rules change; entries written under another version are evicted
// on lookup and by the housekeeping sweep.
const CacheFormatVersion = 2

// TextExpiry is how long a cached entry stays valid in the durable tiers.
const TextExpiry = 30 * 24 * time.Hour

// TextEntry is one immutable cached snapshot of a resolved reference.
// Every tier stores its own copy; entries are never mutated in place.
type TextEntry struct {
	Ref       string    `json:"ref"`
	Units     []string  `json:"units"`
	FetchedAt time.Time `json:"fetched_at"`
	Version   int       `json:"version"`
}

// Valid reports whether the entry has a usable shape, matches the current
// cache format and is still within the expiry window.
func (e *TextEntry) Valid(now time.Time) bool {
	if e == nil || e.Ref == "" || len(e.Units) == 0 {
		return false
	}
	if e.Version != CacheFormatVersion {
		return false
	}
	return now.Sub(e.FetchedAt) <= TextExpiry
}
