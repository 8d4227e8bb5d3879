package models

// Position is a reader's location inside one text: the section (chapter,
// daf), the unit inside it (verse, line) and the sub-unit (word).
type Position struct {
	Section int `json:"section"`
	Unit    int `json:"unit"`
	SubUnit int `json:"sub_unit"`
}

// ProgressRecord is the durable row tracking one reader's position and
// cumulative metrics for one text. Exactly one record exists per
// (identity, text_type, text_id) tuple; saves are full-record upserts.
type ProgressRecord struct {
	Identity string `json:"identity"`
	TextType string `json:"text_type"`
	TextID   string `json:"text_id"`

	Section   int  `json:"section"`
	Unit      int  `json:"unit"` // 0 once the section is marked complete
	SubUnit   int  `json:"sub_unit"`
	Completed bool `json:"completed"`

	UnitsRead         int `json:"units_read"`
	SectionsCompleted int `json:"sections_completed"`
	ReadingSpeedWPM   int `json:"reading_speed_wpm"`
	TotalTimeSeconds  int `json:"total_time_seconds"`
	TotalSessions     int `json:"total_sessions"`

	CurrentStreakDays int `json:"current_streak_days"`
	LongestStreakDays int `json:"longest_streak_days"`

	// LastReadAt / UpdatedTS are unix nanoseconds, matching the store's
	// key ordering convention.
	LastReadAt int64 `json:"last_read_at"`
	UpdatedTS  int64 `json:"updated_ts"`
}

// LocalPosition is the device-local fallback copy written after every save
// attempt so the last position survives a dead shared store.
type LocalPosition struct {
	TextID  string `json:"text_id"`
	Section int    `json:"section"`
	Unit    int    `json:"unit"`
	SubUnit int    `json:"sub_unit"`
	TS      int64  `json:"ts"`
}
