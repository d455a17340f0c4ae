package domain

import "time"

// ReviewEvent is the immutable record of one review outcome.
type ReviewEvent struct {
	ID               string    `json:"id"`
	CardID           string    `json:"card_id"`
	StudentID        string    `json:"student_id"`
	SessionID        string    `json:"session_id,omitempty"` // empty for a review outside a session
	ReviewedAt       time.Time `json:"reviewed_at"`
	WasCorrect       bool      `json:"was_correct"`
	QualityRating    int       `json:"quality_rating"`
	IntervalBefore   int       `json:"interval_before"`
	IntervalAfter    int       `json:"interval_after"`
	EaseFactorBefore float64   `json:"ease_factor_before"`
	EaseFactorAfter  float64   `json:"ease_factor_after"`
}

// ReviewWrite is everything one answer persists, applied atomically:
// the card's new scheduling and stats, the review event, and optionally
// the session progress.
type ReviewWrite struct {
	StudentID       string
	CardID          string
	ExpectedVersion int64
	Scheduling      Scheduling
	Stats           CardStats
	Event           ReviewEvent
	Session         *SessionUpdate
}

// SessionUpdate is the session side of a ReviewWrite.
type SessionUpdate struct {
	// Session is the state after the answer.
	Session         RevisionSession
	ExpectedVersion int64
	CardID          string
}
