package domain

import (
	"math"
	"time"
)

// DefaultMasteryThreshold is the mastery percent at which a card counts as mastered.
const DefaultMasteryThreshold = 80

// Scheduling is the part of a card owned by the scheduler.
type Scheduling struct {
	Interval        int       `json:"interval"`
	EaseFactor      float64   `json:"ease_factor"`
	RepetitionCount int       `json:"repetition_count"`
	NextReviewAt    time.Time `json:"next_review_at"`
}

// CardStats are the per-card review aggregates.
type CardStats struct {
	ReviewCount    int `json:"review_count"`
	CorrectCount   int `json:"correct_count"`
	MasteryPercent int `json:"mastery_percent"`
}

// Record returns the stats after one more review.
func (s CardStats) Record(wasCorrect bool) CardStats {
	s.ReviewCount++
	if wasCorrect {
		s.CorrectCount++
	}
	s.MasteryPercent = MasteryPercent(s.CorrectCount, s.ReviewCount)
	return s
}

// MasteryPercent is round(100 * correct / reviews), or 0 with no reviews.
func MasteryPercent(correct, reviews int) int {
	if reviews <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(reviews)))
}

// Flashcard is a question/answer pair owned by one student.
type Flashcard struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id,omitempty"`
	OutcomeID string `json:"outcome_id,omitempty"`
	Front     string `json:"front"`
	Back      string `json:"back"`

	Scheduling Scheduling `json:"scheduling"`
	Stats      CardStats  `json:"stats"`

	// Version increments on every write and guards concurrent reviews.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFlashcard returns a card with first-review scheduling, due at now.
func NewFlashcard(id, studentID, subjectID, front, back string, now time.Time) Flashcard {
	return Flashcard{
		ID:        id,
		StudentID: studentID,
		SubjectID: subjectID,
		Front:     front,
		Back:      back,
		Scheduling: Scheduling{
			Interval:        1,
			EaseFactor:      2.5,
			RepetitionCount: 0,
			NextReviewAt:    now,
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reviewed reports whether the card has at least one review.
func (c Flashcard) Reviewed() bool {
	return c.Stats.ReviewCount > 0
}

// Due reports whether the card is due at now.
func (c Flashcard) Due(now time.Time) bool {
	return !c.Scheduling.NextReviewAt.After(now)
}

// Mastered reports whether the card has reached threshold mastery.
// Unreviewed cards are never mastered.
func (c Flashcard) Mastered(threshold int) bool {
	return c.Reviewed() && c.Stats.MasteryPercent >= threshold
}

// DueQuery selects due cards for one student.
type DueQuery struct {
	StudentID string
	SubjectID string // empty means all subjects
	Now       time.Time
	Limit     int // <= 0 means no limit
}

// CardFilter selects a student's cards.
type CardFilter struct {
	StudentID string
	SubjectID string // empty means all subjects
}
