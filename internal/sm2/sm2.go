// Package sm2 implements the SM-2 derived review scheduler.
//
// Schedule is a pure function of the prior state, a quality rating and the
// review time. It holds no state and is safe for concurrent use.
package sm2

import (
	"math"
	"time"

	"github.com/conorfennell/knolrev/internal/errs"
)

const (
	// DefaultEaseFactor is the ease factor of a card that was never reviewed.
	DefaultEaseFactor = 2.5
	// MinEaseFactor is the floor applied after every update.
	MinEaseFactor = 1.3
	// PassThreshold is the lowest quality rating counted as a pass.
	PassThreshold = 3
	// MinQuality and MaxQuality bound the quality rating.
	MinQuality = 0
	MaxQuality = 5

	firstInterval  = 1
	secondInterval = 6
)

// State is the scheduling state a review starts from.
type State struct {
	Interval        int
	EaseFactor      float64
	RepetitionCount int
}

// Result is the scheduling state a review produces.
type Result struct {
	Interval        int
	EaseFactor      float64
	RepetitionCount int
	NextReviewAt    time.Time
}

// NewState returns the state of a card before its first review.
func NewState() State {
	return State{
		Interval:        firstInterval,
		EaseFactor:      DefaultEaseFactor,
		RepetitionCount: 0,
	}
}

// Passed reports whether quality counts as a successful recall.
func Passed(quality int) bool {
	return quality >= PassThreshold
}

// ValidQuality reports whether quality is inside [MinQuality, MaxQuality].
func ValidQuality(quality int) bool {
	return quality >= MinQuality && quality <= MaxQuality
}

// QuickAnswer maps a binary correct/wrong button to a quality rating.
// Correct maps to 4 so that repeated quick passes leave the ease factor unchanged.
func QuickAnswer(correct bool) int {
	if correct {
		return 4
	}
	return 0
}

// Schedule applies one review of the given quality to s at time now.
// An out-of-range quality is a caller bug and is rejected, never clamped.
func Schedule(s State, quality int, now time.Time) (Result, error) {
	if !ValidQuality(quality) {
		return Result{}, errs.Validation("quality rating %d outside [%d,%d]", quality, MinQuality, MaxQuality)
	}

	ease := nextEaseFactor(s.EaseFactor, quality)

	var reps, interval int
	if !Passed(quality) {
		reps = 0
		interval = firstInterval
	} else {
		reps = s.RepetitionCount + 1
		switch reps {
		case 1:
			interval = firstInterval
		case 2:
			interval = secondInterval
		default:
			interval = int(math.Round(float64(s.Interval) * ease))
			if interval < s.Interval+1 {
				interval = s.Interval + 1
			}
		}
	}

	return Result{
		Interval:        interval,
		EaseFactor:      ease,
		RepetitionCount: reps,
		NextReviewAt:    now.AddDate(0, 0, interval),
	}, nil
}

// nextEaseFactor applies the SM-2 ease delta and the floor.
// EF' = EF + (0.1 - (5-q) * (0.08 + (5-q) * 0.02))
func nextEaseFactor(ease float64, quality int) float64 {
	d := float64(MaxQuality - quality)
	ease += 0.1 - d*(0.08+d*0.02)
	return math.Max(MinEaseFactor, ease)
}
