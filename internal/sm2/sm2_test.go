package sm2

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/conorfennell/knolrev/internal/errs"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func mustSchedule(t *testing.T, s State, q int) Result {
	t.Helper()
	r, err := Schedule(s, q, t0)
	if err != nil {
		t.Fatalf("Schedule(%+v, %d): %v", s, q, err)
	}
	return r
}

func toState(r Result) State {
	return State{Interval: r.Interval, EaseFactor: r.EaseFactor, RepetitionCount: r.RepetitionCount}
}

func TestScheduleScenarios(t *testing.T) {
	// New card, three passes in a row.
	first := mustSchedule(t, NewState(), 4)
	if first.RepetitionCount != 1 || first.Interval != 1 {
		t.Fatalf("first pass: got reps=%d interval=%d, want 1/1", first.RepetitionCount, first.Interval)
	}

	second := mustSchedule(t, toState(first), 4)
	if second.RepetitionCount != 2 || second.Interval != 6 {
		t.Fatalf("second pass: got reps=%d interval=%d, want 2/6", second.RepetitionCount, second.Interval)
	}

	third := mustSchedule(t, toState(second), 5)
	if third.RepetitionCount != 3 {
		t.Errorf("third pass: got reps=%d, want 3", third.RepetitionCount)
	}
	if third.EaseFactor <= DefaultEaseFactor {
		t.Errorf("third pass: expected ease factor above %.2f, got %.4f", DefaultEaseFactor, third.EaseFactor)
	}
	want := int(math.Round(6 * third.EaseFactor))
	if third.Interval != want {
		t.Errorf("third pass: got interval %d, want %d", third.Interval, want)
	}
}

func TestScheduleFailAtFloor(t *testing.T) {
	r := mustSchedule(t, State{Interval: 10, EaseFactor: 1.3, RepetitionCount: 5}, 0)
	if r.Interval != 1 || r.RepetitionCount != 0 {
		t.Errorf("got interval=%d reps=%d, want 1/0", r.Interval, r.RepetitionCount)
	}
	if r.EaseFactor != MinEaseFactor {
		t.Errorf("got ease %.4f, want floor %.1f", r.EaseFactor, MinEaseFactor)
	}
}

func TestScheduleRejectsOutOfRangeQuality(t *testing.T) {
	for _, q := range []int{-1, 6, 42} {
		_, err := Schedule(NewState(), q, t0)
		if !errors.Is(err, errs.ErrValidation) {
			t.Errorf("quality %d: expected validation error, got %v", q, err)
		}
	}
}

func TestEaseDeltaPerQuality(t *testing.T) {
	testCases := []struct {
		quality int
		delta   float64
	}{
		{5, 0.10},
		{4, 0.00},
		{3, -0.14},
		{2, -0.32},
		{1, -0.54},
		{0, -0.80},
	}

	for _, tc := range testCases {
		got := nextEaseFactor(2.5, tc.quality) - 2.5
		if math.Abs(got-tc.delta) > 1e-9 {
			t.Errorf("quality %d: expected delta %.2f, got %.4f", tc.quality, tc.delta, got)
		}
	}
}

func TestFailAlwaysResets(t *testing.T) {
	states := []State{
		NewState(),
		{Interval: 6, EaseFactor: 2.36, RepetitionCount: 2},
		{Interval: 240, EaseFactor: 2.9, RepetitionCount: 11},
	}
	for _, s := range states {
		for q := 0; q < PassThreshold; q++ {
			r := mustSchedule(t, s, q)
			if r.Interval != 1 || r.RepetitionCount != 0 {
				t.Errorf("state %+v quality %d: got interval=%d reps=%d", s, q, r.Interval, r.RepetitionCount)
			}
		}
	}
}

func TestEaseFloorHoldsForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		s := NewState()
		for i := 0; i < 50; i++ {
			r := mustSchedule(t, s, rng.Intn(MaxQuality+1))
			if r.EaseFactor < MinEaseFactor {
				t.Fatalf("run %d step %d: ease %.4f below floor", run, i, r.EaseFactor)
			}
			s = toState(r)
		}
	}
}

func TestIntervalGrowsOnRepeatedSuccess(t *testing.T) {
	// Start at the floor, where rounding alone would not grow the interval.
	for _, start := range []State{
		{Interval: 6, EaseFactor: MinEaseFactor, RepetitionCount: 2},
		{Interval: 1, EaseFactor: MinEaseFactor, RepetitionCount: 2},
		{Interval: 6, EaseFactor: 2.5, RepetitionCount: 2},
	} {
		s := start
		for i := 0; i < 20; i++ {
			r := mustSchedule(t, s, PassThreshold)
			if r.Interval <= s.Interval {
				t.Fatalf("start %+v step %d: interval %d did not grow past %d", start, i, r.Interval, s.Interval)
			}
			s = toState(r)
		}
	}
}

func TestNextReviewAt(t *testing.T) {
	r := mustSchedule(t, State{Interval: 6, EaseFactor: 2.5, RepetitionCount: 2}, 4)
	want := t0.AddDate(0, 0, r.Interval)
	if !r.NextReviewAt.Equal(want) {
		t.Errorf("expected next review %v, got %v", want, r.NextReviewAt)
	}
	if !r.NextReviewAt.After(t0) {
		t.Error("next review must be after the review time")
	}
}

func TestQuickAnswer(t *testing.T) {
	if QuickAnswer(false) != 0 {
		t.Errorf("wrong should map to 0, got %d", QuickAnswer(false))
	}
	if !Passed(QuickAnswer(true)) {
		t.Error("correct should map to a passing rating")
	}
	if got := nextEaseFactor(2.5, QuickAnswer(true)); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("correct quick answer should keep ease, got %.4f", got)
	}
}
