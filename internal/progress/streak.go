package progress

import (
	"context"
	"time"

	"github.com/conorfennell/knolrev/internal/errs"
)

const (
	dayKey           = "2006-01-02"
	streakWindowDays = 64
)

// Streak counts consecutive local calendar days with at least one review,
// walking back from today. A day without reviews ends the run, except today,
// which may still be reviewed.
func (a *Aggregator) Streak(ctx context.Context, studentID string, loc *time.Location) (int, error) {
	if studentID == "" {
		return 0, errs.Validation("student id is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	today := startOfDay(a.now(), loc)

	// The run is only known to have ended once the window reaches past it.
	for window := streakWindowDays; ; window *= 2 {
		times, err := a.history.ReviewTimes(ctx, studentID, today.AddDate(0, 0, -window))
		if err != nil {
			return 0, err
		}
		days := make(map[string]bool, len(times))
		for _, t := range times {
			days[t.In(loc).Format(dayKey)] = true
		}
		streak := countStreak(days, today)
		if streak+1 < window {
			return streak, nil
		}
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func countStreak(days map[string]bool, today time.Time) int {
	day := today
	if !days[day.Format(dayKey)] {
		day = day.AddDate(0, 0, -1)
		if !days[day.Format(dayKey)] {
			return 0
		}
	}

	streak := 0
	for days[day.Format(dayKey)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
