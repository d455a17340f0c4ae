package progress

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
	"github.com/conorfennell/knolrev/internal/storage/memstore"
)

var now = time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

// seed creates a card and applies one review per outcome.
func seed(t *testing.T, s *memstore.Store, id, subject string, outcomes ...bool) {
	t.Helper()
	ctx := context.Background()
	c := domain.NewFlashcard(id, "alice", subject, "Q", "A", now.AddDate(0, 0, -30))
	require.NoError(t, s.CreateCard(ctx, &c))

	card := &c
	for i, ok := range outcomes {
		at := now.AddDate(0, 0, -len(outcomes)+i)
		sched := card.Scheduling
		sched.NextReviewAt = at.AddDate(0, 0, 7)
		updated, err := s.ApplyReview(ctx, domain.ReviewWrite{
			StudentID:       "alice",
			CardID:          id,
			ExpectedVersion: card.Version,
			Scheduling:      sched,
			Stats:           card.Stats.Record(ok),
			Event:           domain.ReviewEvent{ID: fmt.Sprintf("%s-%d", id, i), CardID: id, StudentID: "alice", ReviewedAt: at, WasCorrect: ok},
		})
		require.NoError(t, err)
		card = updated
	}
}

func TestOverallMasteryIsWeightedByReviews(t *testing.T) {
	s := memstore.New()
	seed(t, s, "a", "bio", true, true, true, false) // 75%, 4 reviews
	seed(t, s, "b", "chem", true)                   // 100%, 1 review
	seed(t, s, "c", "bio")                          // never reviewed
	agg := NewAggregator(s, s, WithClock(fixedClock))

	m, err := agg.OverallMastery(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, m.Percent)
	assert.InDelta(t, 80.0, *m.Percent, 1e-9)
	assert.Equal(t, 2, m.ReviewedCards)
	assert.Equal(t, 5, m.Reviews)

	bio, err := agg.SubjectMastery(context.Background(), "alice", "bio")
	require.NoError(t, err)
	require.NotNil(t, bio.Percent)
	assert.InDelta(t, 75.0, *bio.Percent, 1e-9)
}

func TestMasteryWithoutReviewsIsNoData(t *testing.T) {
	s := memstore.New()
	seed(t, s, "a", "bio")
	agg := NewAggregator(s, s, WithClock(fixedClock))

	m, err := agg.OverallMastery(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, m.Percent)
	assert.Zero(t, m.ReviewedCards)

	m, err = agg.OverallMastery(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, m.Percent)
}

func TestSubjectProgress(t *testing.T) {
	s := memstore.New()
	seed(t, s, "a", "bio", true, true, true, true, false) // 80%: mastered
	seed(t, s, "b", "bio", true, false)                   // 50%
	seed(t, s, "c", "bio")                                // unreviewed, due
	seed(t, s, "d", "chem", true)
	agg := NewAggregator(s, s, WithClock(fixedClock))

	got, err := agg.SubjectProgress(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)

	bio := got[0]
	assert.Equal(t, "bio", bio.SubjectID)
	assert.Equal(t, 3, bio.Cards)
	assert.Equal(t, 2, bio.ReviewedCards)
	assert.Equal(t, 1, bio.MasteredCards)
	assert.Equal(t, 1, bio.DueCards)

	chem := got[1]
	assert.Equal(t, "chem", chem.SubjectID)
	assert.Equal(t, 1, chem.MasteredCards)

	strict := NewAggregator(s, s, WithClock(fixedClock), WithMasteryThreshold(90))
	got, err = strict.SubjectProgress(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, got[0].MasteredCards)
}

// historyFunc adapts a slice of review times to HistoryStore.
type historyFunc struct {
	times []time.Time
	calls int
}

func (h *historyFunc) ReviewTimes(_ context.Context, _ string, since time.Time) ([]time.Time, error) {
	h.calls++
	var out []time.Time
	for _, t := range h.times {
		if !t.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestStreak(t *testing.T) {
	local := time.FixedZone("UTC-5", -5*3600)
	// now is 21:00 on 9 March in local time.
	at := func(day, hour int) time.Time { return time.Date(2025, 3, day, hour, 0, 0, 0, local) }

	tests := []struct {
		name  string
		times []time.Time
		loc   *time.Location
		want  int
	}{
		{"no reviews", nil, local, 0},
		{"today only", []time.Time{at(9, 8)}, local, 1},
		{"three days to today", []time.Time{at(9, 8), at(8, 23), at(7, 1)}, local, 3},
		{"today pending keeps yesterday's run", []time.Time{at(8, 10), at(7, 10)}, local, 2},
		{"gap breaks the run", []time.Time{at(9, 10), at(7, 10), at(6, 10)}, local, 1},
		{"run ended two days ago", []time.Time{at(7, 10)}, local, 0},
		{"many reviews on one day count once", []time.Time{at(9, 1), at(9, 2), at(9, 3)}, local, 1},
		// 20:00 local on 8 March is already 9 March in UTC.
		{"local days", []time.Time{at(8, 20), at(7, 10)}, local, 2},
		{"same reviews in UTC", []time.Time{at(8, 20), at(7, 10)}, time.UTC, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(memstore.New(), &historyFunc{times: tt.times}, WithClock(fixedClock))
			got, err := agg.Streak(context.Background(), "alice", tt.loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreakLongerThanFirstWindow(t *testing.T) {
	var times []time.Time
	for i := 0; i < 150; i++ {
		times = append(times, now.AddDate(0, 0, -i))
	}
	h := &historyFunc{times: times}
	agg := NewAggregator(memstore.New(), h, WithClock(fixedClock))

	got, err := agg.Streak(context.Background(), "alice", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 150, got)
	assert.Equal(t, 3, h.calls, "windows of 64, 128 and 256 days")
}

func TestReport(t *testing.T) {
	s := memstore.New()
	seed(t, s, "a", "bio", true, true, true, true, false)
	seed(t, s, "b", "chem", true, false)
	seed(t, s, "c", "chem")
	agg := NewAggregator(s, s, WithClock(fixedClock))

	r, err := agg.Report(context.Background(), "alice", time.UTC)
	require.NoError(t, err)
	require.NotNil(t, r.Overall.Percent)
	assert.InDelta(t, (80.0*5+50.0*2)/7, *r.Overall.Percent, 1e-9)
	assert.Equal(t, 5, r.Streak, "five days in a row ending yesterday")
	assert.Equal(t, 1, r.DueCards)
	assert.Equal(t, 1, r.MasteredCards)
	assert.Len(t, r.Subjects, 2)

	_, err = agg.Report(context.Background(), "", time.UTC)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
