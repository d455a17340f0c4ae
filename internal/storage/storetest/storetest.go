// Package storetest is the behaviour suite every storage.Store must pass.
package storetest

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
	"github.com/conorfennell/knolrev/internal/storage"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) storage.Store

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateAndGetCard", testCreateAndGetCard},
		{"DueCardsOrdering", testDueCardsOrdering},
		{"ApplyReviewVersioning", testApplyReviewVersioning},
		{"ApplyReviewWithSession", testApplyReviewWithSession},
		{"SessionConflictLeavesCardUntouched", testSessionConflictLeavesCardUntouched},
		{"DeleteCardCascadesHistory", testDeleteCardCascadesHistory},
		{"ReviewTimes", testReviewTimes},
		{"SessionLifecycle", testSessionLifecycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func newCard(id, subject string, due time.Time) *domain.Flashcard {
	c := domain.NewFlashcard(id, "alice", subject, "front "+id, "back "+id, t0.Add(-48*time.Hour))
	c.Scheduling.NextReviewAt = due
	return &c
}

func mustCreate(t *testing.T, s storage.Store, cards ...*domain.Flashcard) {
	t.Helper()
	for _, c := range cards {
		require.NoError(t, s.CreateCard(context.Background(), c))
	}
}

func reviewWrite(c *domain.Flashcard, eventID string, at time.Time, correct bool) domain.ReviewWrite {
	sched := c.Scheduling
	sched.RepetitionCount++
	sched.NextReviewAt = at.AddDate(0, 0, sched.Interval)
	return domain.ReviewWrite{
		StudentID:       c.StudentID,
		CardID:          c.ID,
		ExpectedVersion: c.Version,
		Scheduling:      sched,
		Stats:           c.Stats.Record(correct),
		Event: domain.ReviewEvent{
			ID:               eventID,
			CardID:           c.ID,
			StudentID:        c.StudentID,
			ReviewedAt:       at,
			WasCorrect:       correct,
			QualityRating:    4,
			IntervalBefore:   c.Scheduling.Interval,
			IntervalAfter:    sched.Interval,
			EaseFactorBefore: c.Scheduling.EaseFactor,
			EaseFactorAfter:  sched.EaseFactor,
		},
	}
}

func testCreateAndGetCard(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newCard("c1", "bio", t0)
	c.OutcomeID = "bio.cells"
	mustCreate(t, s, c)

	got, err := s.GetCard(ctx, "alice", "c1")
	require.NoError(t, err)
	assert.Equal(t, c.Front, got.Front)
	assert.Equal(t, c.Back, got.Back)
	assert.Equal(t, "bio", got.SubjectID)
	assert.Equal(t, "bio.cells", got.OutcomeID)
	assert.Equal(t, c.Scheduling.Interval, got.Scheduling.Interval)
	assert.Equal(t, c.Scheduling.EaseFactor, got.Scheduling.EaseFactor)
	assert.True(t, got.Scheduling.NextReviewAt.Equal(t0))
	assert.Equal(t, int64(1), got.Version)

	err = s.CreateCard(ctx, newCard("c1", "bio", t0))
	assert.True(t, errors.Is(err, errs.ErrConflict), "duplicate card: %v", err)

	_, err = s.GetCard(ctx, "bob", "c1")
	assert.True(t, errors.Is(err, errs.ErrNotFound), "other student: %v", err)

	list, err := s.ListCards(ctx, domain.CardFilter{StudentID: "alice"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testDueCardsOrdering(t *testing.T, s storage.Store) {
	ctx := context.Background()
	mustCreate(t, s,
		newCard("b", "bio", t0.Add(-2*time.Hour)),
		newCard("a", "bio", t0.Add(-2*time.Hour)),
		newCard("c", "chem", t0.Add(-1*time.Hour)),
		newCard("d", "bio", t0.Add(time.Hour)),
		newCard("e", "bio", t0),
	)

	ids := func(cards []domain.Flashcard) []string {
		out := make([]string, len(cards))
		for i, c := range cards {
			out[i] = c.ID
		}
		return out
	}

	due, err := s.DueCards(ctx, domain.DueQuery{StudentID: "alice", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "e"}, ids(due))

	due, err = s.DueCards(ctx, domain.DueQuery{StudentID: "alice", Now: t0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(due))

	due, err = s.DueCards(ctx, domain.DueQuery{StudentID: "alice", SubjectID: "chem", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(due))

	n, err := s.CountDue(ctx, "alice", "", t0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.CountDue(ctx, "bob", "", t0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testApplyReviewVersioning(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newCard("c1", "bio", t0)
	mustCreate(t, s, c)

	at := t0.Add(time.Minute)
	updated, err := s.ApplyReview(ctx, reviewWrite(c, "e1", at, true))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, 1, updated.Scheduling.RepetitionCount)
	assert.Equal(t, 1, updated.Stats.ReviewCount)
	assert.Equal(t, 100, updated.Stats.MasteryPercent)

	_, err = s.ApplyReview(ctx, reviewWrite(c, "e2", at, false))
	assert.True(t, errors.Is(err, errs.ErrConflict), "stale version: %v", err)

	missing := newCard("nope", "bio", t0)
	_, err = s.ApplyReview(ctx, reviewWrite(missing, "e3", at, true))
	assert.True(t, errors.Is(err, errs.ErrNotFound), "missing card: %v", err)

	history, err := s.CardHistory(ctx, "alice", "c1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "e1", history[0].ID)
	assert.True(t, history[0].WasCorrect)
	assert.Empty(t, history[0].SessionID)
}

func testApplyReviewWithSession(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a, b := newCard("a", "bio", t0), newCard("b", "bio", t0)
	mustCreate(t, s, a, b)

	sess := domain.NewSession("s1", "alice", "bio", []string{"a", "b"}, t0)
	require.NoError(t, s.CreateSession(ctx, &sess))

	at := t0.Add(time.Minute)
	next, err := sess.WithAnswer("a", true, at)
	require.NoError(t, err)
	w := reviewWrite(a, "e1", at, true)
	w.Event.SessionID = "s1"
	w.Session = &domain.SessionUpdate{Session: next, ExpectedVersion: sess.Version, CardID: "a"}
	_, err = s.ApplyReview(ctx, w)
	require.NoError(t, err)

	got, err := s.GetSession(ctx, "alice", "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Answered)
	assert.Equal(t, 1, got.Correct)
	assert.Equal(t, domain.SessionActive, got.Status)
	assert.Equal(t, sess.Version+1, got.Version)
	require.Len(t, got.Cards, 2)
	assert.True(t, got.Cards[0].Answered)
	assert.True(t, got.Cards[0].WasCorrect)
	assert.False(t, got.Cards[1].Answered)

	last, err := got.WithAnswer("b", false, at.Add(time.Minute))
	require.NoError(t, err)
	w = reviewWrite(b, "e2", at.Add(time.Minute), false)
	w.Event.SessionID = "s1"
	w.Session = &domain.SessionUpdate{Session: last, ExpectedVersion: got.Version, CardID: "b"}
	_, err = s.ApplyReview(ctx, w)
	require.NoError(t, err)

	got, err = s.GetSession(ctx, "alice", "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionComplete, got.Status)
	assert.Equal(t, 2, got.Answered)
	assert.Equal(t, 1, got.Correct)
	require.NotNil(t, got.EndedAt)

	active, err := s.ActiveSessions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func testSessionConflictLeavesCardUntouched(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := newCard("a", "bio", t0)
	mustCreate(t, s, a)

	sess := domain.NewSession("s1", "alice", "", []string{"a"}, t0)
	require.NoError(t, s.CreateSession(ctx, &sess))

	at := t0.Add(time.Minute)
	next, err := sess.WithAnswer("a", true, at)
	require.NoError(t, err)
	w := reviewWrite(a, "e1", at, true)
	w.Session = &domain.SessionUpdate{Session: next, ExpectedVersion: sess.Version + 7, CardID: "a"}

	_, err = s.ApplyReview(ctx, w)
	assert.True(t, errors.Is(err, errs.ErrConflict), "stale session: %v", err)

	got, err := s.GetCard(ctx, "alice", "a")
	require.NoError(t, err)
	assert.Equal(t, a.Version, got.Version)
	assert.Zero(t, got.Stats.ReviewCount)

	history, err := s.CardHistory(ctx, "alice", "a")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func testDeleteCardCascadesHistory(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a, b := newCard("a", "bio", t0), newCard("b", "bio", t0)
	mustCreate(t, s, a, b)

	sess := domain.NewSession("s1", "alice", "", []string{"a", "b"}, t0)
	require.NoError(t, s.CreateSession(ctx, &sess))

	_, err := s.ApplyReview(ctx, reviewWrite(a, "e1", t0, true))
	require.NoError(t, err)
	_, err = s.ApplyReview(ctx, reviewWrite(b, "e2", t0, true))
	require.NoError(t, err)

	require.NoError(t, s.DeleteCard(ctx, "alice", "a"))

	_, err = s.GetCard(ctx, "alice", "a")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	history, err := s.CardHistory(ctx, "alice", "a")
	require.NoError(t, err)
	assert.Empty(t, history)
	history, err = s.CardHistory(ctx, "alice", "b")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	got, err := s.GetSession(ctx, "alice", "s1")
	require.NoError(t, err)
	assert.Len(t, got.Cards, 2, "session selection keeps the deleted id")

	err = s.DeleteCard(ctx, "alice", "a")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func testReviewTimes(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newCard("c1", "bio", t0)
	mustCreate(t, s, c)

	times := []time.Time{t0.Add(-72 * time.Hour), t0.Add(-24 * time.Hour), t0}
	for i, at := range times {
		updated, err := s.ApplyReview(ctx, reviewWrite(c, fmt.Sprintf("e%d", i), at, true))
		require.NoError(t, err)
		c = updated
	}

	got, err := s.ReviewTimes(ctx, "alice", t0.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(t0))
	assert.True(t, got[1].Equal(t0.Add(-24*time.Hour)))

	got, err = s.ReviewTimes(ctx, "bob", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testSessionLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()

	older := domain.NewSession("s-old", "alice", "", []string{"a"}, t0)
	newer := domain.NewSession("s-new", "alice", "", []string{"b"}, t0.Add(time.Hour))
	empty := domain.NewSession("s-empty", "alice", "", nil, t0)
	for _, sess := range []*domain.RevisionSession{&older, &newer, &empty} {
		require.NoError(t, s.CreateSession(ctx, sess))
	}
	assert.True(t, errors.Is(s.CreateSession(ctx, &older), errs.ErrConflict))

	active, err := s.ActiveSessions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "s-new", active[0].ID)
	assert.Equal(t, "s-old", active[1].ID)

	_, err = s.GetSession(ctx, "bob", "s-old")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = s.EndSession(ctx, "alice", "s-old", older.Version+1, t0.Add(2*time.Hour))
	assert.True(t, errors.Is(err, errs.ErrConflict))

	ended, err := s.EndSession(ctx, "alice", "s-old", older.Version, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.SessionComplete, ended.Status)
	assert.Equal(t, older.Version+1, ended.Version)
	require.NotNil(t, ended.EndedAt)
	assert.True(t, ended.EndedAt.Equal(t0.Add(2*time.Hour)))

	_, err = s.EndSession(ctx, "alice", "missing", 1, t0)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	active, err = s.ActiveSessions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s-new", active[0].ID)
}
