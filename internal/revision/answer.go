package revision

import (
	"context"
	"errors"
	"time"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
	"github.com/conorfennell/knolrev/internal/sm2"
)

// SubmitAnswer applies the answer to one card of an active session.
//
// Answers to the same session are applied one at a time in arrival order.
// A write that loses a version race is re-read and retried.
func (m *Manager) SubmitAnswer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	q := quality(req.QualityRating, req.WasCorrect)

	unlock := m.locks.Lock(req.SessionID)
	defer unlock()

	var res *AnswerResult
	err := m.retry(ctx, "submit answer", func() error {
		var err error
		res, err = m.answerOnce(ctx, req, q)
		return err
	}, "session_id", req.SessionID, "card_id", req.CardID)
	if err != nil {
		return nil, err
	}

	if res.SessionComplete {
		m.logger.Info("revision session complete",
			"session_id", req.SessionID,
			"student_id", req.StudentID,
			"answered", res.Session.Answered,
			"correct", res.Session.Correct,
		)
	}
	return res, nil
}

func (m *Manager) answerOnce(ctx context.Context, req AnswerRequest, q int) (*AnswerResult, error) {
	sess, err := m.sessions.GetSession(ctx, req.StudentID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.CheckAnswerable(req.CardID); err != nil {
		return nil, err
	}
	card, err := m.loadCard(ctx, req.StudentID, req.CardID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	next, err := sess.WithAnswer(req.CardID, req.WasCorrect, now)
	if err != nil {
		return nil, err
	}
	w, err := m.reviewWrite(card, req.WasCorrect, q, now)
	if err != nil {
		return nil, err
	}
	w.Event.SessionID = sess.ID
	w.Session = &domain.SessionUpdate{
		Session:         next,
		ExpectedVersion: sess.Version,
		CardID:          req.CardID,
	}

	updated, err := m.apply(ctx, w)
	if err != nil {
		return nil, err
	}
	next.Version = sess.Version + 1
	return &AnswerResult{
		Card:            *updated,
		Scheduling:      updated.Scheduling,
		WasCorrect:      req.WasCorrect,
		SessionComplete: next.IsComplete(),
		Session:         &next,
	}, nil
}

// ReviewCard applies a review to a card outside any session.
func (m *Manager) ReviewCard(ctx context.Context, req ManualReview) (*AnswerResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	q := quality(req.QualityRating, req.WasCorrect)

	var res *AnswerResult
	err := m.retry(ctx, "review card", func() error {
		card, err := m.cards.GetCard(ctx, req.StudentID, req.CardID)
		if err != nil {
			return err
		}
		w, err := m.reviewWrite(card, req.WasCorrect, q, m.now())
		if err != nil {
			return err
		}
		updated, err := m.cards.ApplyReview(ctx, w)
		if err != nil {
			return err
		}
		res = &AnswerResult{
			Card:       *updated,
			Scheduling: updated.Scheduling,
			WasCorrect: req.WasCorrect,
		}
		return nil
	}, "card_id", req.CardID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// loadCard reads a session card. A card deleted since selection cannot be answered.
func (m *Manager) loadCard(ctx context.Context, studentID, cardID string) (*domain.Flashcard, error) {
	card, err := m.cards.GetCard(ctx, studentID, cardID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.InvalidCard("card %s no longer exists", cardID)
	}
	return card, err
}

func (m *Manager) apply(ctx context.Context, w domain.ReviewWrite) (*domain.Flashcard, error) {
	updated, err := m.cards.ApplyReview(ctx, w)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.InvalidCard("card %s no longer exists", w.CardID)
	}
	return updated, err
}

// reviewWrite schedules card for quality q and builds the write that persists it.
func (m *Manager) reviewWrite(card *domain.Flashcard, wasCorrect bool, q int, now time.Time) (domain.ReviewWrite, error) {
	before := card.Scheduling
	res, err := sm2.Schedule(sm2.State{
		Interval:        before.Interval,
		EaseFactor:      before.EaseFactor,
		RepetitionCount: before.RepetitionCount,
	}, q, now)
	if err != nil {
		return domain.ReviewWrite{}, err
	}

	after := domain.Scheduling{
		Interval:        res.Interval,
		EaseFactor:      res.EaseFactor,
		RepetitionCount: res.RepetitionCount,
		NextReviewAt:    res.NextReviewAt,
	}
	return domain.ReviewWrite{
		StudentID:       card.StudentID,
		CardID:          card.ID,
		ExpectedVersion: card.Version,
		Scheduling:      after,
		Stats:           card.Stats.Record(wasCorrect),
		Event: domain.ReviewEvent{
			ID:               m.newEventID(now),
			CardID:           card.ID,
			StudentID:        card.StudentID,
			ReviewedAt:       now,
			WasCorrect:       wasCorrect,
			QualityRating:    q,
			IntervalBefore:   before.Interval,
			IntervalAfter:    after.Interval,
			EaseFactorBefore: before.EaseFactor,
			EaseFactorAfter:  after.EaseFactor,
		},
	}, nil
}
