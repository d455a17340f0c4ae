// Package memstore is an in-memory storage.Store for tests and ephemeral runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
	"github.com/conorfennell/knolrev/internal/storage"
)

type cardKey struct {
	studentID string
	cardID    string
}

// Store keeps every record in maps guarded by one mutex.
type Store struct {
	mu       sync.Mutex
	cards    map[cardKey]domain.Flashcard
	events   []domain.ReviewEvent
	sessions map[string]domain.RevisionSession
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		cards:    make(map[cardKey]domain.Flashcard),
		sessions: make(map[string]domain.RevisionSession),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// CreateCard stores a new card. A duplicate id is a conflict.
func (s *Store) CreateCard(ctx context.Context, card *domain.Flashcard) error {
	if err := ctx.Err(); err != nil {
		return errs.Unavailable("context done", err)
	}
	if card.StudentID == "" || card.ID == "" {
		return errs.Validation("card requires a student id and an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cardKey{card.StudentID, card.ID}
	if _, ok := s.cards[k]; ok {
		return errs.Conflict("card %s already exists", card.ID)
	}
	s.cards[k] = *card
	return nil
}

// GetCard returns a copy of the student's card.
func (s *Store) GetCard(ctx context.Context, studentID, cardID string) (*domain.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[cardKey{studentID, cardID}]
	if !ok {
		return nil, errs.NotFound("card", cardID)
	}
	return &c, nil
}

// ListCards returns the cards matching f, ordered by id.
func (s *Store) ListCards(ctx context.Context, f domain.CardFilter) ([]domain.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Flashcard
	for k, c := range s.cards {
		if k.studentID != f.StudentID || (f.SubjectID != "" && c.SubjectID != f.SubjectID) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) due(studentID, subjectID string, now time.Time) []domain.Flashcard {
	var out []domain.Flashcard
	for k, c := range s.cards {
		if k.studentID != studentID || (subjectID != "" && c.SubjectID != subjectID) {
			continue
		}
		if c.Due(now) {
			out = append(out, c)
		}
	}
	return out
}

// DueCards returns cards due at q.Now, most overdue first.
func (s *Store) DueCards(ctx context.Context, q domain.DueQuery) ([]domain.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.due(q.StudentID, q.SubjectID, q.Now)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Scheduling.NextReviewAt, out[j].Scheduling.NextReviewAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// CountDue counts the cards due at now.
func (s *Store) CountDue(ctx context.Context, studentID, subjectID string, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.due(studentID, subjectID, now)), nil
}

// ApplyReview checks every version guard before changing anything.
func (s *Store) ApplyReview(ctx context.Context, w domain.ReviewWrite) (*domain.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cardKey{w.StudentID, w.CardID}
	c, ok := s.cards[k]
	if !ok {
		return nil, errs.NotFound("card", w.CardID)
	}
	if c.Version != w.ExpectedVersion {
		return nil, errs.Conflict("card %s changed since version %d", w.CardID, w.ExpectedVersion)
	}

	var next domain.RevisionSession
	if u := w.Session; u != nil {
		cur, ok := s.sessions[u.Session.ID]
		if !ok || cur.StudentID != w.StudentID {
			return nil, errs.NotFound("session", u.Session.ID)
		}
		if cur.Version != u.ExpectedVersion || cur.IsComplete() {
			return nil, errs.Conflict("session %s changed since version %d", cur.ID, u.ExpectedVersion)
		}
		if sc, ok := cur.Card(u.CardID); !ok || sc.Answered {
			return nil, errs.Conflict("card %s was already answered in session %s", u.CardID, cur.ID)
		}
		next = cloneSession(u.Session)
		next.Version = cur.Version + 1
	}

	c.Scheduling = w.Scheduling
	c.Stats = w.Stats
	c.Version++
	c.UpdatedAt = w.Event.ReviewedAt
	s.cards[k] = c
	s.events = append(s.events, w.Event)
	if w.Session != nil {
		s.sessions[next.ID] = next
	}
	return &c, nil
}

// DeleteCard removes a card and its events.
func (s *Store) DeleteCard(ctx context.Context, studentID, cardID string) error {
	if err := ctx.Err(); err != nil {
		return errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cardKey{studentID, cardID}
	if _, ok := s.cards[k]; !ok {
		return errs.NotFound("card", cardID)
	}
	delete(s.cards, k)

	kept := s.events[:0]
	for _, e := range s.events {
		if e.StudentID == studentID && e.CardID == cardID {
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return nil
}

// ReviewTimes returns review times at or after since, newest first.
func (s *Store) ReviewTimes(ctx context.Context, studentID string, since time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []time.Time
	for _, e := range s.events {
		if e.StudentID == studentID && !e.ReviewedAt.Before(since) {
			out = append(out, e.ReviewedAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

// CardHistory returns a card's events, oldest first.
func (s *Store) CardHistory(ctx context.Context, studentID, cardID string) ([]domain.ReviewEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ReviewEvent
	for _, e := range s.events {
		if e.StudentID == studentID && e.CardID == cardID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReviewedAt.Equal(out[j].ReviewedAt) {
			return out[i].ReviewedAt.Before(out[j].ReviewedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateSession stores a new session. A duplicate id is a conflict.
func (s *Store) CreateSession(ctx context.Context, sess *domain.RevisionSession) error {
	if err := ctx.Err(); err != nil {
		return errs.Unavailable("context done", err)
	}
	if sess.StudentID == "" || sess.ID == "" {
		return errs.Validation("session requires a student id and an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return errs.Conflict("session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = cloneSession(*sess)
	return nil
}

// GetSession returns a copy of the student's session.
func (s *Store) GetSession(ctx context.Context, studentID, sessionID string) (*domain.RevisionSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.StudentID != studentID {
		return nil, errs.NotFound("session", sessionID)
	}
	out := cloneSession(sess)
	return &out, nil
}

// EndSession completes an active session at the expected version.
func (s *Store) EndSession(ctx context.Context, studentID, sessionID string, expectedVersion int64, endedAt time.Time) (*domain.RevisionSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.StudentID != studentID {
		return nil, errs.NotFound("session", sessionID)
	}
	if sess.Version != expectedVersion || sess.IsComplete() {
		return nil, errs.Conflict("session %s changed since version %d", sessionID, expectedVersion)
	}
	ended := sess.Ended(endedAt)
	ended.Version = sess.Version + 1
	s.sessions[sessionID] = ended
	out := cloneSession(ended)
	return &out, nil
}

// ActiveSessions returns the student's active sessions, newest first.
func (s *Store) ActiveSessions(ctx context.Context, studentID string) ([]domain.RevisionSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("context done", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.RevisionSession
	for _, sess := range s.sessions {
		if sess.StudentID == studentID && !sess.IsComplete() {
			out = append(out, cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func cloneSession(s domain.RevisionSession) domain.RevisionSession {
	out := s
	out.Cards = make([]domain.SessionCard, len(s.Cards))
	for i, c := range s.Cards {
		if c.AnsweredAt != nil {
			t := *c.AnsweredAt
			c.AnsweredAt = &t
		}
		out.Cards[i] = c
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}
