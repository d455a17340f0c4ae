// Package revision runs revision sessions: it selects due cards, applies
// answers through the SM-2 scheduler and keeps session progress.
package revision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
)

const (
	// DefaultMaxCards is the session size when a request leaves it unset.
	DefaultMaxCards = 10
	// DefaultMaxAttempts bounds how often a conflicting write is retried.
	DefaultMaxAttempts = 3
)

// CardStore is the card persistence the manager needs.
//
// ApplyReview must write the card, its event and the optional session update
// atomically, failing with errs.ErrConflict if either version moved.
type CardStore interface {
	GetCard(ctx context.Context, studentID, cardID string) (*domain.Flashcard, error)
	DueCards(ctx context.Context, q domain.DueQuery) ([]domain.Flashcard, error)
	ApplyReview(ctx context.Context, w domain.ReviewWrite) (*domain.Flashcard, error)
}

// SessionStore is the session persistence the manager needs.
type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.RevisionSession) error
	GetSession(ctx context.Context, studentID, sessionID string) (*domain.RevisionSession, error)
	EndSession(ctx context.Context, studentID, sessionID string, expectedVersion int64, endedAt time.Time) (*domain.RevisionSession, error)
	ActiveSessions(ctx context.Context, studentID string) ([]domain.RevisionSession, error)
}

// Manager coordinates revision sessions.
type Manager struct {
	cards    CardStore
	sessions SessionStore

	now             func() time.Time
	newSessionID    func() string
	newEventID      func(time.Time) string
	logger          *slog.Logger
	defaultMaxCards int
	maxAttempts     int

	locks *keyedMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithDefaultMaxCards sets the session size used when a request leaves it unset.
func WithDefaultMaxCards(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.defaultMaxCards = n
		}
	}
}

// WithMaxAttempts sets how many times a write is tried before a conflict is surfaced.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithIDs overrides session and event id generation.
func WithIDs(session func() string, event func(time.Time) string) Option {
	return func(m *Manager) {
		if session != nil {
			m.newSessionID = session
		}
		if event != nil {
			m.newEventID = event
		}
	}
}

// NewManager returns a manager over the given stores.
func NewManager(cards CardStore, sessions SessionStore, opts ...Option) *Manager {
	m := &Manager{
		cards:           cards,
		sessions:        sessions,
		now:             time.Now,
		newSessionID:    uuid.NewString,
		newEventID:      newEventID,
		logger:          slog.Default(),
		defaultMaxCards: DefaultMaxCards,
		maxAttempts:     DefaultMaxAttempts,
		locks:           newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newEventID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// StartSession selects up to MaxCards due cards, most overdue first.
// With nothing due the session is created already complete.
func (m *Manager) StartSession(ctx context.Context, req StartRequest) (*StartResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	limit := m.defaultMaxCards
	if req.MaxCards != nil {
		limit = *req.MaxCards
	}

	now := m.now()
	due, err := m.cards.DueCards(ctx, domain.DueQuery{
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
		Now:       now,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(due))
	for i, c := range due {
		ids[i] = c.ID
	}
	sess := domain.NewSession(m.newSessionID(), req.StudentID, req.SubjectID, ids, now)
	if err := m.sessions.CreateSession(ctx, &sess); err != nil {
		return nil, err
	}

	m.logger.Info("revision session started",
		"session_id", sess.ID,
		"student_id", sess.StudentID,
		"subject_id", sess.SubjectID,
		"cards", len(ids),
	)
	if due == nil {
		due = []domain.Flashcard{}
	}
	return &StartResult{Session: sess, Cards: due}, nil
}

// GetSession returns one of the student's sessions.
func (m *Manager) GetSession(ctx context.Context, studentID, sessionID string) (*domain.RevisionSession, error) {
	if studentID == "" || sessionID == "" {
		return nil, errs.Validation("student id and session id are required")
	}
	return m.sessions.GetSession(ctx, studentID, sessionID)
}

// ResumeSession returns the student's most recently started active session.
func (m *Manager) ResumeSession(ctx context.Context, studentID string) (*domain.RevisionSession, error) {
	if studentID == "" {
		return nil, errs.Validation("student id is required")
	}
	active, err := m.sessions.ActiveSessions(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, errs.NotFound("active session for student", studentID)
	}
	return &active[0], nil
}

// NextCard returns the first unanswered card of the session that still exists.
func (m *Manager) NextCard(ctx context.Context, studentID, sessionID string) (*domain.Flashcard, error) {
	sess, err := m.GetSession(ctx, studentID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsComplete() {
		return nil, errs.InvalidState("session %s is complete", sess.ID)
	}
	for _, id := range sess.Remaining() {
		card, err := m.cards.GetCard(ctx, studentID, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return card, nil
	}
	return nil, errs.InvalidCard("session %s has no answerable cards left", sess.ID)
}

// EndSession completes the session whatever is left unanswered.
// Ending a complete session returns it unchanged.
func (m *Manager) EndSession(ctx context.Context, studentID, sessionID string) (*domain.RevisionSession, error) {
	if studentID == "" || sessionID == "" {
		return nil, errs.Validation("student id and session id are required")
	}
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	var ended *domain.RevisionSession
	err := m.retry(ctx, "end session", func() error {
		sess, err := m.sessions.GetSession(ctx, studentID, sessionID)
		if err != nil {
			return err
		}
		if sess.IsComplete() {
			ended = sess
			return nil
		}
		ended, err = m.sessions.EndSession(ctx, studentID, sessionID, sess.Version, m.now())
		if err != nil {
			return err
		}
		m.logger.Info("revision session ended",
			"session_id", ended.ID,
			"student_id", ended.StudentID,
			"answered", ended.Answered,
			"cards", len(ended.Cards),
		)
		return nil
	}, "session_id", sessionID)
	if err != nil {
		return nil, err
	}
	return ended, nil
}

// retry runs fn until it succeeds, fails with anything but a conflict, or
// exhausts the attempt budget.
func (m *Manager) retry(ctx context.Context, op string, fn func() error, attrs ...any) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return err
		}
		if attempt >= m.maxAttempts {
			m.logger.Warn(op+" failed after conflicts", append(attrs, "attempts", attempt, "error", err)...)
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errs.Unavailable(op+" cancelled", ctxErr)
		}
		m.logger.Debug(op+" conflicted, retrying", append(attrs, "attempt", attempt)...)
	}
}
