// Package storage persists flashcards, review events and revision sessions.
//
// DB is the SQL implementation (SQLite, PostgreSQL or MySQL). The memstore
// subpackage holds an in-memory implementation of the same Store interface.
package storage

import (
	"context"
	"time"

	"github.com/conorfennell/knolrev/internal/domain"
)

// CardStore holds flashcards and applies reviews to them.
type CardStore interface {
	// CreateCard inserts a new card. A duplicate (student, id) is a conflict.
	CreateCard(ctx context.Context, card *domain.Flashcard) error

	// GetCard returns one card, or a not-found error when it does not exist
	// for the student.
	GetCard(ctx context.Context, studentID, cardID string) (*domain.Flashcard, error)

	// ListCards returns a student's cards ordered by id.
	ListCards(ctx context.Context, f domain.CardFilter) ([]domain.Flashcard, error)

	// DueCards returns cards with next review at or before q.Now, most
	// overdue first, ties broken by card id.
	DueCards(ctx context.Context, q domain.DueQuery) ([]domain.Flashcard, error)

	// CountDue counts the cards DueCards would return without a limit.
	CountDue(ctx context.Context, studentID, subjectID string, now time.Time) (int, error)

	// ApplyReview writes a review atomically. It fails with a conflict when
	// the card or session version moved since the caller read it.
	ApplyReview(ctx context.Context, w domain.ReviewWrite) (*domain.Flashcard, error)

	// DeleteCard removes a card and its review history.
	DeleteCard(ctx context.Context, studentID, cardID string) error
}

// HistoryStore reads the append-only review log.
type HistoryStore interface {
	// ReviewTimes returns review timestamps at or after since, newest first.
	ReviewTimes(ctx context.Context, studentID string, since time.Time) ([]time.Time, error)

	// CardHistory returns one card's events, oldest first.
	CardHistory(ctx context.Context, studentID, cardID string) ([]domain.ReviewEvent, error)
}

// SessionStore holds revision sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.RevisionSession) error
	GetSession(ctx context.Context, studentID, sessionID string) (*domain.RevisionSession, error)

	// EndSession completes an active session guarded by its version.
	EndSession(ctx context.Context, studentID, sessionID string, expectedVersion int64, endedAt time.Time) (*domain.RevisionSession, error)

	// ActiveSessions returns a student's active sessions, newest first.
	ActiveSessions(ctx context.Context, studentID string) ([]domain.RevisionSession, error)
}

// Store is the full persistence surface every backend implements.
type Store interface {
	CardStore
	HistoryStore
	SessionStore
	Close() error
}
