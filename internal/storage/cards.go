package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
)

const cardColumns = `student_id, id, subject_id, outcome_id, front, back,
	interval_days, ease_factor, repetition_count, next_review_at,
	review_count, correct_count, mastery_percent, version, created_at, updated_at`

func scanCard(row scanner) (*domain.Flashcard, error) {
	var (
		c                             domain.Flashcard
		nextReview, created, updated int64
	)
	err := row.Scan(
		&c.StudentID,
		&c.ID,
		&c.SubjectID,
		&c.OutcomeID,
		&c.Front,
		&c.Back,
		&c.Scheduling.Interval,
		&c.Scheduling.EaseFactor,
		&c.Scheduling.RepetitionCount,
		&nextReview,
		&c.Stats.ReviewCount,
		&c.Stats.CorrectCount,
		&c.Stats.MasteryPercent,
		&c.Version,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	c.Scheduling.NextReviewAt = fromMillis(nextReview)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}

// CreateCard inserts a new card.
func (db *DB) CreateCard(ctx context.Context, card *domain.Flashcard) error {
	if card.StudentID == "" || card.ID == "" {
		return errs.Validation("card requires a student id and an id")
	}
	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO flashcards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		card.StudentID,
		card.ID,
		card.SubjectID,
		card.OutcomeID,
		card.Front,
		card.Back,
		card.Scheduling.Interval,
		card.Scheduling.EaseFactor,
		card.Scheduling.RepetitionCount,
		toMillis(card.Scheduling.NextReviewAt),
		card.Stats.ReviewCount,
		card.Stats.CorrectCount,
		card.Stats.MasteryPercent,
		card.Version,
		toMillis(card.CreatedAt),
		toMillis(card.UpdatedAt),
	)
	if err != nil {
		if db.dialect.IsUniqueViolation(err) {
			return errs.Conflict("card %s already exists", card.ID)
		}
		return unavailable(err, "failed to insert card %s", card.ID)
	}
	return nil
}

// GetCard returns one of the student's cards.
func (db *DB) GetCard(ctx context.Context, studentID, cardID string) (*domain.Flashcard, error) {
	return db.getCard(ctx, db.conn, studentID, cardID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) getCard(ctx context.Context, q queryRower, studentID, cardID string) (*domain.Flashcard, error) {
	row := q.QueryRowContext(ctx, db.q(`
		SELECT `+cardColumns+`
		FROM flashcards WHERE student_id = ? AND id = ?
	`), studentID, cardID)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("card", cardID)
		}
		return nil, unavailable(err, "failed to find card %s", cardID)
	}
	return c, nil
}

// ListCards returns the student's cards ordered by id.
func (db *DB) ListCards(ctx context.Context, f domain.CardFilter) ([]domain.Flashcard, error) {
	query := `SELECT ` + cardColumns + ` FROM flashcards WHERE student_id = ?`
	args := []any{f.StudentID}
	if f.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, f.SubjectID)
	}
	query += ` ORDER BY id`
	return db.queryCards(ctx, query, args...)
}

// DueCards returns due cards, most overdue first.
func (db *DB) DueCards(ctx context.Context, dq domain.DueQuery) ([]domain.Flashcard, error) {
	query := `SELECT ` + cardColumns + ` FROM flashcards WHERE student_id = ? AND next_review_at <= ?`
	args := []any{dq.StudentID, toMillis(dq.Now)}
	if dq.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, dq.SubjectID)
	}
	query += ` ORDER BY next_review_at, id`
	if dq.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, dq.Limit)
	}
	return db.queryCards(ctx, query, args...)
}

func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]domain.Flashcard, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, unavailable(err, "failed to query cards")
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, unavailable(err, "failed to scan card")
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "failed to iterate cards")
	}
	return cards, nil
}

// CountDue counts the student's due cards.
func (db *DB) CountDue(ctx context.Context, studentID, subjectID string, now time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM flashcards WHERE student_id = ? AND next_review_at <= ?`
	args := []any{studentID, toMillis(now)}
	if subjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, subjectID)
	}
	var n int
	if err := db.conn.QueryRowContext(ctx, db.q(query), args...).Scan(&n); err != nil {
		return 0, unavailable(err, "failed to count due cards")
	}
	return n, nil
}

// ApplyReview updates the card, appends the event and, for a session answer,
// advances the session, all in one transaction.
func (db *DB) ApplyReview(ctx context.Context, w domain.ReviewWrite) (*domain.Flashcard, error) {
	var card *domain.Flashcard
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.updateCardScheduling(ctx, tx, w); err != nil {
			return err
		}
		if err := db.insertEvent(ctx, tx, w.Event); err != nil {
			return err
		}
		if w.Session != nil {
			if err := db.advanceSession(ctx, tx, w.StudentID, w.Session); err != nil {
				return err
			}
		}
		c, err := db.getCard(ctx, tx, w.StudentID, w.CardID)
		if err != nil {
			return err
		}
		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (db *DB) updateCardScheduling(ctx context.Context, tx *sql.Tx, w domain.ReviewWrite) error {
	res, err := tx.ExecContext(ctx, db.q(`
		UPDATE flashcards
		SET interval_days = ?, ease_factor = ?, repetition_count = ?, next_review_at = ?,
			review_count = ?, correct_count = ?, mastery_percent = ?,
			version = version + 1, updated_at = ?
		WHERE student_id = ? AND id = ? AND version = ?
	`),
		w.Scheduling.Interval,
		w.Scheduling.EaseFactor,
		w.Scheduling.RepetitionCount,
		toMillis(w.Scheduling.NextReviewAt),
		w.Stats.ReviewCount,
		w.Stats.CorrectCount,
		w.Stats.MasteryPercent,
		toMillis(w.Event.ReviewedAt),
		w.StudentID,
		w.CardID,
		w.ExpectedVersion,
	)
	if err != nil {
		return unavailable(err, "failed to update card %s", w.CardID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err, "failed to update card %s", w.CardID)
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: the card is gone or its version moved.
	if _, err := db.getCard(ctx, tx, w.StudentID, w.CardID); err != nil {
		return err
	}
	return errs.Conflict("card %s changed since version %d", w.CardID, w.ExpectedVersion)
}

// DeleteCard removes a card and its review history.
func (db *DB) DeleteCard(ctx context.Context, studentID, cardID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, db.q(`DELETE FROM flashcards WHERE student_id = ? AND id = ?`), studentID, cardID)
		if err != nil {
			return unavailable(err, "failed to delete card %s", cardID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable(err, "failed to delete card %s", cardID)
		}
		if n == 0 {
			return errs.NotFound("card", cardID)
		}
		if _, err := tx.ExecContext(ctx, db.q(`DELETE FROM review_events WHERE student_id = ? AND card_id = ?`), studentID, cardID); err != nil {
			return unavailable(err, "failed to delete history of card %s", cardID)
		}
		return nil
	})
}
