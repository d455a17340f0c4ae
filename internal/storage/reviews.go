package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/conorfennell/knolrev/internal/domain"
)

func (db *DB) insertEvent(ctx context.Context, tx *sql.Tx, e domain.ReviewEvent) error {
	_, err := tx.ExecContext(ctx, db.q(`
		INSERT INTO review_events (
			id, student_id, card_id, session_id, reviewed_at, was_correct, quality_rating,
			interval_before, interval_after, ease_factor_before, ease_factor_after
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		e.ID,
		e.StudentID,
		e.CardID,
		e.SessionID,
		toMillis(e.ReviewedAt),
		boolInt(e.WasCorrect),
		e.QualityRating,
		e.IntervalBefore,
		e.IntervalAfter,
		e.EaseFactorBefore,
		e.EaseFactorAfter,
	)
	if err != nil {
		return unavailable(err, "failed to insert review event for card %s", e.CardID)
	}
	return nil
}

// ReviewTimes returns the student's review timestamps at or after since, newest first.
func (db *DB) ReviewTimes(ctx context.Context, studentID string, since time.Time) ([]time.Time, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(`
		SELECT reviewed_at FROM review_events
		WHERE student_id = ? AND reviewed_at >= ?
		ORDER BY reviewed_at DESC
	`), studentID, toMillis(since))
	if err != nil {
		return nil, unavailable(err, "failed to query review times")
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, unavailable(err, "failed to scan review time")
		}
		times = append(times, fromMillis(ms))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "failed to iterate review times")
	}
	return times, nil
}

// CardHistory returns one card's review events, oldest first.
func (db *DB) CardHistory(ctx context.Context, studentID, cardID string) ([]domain.ReviewEvent, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(`
		SELECT id, student_id, card_id, session_id, reviewed_at, was_correct, quality_rating,
			interval_before, interval_after, ease_factor_before, ease_factor_after
		FROM review_events
		WHERE student_id = ? AND card_id = ?
		ORDER BY reviewed_at, id
	`), studentID, cardID)
	if err != nil {
		return nil, unavailable(err, "failed to query history of card %s", cardID)
	}
	defer rows.Close()

	var events []domain.ReviewEvent
	for rows.Next() {
		var (
			e          domain.ReviewEvent
			reviewedAt int64
			wasCorrect int
		)
		err := rows.Scan(
			&e.ID,
			&e.StudentID,
			&e.CardID,
			&e.SessionID,
			&reviewedAt,
			&wasCorrect,
			&e.QualityRating,
			&e.IntervalBefore,
			&e.IntervalAfter,
			&e.EaseFactorBefore,
			&e.EaseFactorAfter,
		)
		if err != nil {
			return nil, unavailable(err, "failed to scan review event")
		}
		e.ReviewedAt = fromMillis(reviewedAt)
		e.WasCorrect = wasCorrect != 0
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "failed to iterate review events")
	}
	return events, nil
}
