package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
)

type queryer interface {
	queryRower
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const sessionColumns = `id, student_id, subject_id, answered_count, correct_count, status, started_at, ended_at, version`

func scanSession(row scanner) (*domain.RevisionSession, error) {
	var (
		s       domain.RevisionSession
		status  string
		started int64
		ended   sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.StudentID, &s.SubjectID, &s.Answered, &s.Correct, &status, &started, &ended, &s.Version)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SessionStatus(status)
	s.StartedAt = fromMillis(started)
	s.EndedAt = fromNullMillis(ended)
	return &s, nil
}

// CreateSession stores a session and its card selection.
func (db *DB) CreateSession(ctx context.Context, s *domain.RevisionSession) error {
	if s.StudentID == "" || s.ID == "" {
		return errs.Validation("session requires a student id and an id")
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, db.q(`
			INSERT INTO revision_sessions (`+sessionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			s.ID,
			s.StudentID,
			s.SubjectID,
			s.Answered,
			s.Correct,
			string(s.Status),
			toMillis(s.StartedAt),
			nullMillis(s.EndedAt),
			s.Version,
		)
		if err != nil {
			if db.dialect.IsUniqueViolation(err) {
				return errs.Conflict("session %s already exists", s.ID)
			}
			return unavailable(err, "failed to insert session %s", s.ID)
		}

		for _, c := range s.Cards {
			_, err := tx.ExecContext(ctx, db.q(`
				INSERT INTO session_cards (session_id, position, card_id, answered, was_correct, answered_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`), s.ID, c.Position, c.CardID, boolInt(c.Answered), boolInt(c.WasCorrect), nullMillis(c.AnsweredAt))
			if err != nil {
				return unavailable(err, "failed to insert card %s of session %s", c.CardID, s.ID)
			}
		}
		return nil
	})
}

// GetSession returns one of the student's sessions with its selection.
func (db *DB) GetSession(ctx context.Context, studentID, sessionID string) (*domain.RevisionSession, error) {
	return db.loadSession(ctx, db.conn, studentID, sessionID)
}

func (db *DB) loadSession(ctx context.Context, q queryer, studentID, sessionID string) (*domain.RevisionSession, error) {
	row := q.QueryRowContext(ctx, db.q(`
		SELECT `+sessionColumns+` FROM revision_sessions WHERE student_id = ? AND id = ?
	`), studentID, sessionID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("session", sessionID)
		}
		return nil, unavailable(err, "failed to find session %s", sessionID)
	}
	if s.Cards, err = db.sessionCards(ctx, q, sessionID); err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) sessionCards(ctx context.Context, q queryer, sessionID string) ([]domain.SessionCard, error) {
	rows, err := q.QueryContext(ctx, db.q(`
		SELECT card_id, position, answered, was_correct, answered_at
		FROM session_cards WHERE session_id = ? ORDER BY position
	`), sessionID)
	if err != nil {
		return nil, unavailable(err, "failed to query cards of session %s", sessionID)
	}
	defer rows.Close()

	cards := []domain.SessionCard{}
	for rows.Next() {
		var (
			c                    domain.SessionCard
			answered, wasCorrect int
			answeredAt           sql.NullInt64
		)
		if err := rows.Scan(&c.CardID, &c.Position, &answered, &wasCorrect, &answeredAt); err != nil {
			return nil, unavailable(err, "failed to scan session card")
		}
		c.Answered = answered != 0
		c.WasCorrect = wasCorrect != 0
		c.AnsweredAt = fromNullMillis(answeredAt)
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "failed to iterate session cards")
	}
	return cards, nil
}

// EndSession completes an active session if its version still matches.
func (db *DB) EndSession(ctx context.Context, studentID, sessionID string, expectedVersion int64, endedAt time.Time) (*domain.RevisionSession, error) {
	var out *domain.RevisionSession
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, db.q(`
			UPDATE revision_sessions SET status = ?, ended_at = ?, version = version + 1
			WHERE student_id = ? AND id = ? AND version = ? AND status = ?
		`), string(domain.SessionComplete), toMillis(endedAt), studentID, sessionID, expectedVersion, string(domain.SessionActive))
		if err != nil {
			return unavailable(err, "failed to end session %s", sessionID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable(err, "failed to end session %s", sessionID)
		}
		s, err := db.loadSession(ctx, tx, studentID, sessionID)
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.Conflict("session %s changed since version %d", sessionID, expectedVersion)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveSessions returns the student's active sessions, newest first.
func (db *DB) ActiveSessions(ctx context.Context, studentID string) ([]domain.RevisionSession, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(`
		SELECT `+sessionColumns+` FROM revision_sessions
		WHERE student_id = ? AND status = ?
		ORDER BY started_at DESC, id DESC
	`), studentID, string(domain.SessionActive))
	if err != nil {
		return nil, unavailable(err, "failed to query active sessions")
	}

	var sessions []domain.RevisionSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, unavailable(err, "failed to scan session")
		}
		sessions = append(sessions, *s)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, unavailable(err, "failed to iterate sessions")
	}

	// Selections are loaded after the cursor is closed; SQLite runs on one connection.
	for i := range sessions {
		if sessions[i].Cards, err = db.sessionCards(ctx, db.conn, sessions[i].ID); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (db *DB) advanceSession(ctx context.Context, tx *sql.Tx, studentID string, u *domain.SessionUpdate) error {
	s := u.Session
	res, err := tx.ExecContext(ctx, db.q(`
		UPDATE revision_sessions
		SET answered_count = ?, correct_count = ?, status = ?, ended_at = ?, version = version + 1
		WHERE student_id = ? AND id = ? AND version = ? AND status = ?
	`),
		s.Answered,
		s.Correct,
		string(s.Status),
		nullMillis(s.EndedAt),
		studentID,
		s.ID,
		u.ExpectedVersion,
		string(domain.SessionActive),
	)
	if err != nil {
		return unavailable(err, "failed to update session %s", s.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err, "failed to update session %s", s.ID)
	}
	if n == 0 {
		if _, err := db.loadSession(ctx, tx, studentID, s.ID); err != nil {
			return err
		}
		return errs.Conflict("session %s changed since version %d", s.ID, u.ExpectedVersion)
	}

	sc, ok := s.Card(u.CardID)
	if !ok || !sc.Answered {
		return errs.InvalidCard("card %s is not answered in session %s", u.CardID, s.ID)
	}
	res, err = tx.ExecContext(ctx, db.q(`
		UPDATE session_cards SET answered = 1, was_correct = ?, answered_at = ?
		WHERE session_id = ? AND card_id = ? AND answered = 0
	`), boolInt(sc.WasCorrect), nullMillis(sc.AnsweredAt), s.ID, u.CardID)
	if err != nil {
		return unavailable(err, "failed to mark card %s answered", u.CardID)
	}
	if n, err = res.RowsAffected(); err != nil {
		return unavailable(err, "failed to mark card %s answered", u.CardID)
	}
	if n == 0 {
		return errs.Conflict("card %s was already answered in session %s", u.CardID, s.ID)
	}
	return nil
}
