package domain

import (
	"time"

	"github.com/conorfennell/knolrev/internal/errs"
)

// SessionStatus is the lifecycle state of a revision session.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionComplete SessionStatus = "complete"
)

// SessionCard is one selected card of a session.
type SessionCard struct {
	CardID     string     `json:"card_id"`
	Position   int        `json:"position"`
	Answered   bool       `json:"answered"`
	WasCorrect bool       `json:"was_correct"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// RevisionSession is a bounded run of reviews over a fixed card selection.
type RevisionSession struct {
	ID        string        `json:"id"`
	StudentID string        `json:"student_id"`
	SubjectID string        `json:"subject_id,omitempty"`
	Cards     []SessionCard `json:"cards"`
	Answered  int           `json:"answered"`
	Correct   int           `json:"correct"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Version   int64         `json:"version"`
}

// NewSession selects cardIDs in order. An empty selection is complete at once.
func NewSession(id, studentID, subjectID string, cardIDs []string, now time.Time) RevisionSession {
	s := RevisionSession{
		ID:        id,
		StudentID: studentID,
		SubjectID: subjectID,
		Cards:     make([]SessionCard, len(cardIDs)),
		Status:    SessionActive,
		StartedAt: now,
		Version:   1,
	}
	for i, cid := range cardIDs {
		s.Cards[i] = SessionCard{CardID: cid, Position: i}
	}
	if len(cardIDs) == 0 {
		s.Status = SessionComplete
		s.EndedAt = &now
	}
	return s
}

// IsComplete reports whether the session reached its terminal state.
func (s RevisionSession) IsComplete() bool {
	return s.Status == SessionComplete
}

// Card returns the selection entry for cardID.
func (s RevisionSession) Card(cardID string) (SessionCard, bool) {
	for _, c := range s.Cards {
		if c.CardID == cardID {
			return c, true
		}
	}
	return SessionCard{}, false
}

// Remaining returns the unanswered card ids in selection order.
func (s RevisionSession) Remaining() []string {
	var ids []string
	for _, c := range s.Cards {
		if !c.Answered {
			ids = append(ids, c.CardID)
		}
	}
	return ids
}

// CheckAnswerable reports why cardID cannot be answered now, if it cannot.
func (s RevisionSession) CheckAnswerable(cardID string) error {
	if s.IsComplete() {
		return errs.InvalidState("session %s is complete", s.ID)
	}
	c, ok := s.Card(cardID)
	if !ok {
		return errs.InvalidCard("card %s is not part of session %s", cardID, s.ID)
	}
	if c.Answered {
		return errs.InvalidCard("card %s was already answered in session %s", cardID, s.ID)
	}
	return nil
}

// WithAnswer returns the session after cardID is answered at the given time.
// The receiver is not modified. The last unanswered card completes the session.
func (s RevisionSession) WithAnswer(cardID string, wasCorrect bool, at time.Time) (RevisionSession, error) {
	if err := s.CheckAnswerable(cardID); err != nil {
		return s, err
	}
	out := s.clone()
	for i := range out.Cards {
		if out.Cards[i].CardID == cardID {
			answeredAt := at
			out.Cards[i].Answered = true
			out.Cards[i].WasCorrect = wasCorrect
			out.Cards[i].AnsweredAt = &answeredAt
			break
		}
	}
	out.Answered++
	if wasCorrect {
		out.Correct++
	}
	if out.Answered >= len(out.Cards) {
		out.Status = SessionComplete
		out.EndedAt = &at
	}
	return out, nil
}

// Ended returns the session moved to complete at the given time.
// Ending a complete session returns it unchanged.
func (s RevisionSession) Ended(at time.Time) RevisionSession {
	if s.IsComplete() {
		return s
	}
	out := s.clone()
	out.Status = SessionComplete
	out.EndedAt = &at
	return out
}

func (s RevisionSession) clone() RevisionSession {
	out := s
	out.Cards = make([]SessionCard, len(s.Cards))
	copy(out.Cards, s.Cards)
	if s.EndedAt != nil {
		v := *s.EndedAt
		out.EndedAt = &v
	}
	return out
}
