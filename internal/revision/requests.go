package revision

import (
	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
	"github.com/conorfennell/knolrev/internal/sm2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// StartRequest opens a session over the student's due cards.
type StartRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SubjectID string `json:"subject_id,omitempty"`
	// MaxCards caps the selection. Nil selects the manager's default.
	MaxCards *int `json:"max_cards,omitempty" validate:"omitempty,gt=0"`
}

// AnswerRequest records the answer to one card of a session.
type AnswerRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	SessionID  string `json:"session_id" validate:"required"`
	CardID     string `json:"card_id" validate:"required"`
	WasCorrect bool   `json:"was_correct"`
	// QualityRating is the SM-2 grade. Nil derives it from WasCorrect.
	QualityRating *int `json:"quality_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// ManualReview records a review of one card outside any session.
type ManualReview struct {
	StudentID     string `json:"student_id" validate:"required"`
	CardID        string `json:"card_id" validate:"required"`
	WasCorrect    bool   `json:"was_correct"`
	QualityRating *int   `json:"quality_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// StartResult is a new session and the cards it selected, in order.
type StartResult struct {
	Session domain.RevisionSession `json:"session"`
	Cards   []domain.Flashcard     `json:"cards"`
}

// CaughtUp reports whether nothing was due when the session started.
func (r StartResult) CaughtUp() bool {
	return len(r.Cards) == 0
}

// AnswerResult is the outcome of one review.
type AnswerResult struct {
	Card            domain.Flashcard        `json:"card"`
	Scheduling      domain.Scheduling       `json:"scheduling"`
	WasCorrect      bool                    `json:"was_correct"`
	SessionComplete bool                    `json:"session_complete"`
	Session         *domain.RevisionSession `json:"session,omitempty"`
}

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return errs.Wrap(err, errs.CodeValidation, "invalid request")
	}
	return nil
}

func quality(rating *int, wasCorrect bool) int {
	if rating == nil {
		return sm2.QuickAnswer(wasCorrect)
	}
	return *rating
}
