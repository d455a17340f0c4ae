// Package progress derives read-only learning metrics from cards and their
// review history.
package progress

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
)

// CardStore is the card access the aggregator needs.
type CardStore interface {
	ListCards(ctx context.Context, f domain.CardFilter) ([]domain.Flashcard, error)
	CountDue(ctx context.Context, studentID, subjectID string, now time.Time) (int, error)
}

// HistoryStore is the review history access the aggregator needs.
type HistoryStore interface {
	ReviewTimes(ctx context.Context, studentID string, since time.Time) ([]time.Time, error)
}

// Mastery is a review-count weighted mastery figure.
type Mastery struct {
	// Percent is nil when no card has been reviewed.
	Percent       *float64 `json:"percent"`
	ReviewedCards int      `json:"reviewed_cards"`
	Reviews       int      `json:"reviews"`
}

// SubjectProgress summarizes one subject.
type SubjectProgress struct {
	SubjectID     string  `json:"subject_id"`
	Mastery       Mastery `json:"mastery"`
	Cards         int     `json:"cards"`
	ReviewedCards int     `json:"reviewed_cards"`
	MasteredCards int     `json:"mastered_cards"`
	DueCards      int     `json:"due_cards"`
}

// Report is a student's full progress snapshot.
type Report struct {
	StudentID     string            `json:"student_id"`
	Overall       Mastery           `json:"overall"`
	Streak        int               `json:"streak_days"`
	DueCards      int               `json:"due_cards"`
	MasteredCards int               `json:"mastered_cards"`
	Subjects      []SubjectProgress `json:"subjects"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// Aggregator computes progress metrics.
type Aggregator struct {
	cards     CardStore
	history   HistoryStore
	now       func() time.Time
	logger    *slog.Logger
	threshold int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithMasteryThreshold sets the mastery percent at which a card counts as mastered.
func WithMasteryThreshold(percent int) Option {
	return func(a *Aggregator) {
		if percent > 0 && percent <= 100 {
			a.threshold = percent
		}
	}
}

// NewAggregator returns an aggregator over the given stores.
func NewAggregator(cards CardStore, history HistoryStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		cards:     cards,
		history:   history,
		now:       time.Now,
		logger:    slog.Default(),
		threshold: domain.DefaultMasteryThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// weighted returns sum(mastery * reviews) / sum(reviews) over reviewed cards.
func weighted(cards []domain.Flashcard) Mastery {
	var m Mastery
	var sum float64
	for _, c := range cards {
		if !c.Reviewed() {
			continue
		}
		m.ReviewedCards++
		m.Reviews += c.Stats.ReviewCount
		sum += float64(c.Stats.MasteryPercent * c.Stats.ReviewCount)
	}
	if m.Reviews > 0 {
		p := sum / float64(m.Reviews)
		m.Percent = &p
	}
	return m
}

// OverallMastery is the weighted mastery across all the student's cards.
func (a *Aggregator) OverallMastery(ctx context.Context, studentID string) (Mastery, error) {
	if studentID == "" {
		return Mastery{}, errs.Validation("student id is required")
	}
	cards, err := a.cards.ListCards(ctx, domain.CardFilter{StudentID: studentID})
	if err != nil {
		return Mastery{}, err
	}
	return weighted(cards), nil
}

// SubjectMastery is the weighted mastery of one subject.
func (a *Aggregator) SubjectMastery(ctx context.Context, studentID, subjectID string) (Mastery, error) {
	if studentID == "" || subjectID == "" {
		return Mastery{}, errs.Validation("student id and subject id are required")
	}
	cards, err := a.cards.ListCards(ctx, domain.CardFilter{StudentID: studentID, SubjectID: subjectID})
	if err != nil {
		return Mastery{}, err
	}
	return weighted(cards), nil
}

// SubjectProgress summarizes every subject the student has cards in, ordered
// by subject id. Cards without a subject are grouped under the empty id.
func (a *Aggregator) SubjectProgress(ctx context.Context, studentID string) ([]SubjectProgress, error) {
	if studentID == "" {
		return nil, errs.Validation("student id is required")
	}
	cards, err := a.cards.ListCards(ctx, domain.CardFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}

	now := a.now()
	bySubject := make(map[string][]domain.Flashcard)
	for _, c := range cards {
		bySubject[c.SubjectID] = append(bySubject[c.SubjectID], c)
	}

	out := make([]SubjectProgress, 0, len(bySubject))
	for subject, group := range bySubject {
		p := SubjectProgress{
			SubjectID: subject,
			Mastery:   weighted(group),
			Cards:     len(group),
		}
		for _, c := range group {
			if c.Reviewed() {
				p.ReviewedCards++
			}
			if c.Mastered(a.threshold) {
				p.MasteredCards++
			}
			if c.Due(now) {
				p.DueCards++
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

// CardsDue counts the student's due cards, optionally within one subject.
func (a *Aggregator) CardsDue(ctx context.Context, studentID, subjectID string) (int, error) {
	if studentID == "" {
		return 0, errs.Validation("student id is required")
	}
	return a.cards.CountDue(ctx, studentID, subjectID, a.now())
}

// Report gathers every metric for the student concurrently.
func (a *Aggregator) Report(ctx context.Context, studentID string, loc *time.Location) (*Report, error) {
	if studentID == "" {
		return nil, errs.Validation("student id is required")
	}
	r := &Report{StudentID: studentID, GeneratedAt: a.now()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := a.OverallMastery(ctx, studentID)
		r.Overall = m
		return err
	})
	g.Go(func() error {
		n, err := a.Streak(ctx, studentID, loc)
		r.Streak = n
		return err
	})
	g.Go(func() error {
		n, err := a.CardsDue(ctx, studentID, "")
		r.DueCards = n
		return err
	})
	g.Go(func() error {
		subjects, err := a.SubjectProgress(ctx, studentID)
		r.Subjects = subjects
		return err
	})
	if err := g.Wait(); err != nil {
		a.logger.Error("progress report failed", "student_id", studentID, "error", err)
		return nil, err
	}

	for _, s := range r.Subjects {
		r.MasteredCards += s.MasteredCards
	}
	return r, nil
}
