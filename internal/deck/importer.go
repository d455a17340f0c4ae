package deck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
)

// Store is the card access an import needs.
type Store interface {
	CreateCard(ctx context.Context, card *domain.Flashcard) error
	ListCards(ctx context.Context, f domain.CardFilter) ([]domain.Flashcard, error)
	DeleteCard(ctx context.Context, studentID, cardID string) error
}

// Options scopes one import.
type Options struct {
	StudentID string
	// SubjectID applies to entries without an "S:" line.
	SubjectID string
	// Prune deletes the student's cards in SubjectID that the source no longer contains.
	Prune bool
}

// Result counts what an import did.
type Result struct {
	Source  string   `json:"source"`
	Parsed  int      `json:"parsed"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Pruned  int      `json:"pruned"`
	Errors  []string `json:"errors,omitempty"`
	// PruneSkipped is set when a file could not be read, so pruning was not safe.
	PruneSkipped bool `json:"prune_skipped,omitempty"`
}

// Importer creates cards from deck sources. New cards get first-review
// scheduling; existing cards are never modified.
type Importer struct {
	store    Store
	reposDir string
	now      func() time.Time
	logger   *slog.Logger
	progress io.Writer
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ImporterOption {
	return func(i *Importer) { i.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) ImporterOption {
	return func(i *Importer) { i.now = now }
}

// WithGitProgress sends clone and pull progress to w.
func WithGitProgress(w io.Writer) ImporterOption {
	return func(i *Importer) { i.progress = w }
}

// NewImporter returns an importer that checks git sources out under reposDir.
func NewImporter(store Store, reposDir string, opts ...ImporterOption) *Importer {
	i := &Importer{
		store:    store,
		reposDir: reposDir,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import reads source, a local directory or a git URL, into the student's cards.
func (i *Importer) Import(ctx context.Context, source string, opts Options) (*Result, error) {
	if opts.StudentID == "" {
		return nil, errs.Validation("student id is required")
	}
	if opts.Prune && opts.SubjectID == "" {
		return nil, errs.Validation("pruning requires a subject")
	}

	dir := source
	if IsGitURL(source) {
		local, err := LocalPath(i.reposDir, source)
		if err != nil {
			return nil, errs.Validation("%v", err)
		}
		i.logger.Info("syncing git source", "url", source, "path", local)
		if err := Sync(ctx, source, local, i.progress); err != nil {
			return nil, err
		}
		dir = local
	}
	return i.importDir(ctx, source, dir, opts)
}

func (i *Importer) importDir(ctx context.Context, source, dir string, opts Options) (*Result, error) {
	res := &Result{Source: source}
	seen := make(map[string]bool)
	unreadable := 0
	now := i.now()

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		entries, err := ParseFile(path)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("parsing %s: %v", path, err))
			unreadable++
			return nil
		}
		for _, e := range entries {
			res.Parsed++
			if strings.TrimSpace(e.Back) == "" {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: card %q has no answer", path, e.Front))
				continue
			}
			if err := i.create(ctx, e, opts, now, seen, res); err != nil {
				return err
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	switch {
	case opts.Prune && unreadable > 0:
		// Cards from an unreadable file were never seen and would lose their history.
		i.logger.Warn("prune skipped", "source", source, "unreadable_files", unreadable)
		res.PruneSkipped = true
	case opts.Prune:
		if err := i.prune(ctx, opts, seen, res); err != nil {
			return nil, err
		}
	}

	i.logger.Info("import complete",
		"source", source,
		"student_id", opts.StudentID,
		"parsed", res.Parsed,
		"created", res.Created,
		"skipped", res.Skipped,
		"pruned", res.Pruned,
		"errors", len(res.Errors),
	)
	return res, nil
}

// create stores one entry. Storage outages abort the import; anything
// else is recorded and the walk goes on.
func (i *Importer) create(ctx context.Context, e Entry, opts Options, now time.Time, seen map[string]bool, res *Result) error {
	id := CardID(e)
	if seen[id] {
		res.Skipped++
		return nil
	}
	seen[id] = true

	subject := opts.SubjectID
	if e.Subject != "" {
		subject = e.Subject
	}
	card := domain.NewFlashcard(id, opts.StudentID, subject, e.Front, e.Back, now)
	err := i.store.CreateCard(ctx, &card)
	switch {
	case err == nil:
		i.logger.Debug("card created", "card_id", id, "subject_id", subject)
		res.Created++
	case errors.Is(err, errs.ErrConflict):
		res.Skipped++
	case errors.Is(err, errs.ErrUnavailable):
		return err
	default:
		res.Errors = append(res.Errors, fmt.Sprintf("creating card %s: %v", id, err))
	}
	return nil
}

func (i *Importer) prune(ctx context.Context, opts Options, seen map[string]bool, res *Result) error {
	cards, err := i.store.ListCards(ctx, domain.CardFilter{StudentID: opts.StudentID, SubjectID: opts.SubjectID})
	if err != nil {
		return err
	}
	for _, c := range cards {
		if seen[c.ID] {
			continue
		}
		if err := i.store.DeleteCard(ctx, opts.StudentID, c.ID); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			i.logger.Warn("failed to delete orphaned card", "card_id", c.ID, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("deleting card %s: %v", c.ID, err))
			continue
		}
		i.logger.Info("orphaned card deleted", "card_id", c.ID)
		res.Pruned++
	}
	return nil
}
