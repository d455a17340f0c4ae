package deck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
	"github.com/conorfennell/knolrev/internal/storage/memstore"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestImporter(store Store, reposDir string) *Importer {
	return NewImporter(store, reposDir,
		WithClock(func() time.Time { return t0 }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestImportDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cells.md", "Q: Powerhouse of the cell?\nA: Mitochondria\n---\nQ: Unit of life?\nA: Cell\n")
	writeFile(t, dir, "nested/chem.md", "Q: H2O?\nA: Water\nS: chem\n")
	writeFile(t, dir, "nested/notes.txt", "Q: ignored\nA: not markdown\n")
	writeFile(t, dir, "broken.md", "Q: no answer here\n")

	store := memstore.New()
	imp := newTestImporter(store, t.TempDir())
	ctx := context.Background()

	res, err := imp.Import(ctx, dir, Options{StudentID: "alice", SubjectID: "bio"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Parsed)
	assert.Equal(t, 3, res.Created)
	assert.Len(t, res.Errors, 1)

	bio, err := store.ListCards(ctx, domain.CardFilter{StudentID: "alice", SubjectID: "bio"})
	require.NoError(t, err)
	assert.Len(t, bio, 2)
	for _, c := range bio {
		assert.Equal(t, 1, c.Scheduling.Interval)
		assert.Equal(t, 2.5, c.Scheduling.EaseFactor)
		assert.True(t, c.Scheduling.NextReviewAt.Equal(t0), "new cards are due immediately")
	}

	chem, err := store.ListCards(ctx, domain.CardFilter{StudentID: "alice", SubjectID: "chem"})
	require.NoError(t, err)
	require.Len(t, chem, 1)
	assert.Equal(t, CardID(Entry{Front: "H2O?", Back: "Water"}), chem[0].ID)

	again, err := imp.Import(ctx, dir, Options{StudentID: "alice", SubjectID: "bio"})
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Equal(t, 3, again.Skipped, "re-import is idempotent")
}

func TestImportKeepsReviewedState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deck.md", "Q: Q1\nA: A1\n")

	store := memstore.New()
	imp := newTestImporter(store, t.TempDir())
	ctx := context.Background()
	_, err := imp.Import(ctx, dir, Options{StudentID: "alice"})
	require.NoError(t, err)

	id := CardID(Entry{Front: "Q1", Back: "A1"})
	card, err := store.GetCard(ctx, "alice", id)
	require.NoError(t, err)
	sched := card.Scheduling
	sched.Interval = 6
	_, err = store.ApplyReview(ctx, domain.ReviewWrite{
		StudentID: "alice", CardID: id, ExpectedVersion: card.Version,
		Scheduling: sched, Stats: card.Stats.Record(true),
		Event: domain.ReviewEvent{ID: "e1", CardID: id, StudentID: "alice", ReviewedAt: t0},
	})
	require.NoError(t, err)

	_, err = imp.Import(ctx, dir, Options{StudentID: "alice"})
	require.NoError(t, err)
	card, err = store.GetCard(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, 6, card.Scheduling.Interval)
	assert.Equal(t, 1, card.Stats.ReviewCount)
}

func TestImportPrune(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deck.md", "Q: Keep\nA: 1\n---\nQ: Drop\nA: 2\n")

	store := memstore.New()
	imp := newTestImporter(store, t.TempDir())
	ctx := context.Background()

	_, err := imp.Import(ctx, dir, Options{StudentID: "alice", SubjectID: "bio"})
	require.NoError(t, err)
	other := domain.NewFlashcard("other-subject", "alice", "chem", "Q", "A", t0)
	require.NoError(t, store.CreateCard(ctx, &other))

	writeFile(t, dir, "deck.md", "Q: Keep\nA: 1\n")
	res, err := imp.Import(ctx, dir, Options{StudentID: "alice", SubjectID: "bio", Prune: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned)

	dropped := CardID(Entry{Front: "Drop", Back: "2"})
	_, err = store.GetCard(ctx, "alice", dropped)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	_, err = store.GetCard(ctx, "alice", "other-subject")
	assert.NoError(t, err, "other subjects are left alone")

	_, err = imp.Import(ctx, dir, Options{StudentID: "alice", Prune: true})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	_, err = imp.Import(ctx, dir, Options{})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestImportPruneSkippedWhenFileUnreadable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Q: one\nA: 1\n---\nQ: two\nA: 2\n")

	store := memstore.New()
	imp := newTestImporter(store, t.TempDir())
	ctx := context.Background()
	_, err := imp.Import(ctx, dir, Options{StudentID: "alice", SubjectID: "bio"})
	require.NoError(t, err)

	// A line longer than the scanner's token limit fails the whole file.
	writeFile(t, dir, "a.md", "Q: one\nA: 1\n---\nQ: "+strings.Repeat("x", 70000)+"\nA: 2\n")
	res, err := imp.Import(ctx, dir, Options{StudentID: "alice", SubjectID: "bio", Prune: true})
	require.NoError(t, err)
	assert.Len(t, res.Errors, 1)
	assert.True(t, res.PruneSkipped)
	assert.Zero(t, res.Pruned)

	cards, err := store.ListCards(ctx, domain.CardFilter{StudentID: "alice", SubjectID: "bio"})
	require.NoError(t, err)
	assert.Len(t, cards, 2, "cards from the unreadable file are kept")
}

func TestGitURLs(t *testing.T) {
	tests := []struct {
		url  string
		git  bool
		path string
	}{
		{"https://github.com/owner/deck.git", true, "repos/github.com/owner/deck"},
		{"git@github.com:owner/deck.git", true, "repos/github.com/owner/deck"},
		{"file:///srv/decks/bio.git", true, "repos/local/bio"},
		{"./decks/bio", false, ""},
		{"/home/alice/decks", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.git, IsGitURL(tt.url))
			if !tt.git {
				return
			}
			got, err := LocalPath("repos", tt.url)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.path), got)
		})
	}
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, body string) {
	t.Helper()
	writeFile(t, dir, name, body)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "knolrev", Email: "knolrev@example.com", When: t0},
	})
	require.NoError(t, err)
}

func TestImportGitSource(t *testing.T) {
	// The file transport shells out to git-upload-pack.
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	src := filepath.Join(t.TempDir(), "deck")
	repo, err := git.PlainInit(src, false)
	require.NoError(t, err)
	commitFile(t, repo, src, "deck.md", "Q: Q1\nA: A1\n")

	store := memstore.New()
	reposDir := t.TempDir()
	imp := newTestImporter(store, reposDir)
	ctx := context.Background()
	url := "file://" + filepath.ToSlash(src)

	res, err := imp.Import(ctx, url, Options{StudentID: "alice", SubjectID: "bio"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.DirExists(t, filepath.Join(reposDir, "local", "deck"))

	commitFile(t, repo, src, "more.md", "Q: Q2\nA: A2\n")
	res, err = imp.Import(ctx, url, Options{StudentID: "alice", SubjectID: "bio"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created, "pull picked up the new file")
	assert.Equal(t, 1, res.Skipped)
}
