// Package cli implements the knolrev commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knolrev/internal/config"
	"github.com/conorfennell/knolrev/internal/deck"
	"github.com/conorfennell/knolrev/internal/errs"
	"github.com/conorfennell/knolrev/internal/progress"
	"github.com/conorfennell/knolrev/internal/revision"
	"github.com/conorfennell/knolrev/internal/storage"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	studentID  string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "knolrev",
		Short:         "Spaced repetition revision sessions",
		Long:          "Schedules flashcard reviews with SM-2, runs revision sessions and reports progress. Output is JSON.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	def := config.Default()
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	pf.StringVarP(&g.studentID, "student", "s", "", "Student id")
	pf.String("driver", def.Database.Driver, "Database driver: sqlite, postgres or mysql")
	pf.String("db", def.Database.DSN, "Database DSN (a file path for sqlite)")
	pf.String("log-level", def.Log.Level, "Log level: debug, info, warn or error")
	pf.String("timezone", def.Progress.Timezone, "IANA timezone used for review streaks")
	pf.String("repos-dir", def.Deck.ReposDir, "Directory for git deck checkouts")

	root.AddCommand(
		newImportCmd(g),
		newDueCmd(g),
		newSessionCmd(g),
		newReviewCmd(g),
		newProgressCmd(g),
		newHistoryCmd(g),
		newCardCmd(g),
	)
	return root
}

// app is everything a command runs against.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Store
	manager  *revision.Manager
	progress *progress.Aggregator
	importer *deck.Importer
	loc      *time.Location
}

func (a *app) Close() error {
	return a.store.Close()
}

func openApp(cmd *cobra.Command, g *globals) (*app, error) {
	cfg, err := config.Load(g.configPath, cmd.Flags())
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeValidation, "failed to load config")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeValidation, "failed to load config")
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

	db, err := storage.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  db,
		manager: revision.NewManager(db, db,
			revision.WithLogger(logger),
			revision.WithDefaultMaxCards(cfg.Session.DefaultMaxCards),
			revision.WithMaxAttempts(cfg.Session.MaxAttempts),
		),
		progress: progress.NewAggregator(db, db,
			progress.WithLogger(logger),
			progress.WithMasteryThreshold(cfg.Progress.MasteryThreshold),
		),
		importer: deck.NewImporter(db, cfg.Deck.ReposDir,
			deck.WithLogger(logger),
			deck.WithGitProgress(cmd.ErrOrStderr()),
		),
		loc: loc,
	}, nil
}

// withApp opens the app for a student-scoped command and closes it afterwards.
func withApp(g *globals, fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if g.studentID == "" {
			return errs.Validation("--student is required")
		}
		a, err := openApp(cmd, g)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), cmd, a, args)
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

// qualityFlag reads --quality, where a negative value means "derive from --correct".
func qualityFlag(cmd *cobra.Command) *int {
	q, _ := cmd.Flags().GetInt("quality")
	if q < 0 {
		return nil
	}
	return &q
}
