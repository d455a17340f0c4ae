package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knolrev/internal/config"
	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/errs"
	"github.com/conorfennell/knolrev/internal/revision"
)

// sessionView is a session together with the card to answer next.
type sessionView struct {
	Session  *domain.RevisionSession `json:"session"`
	NextCard *domain.Flashcard       `json:"next_card,omitempty"`
}

func newSessionCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Run revision sessions",
	}
	cmd.AddCommand(
		newSessionStartCmd(g),
		newSessionAnswerCmd(g),
		newSessionEndCmd(g),
		newSessionShowCmd(g),
		newSessionResumeCmd(g),
	)
	return cmd
}

func newSessionStartCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session over the cards due now",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("subject", "", "Only cards in this subject")
	cmd.Flags().Int("max-cards", config.Default().Session.DefaultMaxCards, "Maximum cards in the session (default from session.default_max_cards)")

	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		maxCards := a.cfg.Session.DefaultMaxCards
		if cmd.Flags().Changed("max-cards") {
			maxCards, _ = cmd.Flags().GetInt("max-cards")
		}
		res, err := a.manager.StartSession(ctx, revision.StartRequest{
			StudentID: g.studentID,
			SubjectID: subject,
			MaxCards:  &maxCards,
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd, map[string]any{
			"session":   res.Session,
			"cards":     res.Cards,
			"caught_up": res.CaughtUp(),
		})
	})
	return cmd
}

func newSessionAnswerCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer <session-id> <card-id>",
		Short: "Answer one card of a session",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().Bool("correct", false, "The answer was correct")
	cmd.Flags().Int("quality", -1, "SM-2 quality 0-5 (default derives from --correct)")

	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		correct, _ := cmd.Flags().GetBool("correct")
		res, err := a.manager.SubmitAnswer(ctx, revision.AnswerRequest{
			StudentID:     g.studentID,
			SessionID:     args[0],
			CardID:        args[1],
			WasCorrect:    correct,
			QualityRating: qualityFlag(cmd),
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd, res)
	})
	return cmd
}

func newSessionEndCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "End a session, leaving remaining cards unanswered",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		sess, err := a.manager.EndSession(ctx, g.studentID, args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd, sess)
	})
	return cmd
}

func newSessionShowCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its next card",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		sess, err := a.manager.GetSession(ctx, g.studentID, args[0])
		if err != nil {
			return err
		}
		view, err := withNextCard(ctx, a, sess)
		if err != nil {
			return err
		}
		return writeJSON(cmd, view)
	})
	return cmd
}

func newSessionResumeCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Show the most recent active session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		sess, err := a.manager.ResumeSession(ctx, g.studentID)
		if err != nil {
			return err
		}
		view, err := withNextCard(ctx, a, sess)
		if err != nil {
			return err
		}
		return writeJSON(cmd, view)
	})
	return cmd
}

func withNextCard(ctx context.Context, a *app, sess *domain.RevisionSession) (*sessionView, error) {
	view := &sessionView{Session: sess}
	if sess.IsComplete() {
		return view, nil
	}
	next, err := a.manager.NextCard(ctx, sess.StudentID, sess.ID)
	switch {
	case err == nil:
		view.NextCard = next
	case errors.Is(err, errs.ErrInvalidCard):
		// Every remaining card was deleted; the session can only be ended.
	default:
		return nil, err
	}
	return view, nil
}
