package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knolrev/internal/deck"
	"github.com/conorfennell/knolrev/internal/domain"
	"github.com/conorfennell/knolrev/internal/revision"
)

func newImportCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dir-or-git-url>",
		Short: "Import cards from a markdown deck",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().String("subject", "", "Subject for cards without an S: line")
	cmd.Flags().Bool("prune", false, "Delete cards in --subject that are no longer in the deck")

	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		prune, _ := cmd.Flags().GetBool("prune")
		res, err := a.importer.Import(ctx, args[0], deck.Options{
			StudentID: g.studentID,
			SubjectID: subject,
			Prune:     prune,
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd, res)
	})
	return cmd
}

func newDueCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List cards due for review",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("subject", "", "Only cards in this subject")
	cmd.Flags().Int("limit", 0, "Maximum cards to list (0 lists all)")

	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		limit, _ := cmd.Flags().GetInt("limit")

		count, err := a.progress.CardsDue(ctx, g.studentID, subject)
		if err != nil {
			return err
		}
		cards, err := a.store.DueCards(ctx, domain.DueQuery{
			StudentID: g.studentID,
			SubjectID: subject,
			Now:       time.Now(),
			Limit:     limit,
		})
		if err != nil {
			return err
		}
		if cards == nil {
			cards = []domain.Flashcard{}
		}
		return writeJSON(cmd, map[string]any{"due": count, "cards": cards})
	})
	return cmd
}

func newReviewCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <card-id>",
		Short: "Review one card outside a session",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Bool("correct", false, "The answer was correct")
	cmd.Flags().Int("quality", -1, "SM-2 quality 0-5 (default derives from --correct)")

	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		correct, _ := cmd.Flags().GetBool("correct")
		res, err := a.manager.ReviewCard(ctx, revision.ManualReview{
			StudentID:     g.studentID,
			CardID:        args[0],
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

func newHistoryCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <card-id>",
		Short: "Show a card and its review events",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		card, err := a.store.GetCard(ctx, g.studentID, args[0])
		if err != nil {
			return err
		}
		events, err := a.store.CardHistory(ctx, g.studentID, args[0])
		if err != nil {
			return err
		}
		if events == nil {
			events = []domain.ReviewEvent{}
		}
		return writeJSON(cmd, map[string]any{"card": card, "events": events})
	})
	return cmd
}

func newCardCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Manage cards",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cards",
		Args:  cobra.NoArgs,
	}
	list.Flags().String("subject", "", "Only cards in this subject")
	list.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		cards, err := a.store.ListCards(ctx, domain.CardFilter{StudentID: g.studentID, SubjectID: subject})
		if err != nil {
			return err
		}
		if cards == nil {
			cards = []domain.Flashcard{}
		}
		return writeJSON(cmd, cards)
	})

	del := &cobra.Command{
		Use:   "delete <card-id>",
		Short: "Delete a card and its review history",
		Args:  cobra.ExactArgs(1),
	}
	del.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		if err := a.store.DeleteCard(ctx, g.studentID, args[0]); err != nil {
			return err
		}
		a.logger.Info("card deleted", "card_id", args[0], "student_id", g.studentID)
		return writeJSON(cmd, map[string]any{"ok": true, "card_id": args[0]})
	})

	cmd.AddCommand(list, del)
	return cmd
}
