package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newProgressCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Report mastery, streak and due counts",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("subject", "", "Report a single subject's mastery")

	cmd.RunE = withApp(g, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		if subject, _ := cmd.Flags().GetString("subject"); subject != "" {
			m, err := a.progress.SubjectMastery(ctx, g.studentID, subject)
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]any{"subject_id": subject, "mastery": m})
		}

		r, err := a.progress.Report(ctx, g.studentID, a.loc)
		if err != nil {
			return err
		}
		return writeJSON(cmd, r)
	})
	return cmd
}
