package main

import (
	"github.com/spf13/cobra"

	"github.com/wesm/projectsview/internal/report"
)

func newListProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-projects",
		Short: "List projects with conversation counts and activity",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			e, err := a.loadEngine()
			if err != nil {
				return err
			}
			report.WriteProjectTable(a.out, e.RankedStats(), e.Totals(), a.loc)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var withMessages bool
	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List a project's conversations, most recent first",
		Long: `List the conversations of one project. The project is matched by
exact id, then exact name (case insensitive), then the first project
whose name contains the query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			e, err := a.loadEngine()
			if err != nil {
				return err
			}
			p, convs, err := e.ConversationsFor(args[0])
			if err != nil {
				return a.reportNotFound(err)
			}

			out, wait := a.startPager(a.out)
			report.WriteConversationList(
				out, p, convs, a.reportOptions(withMessages), a.loc,
			)
			return wait()
		},
	}
	cmd.Flags().BoolVarP(&withMessages, "with-messages", "m", false,
		"Show message content")
	return cmd
}
