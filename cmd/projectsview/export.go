package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesm/projectsview/internal/report"
	"github.com/wesm/projectsview/internal/watcher"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		output       string
		withMessages bool
		watch        bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every project and conversation to JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.runExport(cmd.Context(), output, withMessages); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return a.watchExport(cmd.Context(), output, withMessages)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o",
		report.DefaultExportOutput, "Output file")
	cmd.Flags().BoolVarP(&withMessages, "with-messages", "m", false,
		"Include full message content (large output)")
	cmd.Flags().BoolVar(&watch, "watch", false,
		"Re-export whenever the input files change")
	return cmd
}

func (a *app) runExport(
	ctx context.Context, output string, withMessages bool,
) error {
	e, err := a.loadEngine()
	if err != nil {
		return err
	}
	if withMessages {
		report.WriteLargeExportNotice(a.out)
	}
	doc, err := report.BuildFullExport(ctx, e, a.reportOptions(withMessages))
	if err != nil {
		return fmt.Errorf("building export: %w", err)
	}
	size, err := report.WriteJSON(output, doc)
	if err != nil {
		return err
	}
	report.WriteExportSummary(a.out, output, size, doc, withMessages)
	return nil
}

// watchExport re-runs the export after each settled change to
// the input files until ctx is done. A failed re-export is
// logged and the previous output is left in place.
func (a *app) watchExport(
	ctx context.Context, output string, withMessages bool,
) error {
	changed := make(chan struct{}, 1)
	w, err := watcher.New(watcherDebounce, func(_ []string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	w.SetLogger(a.logger)
	if err := w.WatchFiles(
		a.cfg.ProjectsFile, a.cfg.ConversationsFile,
	); err != nil {
		return err
	}
	w.Start()
	defer w.Stop()

	fmt.Fprintf(a.out, "\nWatching %s and %s for changes (Ctrl-C to stop)\n",
		a.cfg.ProjectsFile, a.cfg.ConversationsFile)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := a.runExport(ctx, output, withMessages); err != nil {
				a.logger.Error("re-export failed", "error", err)
			}
		}
	}
}

func newExportProjectCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-project <project>",
		Short: "Export one project with full messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadEngine()
			if err != nil {
				return err
			}
			doc, err := report.BuildProjectExport(
				cmd.Context(), e, args[0], a.reportOptions(true),
			)
			if err != nil {
				return a.reportNotFound(err)
			}
			path := output
			if path == "" {
				path = report.DefaultProjectOutput(doc.Project.Name)
			}
			size, err := report.WriteJSON(path, doc)
			if err != nil {
				return err
			}
			report.WriteProjectExportSummary(a.out, path, size, doc)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "",
		"Output file (default <project_name>_conversations.json)")
	return cmd
}

func newExportNonProjectCmd(a *app) *cobra.Command {
	var (
		output       string
		withMessages bool
	)
	cmd := &cobra.Command{
		Use:   "export-non-project",
		Short: "Export conversations that belong to no project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.loadEngine()
			if err != nil {
				return err
			}
			if withMessages {
				report.WriteLargeExportNotice(a.out)
			}
			doc, err := report.BuildNonProjectExport(
				cmd.Context(), e, a.reportOptions(withMessages),
			)
			if err != nil {
				return fmt.Errorf("building export: %w", err)
			}
			size, err := report.WriteJSON(output, doc)
			if err != nil {
				return err
			}
			report.WriteNonProjectExportSummary(a.out, output, size, doc)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o",
		report.DefaultNonProjectOutput, "Output file")
	cmd.Flags().BoolVarP(&withMessages, "with-messages", "m", false,
		"Include full message content (large output)")
	return cmd
}
