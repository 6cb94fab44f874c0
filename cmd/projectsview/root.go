package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wesm/projectsview/internal/config"
	"github.com/wesm/projectsview/internal/correlate"
	"github.com/wesm/projectsview/internal/parser"
	"github.com/wesm/projectsview/internal/report"
)

// errReported is returned after a failure has already been
// explained on stderr; main exits 1 without printing it again.
var errReported = errors.New("error already reported")

const watcherDebounce = 500 * time.Millisecond

// app carries the state shared by every command of one run.
type app struct {
	out      io.Writer
	errOut   io.Writer
	cfg      config.Config
	loc      *time.Location
	logger   *slog.Logger
	closeLog func() error
}

func run(
	ctx context.Context, args []string, stdout, stderr io.Writer,
) error {
	a := &app{
		out:      stdout,
		errOut:   stderr,
		logger:   slog.Default(),
		closeLog: func() error { return nil },
	}
	defer func() { _ = a.closeLog() }()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "projectsview",
		Short: "Correlate a ChatGPT export with its projects",
		Long: `projectsview reads the projects and conversations documents of a
ChatGPT data export, reconstructs each conversation from its message
tree and groups conversations by project.

Configuration is layered: defaults, then $PROJECTSVIEW_DATA_DIR/config.json
(default ~/.projectsview/config.json), then PROJECTSVIEW_* environment
variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return a.setup(cmd)
		},
	}
	config.RegisterGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		newListProjectsCmd(a),
		newListCmd(a),
		newExportCmd(a),
		newExportProjectCmd(a),
		newExportNonProjectCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads and validates configuration and installs the run
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.loc = loc

	logger, closeLog := config.SetupLogger(a.errOut, cfg.LogFile, cfg.Level())
	a.logger = logger.With("run", uuid.NewString())
	a.closeLog = closeLog
	slog.SetDefault(a.logger)
	return nil
}

// loadEngine reads both input documents and correlates them.
func (a *app) loadEngine() (*correlate.Engine, error) {
	start := time.Now()
	archive, err := parser.LoadArchive(
		a.cfg.ProjectsFile, a.cfg.ConversationsFile,
	)
	if err != nil {
		return nil, err
	}
	e := correlate.FromArchive(archive)
	t := e.Totals()
	a.logger.Debug("archive loaded",
		"projects", t.Projects,
		"conversations", t.Conversations,
		"duration", time.Since(start),
	)
	return e, nil
}

func (a *app) reportOptions(withMessages bool) report.Options {
	return report.Options{
		WithMessages: withMessages,
		Policy:       a.cfg.Policy(),
		Workers:      a.cfg.Workers,
	}
}

// reportNotFound prints resolution guidance and converts the
// error to errReported. Other errors pass through.
func (a *app) reportNotFound(err error) error {
	var nf *correlate.NotFoundError
	if !errors.As(err, &nf) {
		return err
	}
	report.WriteNotFound(a.errOut, nf)
	return errReported
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "projectsview %s (commit %s, built %s)\n",
				version, commit, buildDate)
		},
	}
}
