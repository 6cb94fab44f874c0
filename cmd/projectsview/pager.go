package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/shlex"
	"golang.org/x/term"
)

// startPager pipes listing output through the configured pager
// when out is a terminal. The returned wait closes the pipe and
// waits for the pager to exit. Without a pager, out is returned
// unchanged.
func (a *app) startPager(out io.Writer) (io.Writer, func() error) {
	noop := func() error { return nil }
	f, ok := out.(*os.File)
	if !ok || a.cfg.Pager == "" || !term.IsTerminal(int(f.Fd())) {
		return out, noop
	}

	args, err := pagerArgs(a.cfg.Pager)
	if err != nil || len(args) == 0 {
		a.logger.Warn("ignoring invalid pager command",
			"pager", a.cfg.Pager, "error", err)
		return out, noop
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = f
	cmd.Stderr = a.errOut
	stdin, err := cmd.StdinPipe()
	if err != nil {
		a.logger.Warn("pager unavailable", "error", err)
		return out, noop
	}
	if err := cmd.Start(); err != nil {
		a.logger.Warn("pager unavailable",
			"pager", args[0], "error", err)
		return out, noop
	}
	return stdin, func() error {
		_ = stdin.Close()
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("running pager %s: %w", args[0], err)
		}
		return nil
	}
}

// pagerArgs splits a pager command line the way startPager does.
func pagerArgs(command string) ([]string, error) {
	return shlex.Split(command)
}
