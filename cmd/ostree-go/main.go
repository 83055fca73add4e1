// Command ostree-go is a CLI front end for the ostreego/ostree content-
// addressed tree store: init/commit/checkout/fsck/prune/refs/log/show,
// static-delta generate/apply/show/list, and remote add/remove/list. It
// generalizes the teacher's git-go CLI's root-command/subcommand
// wiring (persistent --repo flag, SilenceErrors/SilenceUsage, testable
// RunE bodies writing to cmd.OutOrStdout()) from git's object model to
// ostree's.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ostreego/ostree/internal/env"
	"github.com/ostreego/ostree/refs"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/cobra"
)

// Exit codes (§6): 0 success, 1 generic failure, 77 object/ref not
// found, distinguishing a partial repository from any other failure in
// scripts.
const (
	exitFailure  = 1
	exitNotFound = 77
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}

	root := newRootCmd(cwd, env.NewFromOs())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, refs.ErrNotFound) {
		return exitNotFound
	}
	return exitFailure
}

// globalFlags carries the state every subcommand needs: which
// repository to operate on and the process environment.
type globalFlags struct {
	repoPath string
	env      *env.Env
}

func newRootCmd(cwd string, e *env.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ostree-go",
		Short:         "content-addressed filesystem tree store",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg := &globalFlags{repoPath: cwd, env: e}
	cmd.PersistentFlags().StringVar(&cfg.repoPath, "repo", cwd, "Path to the repository.")

	cmd.AddCommand(newInitCmd(cfg))
	cmd.AddCommand(newCommitCmd(cfg))
	cmd.AddCommand(newCheckoutCmd(cfg))
	cmd.AddCommand(newFsckCmd(cfg))
	cmd.AddCommand(newPruneCmd(cfg))
	cmd.AddCommand(newRefsCmd(cfg))
	cmd.AddCommand(newLogCmd(cfg))
	cmd.AddCommand(newShowCmd(cfg))
	cmd.AddCommand(newStaticDeltaCmd(cfg))
	cmd.AddCommand(newPullCmd(cfg))
	cmd.AddCommand(newRemoteCmd(cfg))

	return cmd
}

func fprintln(quiet bool, out io.Writer, msg ...interface{}) {
	if !quiet {
		fmt.Fprintln(out, msg...)
	}
}
