package main

import (
	ostree "github.com/ostreego/ostree"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newCheckoutCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout COMMIT DEST_DIR",
		Short: "Check out a commit's tree into a directory",
		Args:  cobra.ExactArgs(2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return checkoutCmd(cfg, args[0], args[1])
	}
	return cmd
}

func checkoutCmd(cfg *globalFlags, commitArg, destDir string) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	csum, err := resolveCommitArg(r, commitArg)
	if err != nil {
		return err
	}
	return r.Checkout(csum, afero.NewOsFs(), destDir)
}
