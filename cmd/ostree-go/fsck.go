package main

import (
	"fmt"

	ostree "github.com/ostreego/ostree"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

var errFsckFoundIssues = xerrors.New("fsck: one or more objects failed validation")

func newFsckCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fsck",
		Short: "Validate every object in the repository",
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return fsckCmd(cmd, cfg)
	}
	return cmd
}

func fsckCmd(cmd *cobra.Command, cfg *globalFlags) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	report, err := r.Fsck()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, issue := range report.Issues {
		fmt.Fprintf(out, "%s (%s): %v\n", issue.Checksum, issue.Type, issue.Err)
	}
	fmt.Fprintf(out, "%d objects checked, %d issues found\n", report.ObjectsChecked, len(report.Issues))

	if len(report.Issues) > 0 {
		return errFsckFoundIssues
	}
	return nil
}
