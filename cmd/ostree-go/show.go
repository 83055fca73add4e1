package main

import (
	"fmt"
	"time"

	ostree "github.com/ostreego/ostree"
	"github.com/spf13/cobra"
)

func newShowCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show COMMIT",
		Short: "Show a single commit's metadata",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return showCmd(cmd, cfg, args[0])
	}
	return cmd
}

func showCmd(cmd *cobra.Command, cfg *globalFlags, commitArg string) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	csum, err := resolveCommitArg(r, commitArg)
	if err != nil {
		return err
	}
	c, err := r.ReadCommit(csum)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "commit %s\n", csum)
	if c.HasParent {
		fmt.Fprintf(out, "Parent: %s\n", c.Parent)
	}
	fmt.Fprintf(out, "Date:   %s\n", time.Unix(int64(c.Timestamp), 0).UTC().Format(time.RFC1123))
	fmt.Fprintf(out, "Root:   %s\n", c.RootTree)
	fmt.Fprintf(out, "\n    %s\n", c.Subject)
	if c.Body != "" {
		fmt.Fprintf(out, "\n    %s\n", c.Body)
	}
	return nil
}
