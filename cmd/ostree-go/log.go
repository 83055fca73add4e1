package main

import (
	"fmt"
	"time"

	ostree "github.com/ostreego/ostree"
	"github.com/spf13/cobra"
)

func newLogCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log COMMIT",
		Short: "Show the commit chain leading up to COMMIT",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return logCmd(cmd, cfg, args[0])
	}
	return cmd
}

func logCmd(cmd *cobra.Command, cfg *globalFlags, commitArg string) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	csum, err := resolveCommitArg(r, commitArg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for {
		c, err := r.ReadCommit(csum)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "commit %s\n", csum)
		fmt.Fprintf(out, "Date:  %s\n", time.Unix(int64(c.Timestamp), 0).UTC().Format(time.RFC1123))
		fmt.Fprintf(out, "\n    %s\n", c.Subject)
		if c.Body != "" {
			fmt.Fprintf(out, "\n    %s\n", c.Body)
		}
		fmt.Fprintln(out)

		if !c.HasParent {
			return nil
		}
		csum = c.Parent
	}
}
