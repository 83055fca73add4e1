package main

import (
	"fmt"

	ostree "github.com/ostreego/ostree"
	"github.com/ostreego/ostree/prune"
	"github.com/spf13/cobra"
)

func newPruneCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete unreachable objects",
	}

	noPrune := cmd.Flags().Bool("no-prune", false, "Only report what would be deleted.")
	refsOnly := cmd.Flags().Bool("refs-only", false, "Compute reachability from commits named by refs instead of from every commit in the store.")
	commitOnly := cmd.Flags().Bool("commit-only", false, "Follow only commits and their parents when computing reachability, not their trees.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return pruneCmd(cmd, cfg, prune.Flags{
			NoPrune:    *noPrune,
			RefsOnly:   *refsOnly,
			CommitOnly: *commitOnly,
		})
	}
	return cmd
}

func pruneCmd(cmd *cobra.Command, cfg *globalFlags, flags prune.Flags) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	totals, err := r.Prune(flags)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d/%d objects pruned, %d bytes freed, %d deltas pruned\n",
		totals.ObjectsPruned, totals.ObjectsTotal, totals.BytesFreed, totals.DeltasPruned)
	return nil
}
