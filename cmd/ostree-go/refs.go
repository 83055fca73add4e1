package main

import (
	"fmt"
	"sort"

	ostree "github.com/ostreego/ostree"
	"github.com/spf13/cobra"
)

func newRefsCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs",
		Short: "List and delete refs",
	}

	del := cmd.Flags().String("delete", "", "Delete the named ref instead of listing.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if *del != "" {
			return refsDeleteCmd(cfg, *del)
		}
		return refsListCmd(cmd, cfg)
	}
	return cmd
}

func refsListCmd(cmd *cobra.Command, cfg *globalFlags) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	all, err := r.Refs().List()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "%s %s\n", name, all[name])
	}
	return nil
}

func refsDeleteCmd(cfg *globalFlags, name string) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	return r.Refs().Remove(name)
}
