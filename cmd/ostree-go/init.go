package main

import (
	ostree "github.com/ostreego/ostree"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/cobra"
)

func newInitCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new repository",
	}

	modeStr := cmd.Flags().StringP("mode", "m", "bare", "Storage mode: bare, bare-user, bare-user-only, bare-split-xattrs, archive.")
	quiet := cmd.Flags().BoolP("quiet", "q", false, "Only print errors.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return initCmd(cmd, cfg, *modeStr, *quiet)
	}
	return cmd
}

func initCmd(cmd *cobra.Command, cfg *globalFlags, modeStr string, quiet bool) error {
	mode, err := store.ParseMode(modeStr)
	if err != nil {
		return err
	}
	if _, err := ostree.Init(cfg.repoPath, ostree.InitOptions{Mode: mode}); err != nil {
		return err
	}
	fprintln(quiet, cmd.OutOrStdout(), "Initialized empty repository in", cfg.repoPath)
	return nil
}
