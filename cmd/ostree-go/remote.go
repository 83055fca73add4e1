package main

import (
	"fmt"
	"sort"

	ostree "github.com/ostreego/ostree"
	"github.com/ostreego/ostree/config"
	"github.com/spf13/cobra"
)

func newRemoteCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage configured remotes",
	}
	cmd.AddCommand(
		newRemoteAddCmd(cfg),
		newRemoteRemoveCmd(cfg),
		newRemoteListCmd(cfg),
	)
	return cmd
}

func newRemoteAddCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add NAME URL",
		Short: "Add a remote",
		Args:  cobra.ExactArgs(2),
	}

	noGPGVerify := cmd.Flags().Bool("no-gpg-verify", false, "Disable commit GPG verification for this remote.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return remoteAddCmd(cfg, args[0], args[1], !*noGPGVerify)
	}
	return cmd
}

func remoteAddCmd(cfg *globalFlags, name, url string, gpgVerify bool) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	f, err := r.Config()
	if err != nil {
		return err
	}
	if err := f.AddRemote(config.Remote{
		Name:             name,
		URL:              url,
		GPGVerify:        gpgVerify,
		GPGVerifySummary: gpgVerify,
	}); err != nil {
		return err
	}
	return f.Save()
}

func newRemoteRemoveCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a remote",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return remoteRemoveCmd(cfg, args[0])
	}
	return cmd
}

func remoteRemoveCmd(cfg *globalFlags, name string) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	f, err := r.Config()
	if err != nil {
		return err
	}
	f.RemoveRemote(name)
	return f.Save()
}

func newRemoteListCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured remotes",
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return remoteListCmd(cmd, cfg)
	}
	return cmd
}

func remoteListCmd(cmd *cobra.Command, cfg *globalFlags) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	f, err := r.Config()
	if err != nil {
		return err
	}
	remotes, err := f.Remotes()
	if err != nil {
		return err
	}

	sort.Slice(remotes, func(i, j int) bool { return remotes[i].Name < remotes[j].Name })

	out := cmd.OutOrStdout()
	for _, rem := range remotes {
		fmt.Fprintf(out, "%s %s\n", rem.Name, rem.URL)
	}
	return nil
}
