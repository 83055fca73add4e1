package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

// errPullNotImplemented is returned by "pull": fetching objects from a
// remote over HTTP requires a network fetcher and pull-orchestration
// layer that this library does not implement; it only implements the
// local storage, transport-format and delta machinery a puller would
// sit on top of.
var errPullNotImplemented = xerrors.New("pull: fetching from a remote is not implemented by this tool; " +
	"use static-delta apply with a delta fetched out of band")

func newPullCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull REMOTE [REF]",
		Short: "Pull a ref from a remote (not implemented)",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return errPullNotImplemented
	}
	return cmd
}
