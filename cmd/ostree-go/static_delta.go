package main

import (
	"fmt"

	ostree "github.com/ostreego/ostree"
	"github.com/ostreego/ostree/checksum"
	"github.com/ostreego/ostree/delta"
	"github.com/spf13/cobra"
)

func newStaticDeltaCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "static-delta",
		Short: "Generate, inspect and apply static deltas",
	}
	cmd.AddCommand(
		newStaticDeltaGenerateCmd(cfg),
		newStaticDeltaApplyCmd(cfg),
		newStaticDeltaShowCmd(cfg),
		newStaticDeltaListCmd(cfg),
	)
	return cmd
}

func newStaticDeltaGenerateCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate TO [FROM]",
		Short: "Generate and store a static delta to TO, optionally from FROM",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		from, hasFrom := checksum.Zero, false
		if len(args) == 2 {
			var err error
			from, err = parseChecksumArg(args[1])
			if err != nil {
				return err
			}
			hasFrom = true
		}
		to, err := parseChecksumArg(args[0])
		if err != nil {
			return err
		}
		return staticDeltaGenerateCmd(cmd, cfg, from, hasFrom, to)
	}
	return cmd
}

func staticDeltaGenerateCmd(cmd *cobra.Command, cfg *globalFlags, from checksum.Checksum, hasFrom bool, to checksum.Checksum) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}
	if !hasFrom {
		from = checksum.Zero
	}
	if err := r.GenerateDeltaToRepo(from, to, delta.GenOptions{}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", delta.DeltaLabel(from, to))
	return nil
}

func newStaticDeltaApplyCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply TO [FROM]",
		Short: "Apply a stored static delta to this repository",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		from, hasFrom := checksum.Zero, false
		if len(args) == 2 {
			var err error
			from, err = parseChecksumArg(args[1])
			if err != nil {
				return err
			}
			hasFrom = true
		}
		to, err := parseChecksumArg(args[0])
		if err != nil {
			return err
		}
		r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
		if err != nil {
			return err
		}
		return r.ApplyDeltaFromRepo(from, to, hasFrom, delta.ExecOptions{})
	}
	return cmd
}

func newStaticDeltaShowCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show TO [FROM]",
		Short: "Print a stored static delta's superblock summary",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		from, hasFrom := checksum.Zero, false
		if len(args) == 2 {
			var err error
			from, err = parseChecksumArg(args[1])
			if err != nil {
				return err
			}
			hasFrom = true
		}
		to, err := parseChecksumArg(args[0])
		if err != nil {
			return err
		}
		r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
		if err != nil {
			return err
		}
		sb, err := r.ShowDelta(from, to, hasFrom)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", delta.DeltaLabel(sb.From, sb.To))
		for i, part := range sb.Parts {
			fmt.Fprintf(out, "  part %d: %d objects, %d -> %d bytes\n",
				i, len(part.Objects), part.UncompressedSize, part.CompressedSize)
		}
		if len(sb.Fallbacks) > 0 {
			fmt.Fprintf(out, "  %d fallback objects\n", len(sb.Fallbacks))
		}
		return nil
	}
	return cmd
}

func newStaticDeltaListCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list TO",
		Short: "List the delta sources available for TO",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		to, err := parseChecksumArg(args[0])
		if err != nil {
			return err
		}
		r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
		if err != nil {
			return err
		}
		froms, err := r.ListDeltas(to)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, from := range froms {
			fmt.Fprintf(out, "%s\n", delta.DeltaLabel(from, to))
		}
		return nil
	}
	return cmd
}
