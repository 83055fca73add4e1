package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	ostree "github.com/ostreego/ostree"
	"github.com/ostreego/ostree/checksum"
	"github.com/spf13/cobra"
)

type commitFlags struct {
	branch  string
	subject string
	body    string
	parent  string
}

func newCommitCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit SOURCE_DIR",
		Short: "Commit a directory tree into the repository",
		Args:  cobra.ExactArgs(1),
	}

	flags := commitFlags{}
	cmd.Flags().StringVarP(&flags.branch, "branch", "b", "", "Ref to update with the new commit.")
	cmd.Flags().StringVar(&flags.subject, "subject", "", "Commit subject line.")
	cmd.Flags().StringVar(&flags.body, "body", "", "Commit body.")
	cmd.Flags().StringVar(&flags.parent, "parent", "", "Parent commit checksum; defaults to the branch's current tip.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return commitCmd(cmd, cfg, flags, args[0])
	}
	return cmd
}

func commitCmd(cmd *cobra.Command, cfg *globalFlags, flags commitFlags, sourceDir string) error {
	r, err := ostree.Open(cfg.repoPath, ostree.OpenOptions{})
	if err != nil {
		return err
	}

	tb := r.NewTreeBuilder()
	if err := addDirToTree(tb, sourceDir); err != nil {
		return err
	}
	rootTree, rootMeta, err := tb.Write()
	if err != nil {
		return err
	}

	opts := ostree.CommitOptions{Subject: flags.subject, Body: flags.body}
	if parent, ok, err := resolveParent(r, flags); err != nil {
		return err
	} else if ok {
		opts.Parent = parent
		opts.HasParent = true
	}

	csum, err := r.Commit(rootTree, rootMeta, opts)
	if err != nil {
		return err
	}
	if flags.branch != "" {
		if err := r.SetRef(flags.branch, csum); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), csum)
	return nil
}

func resolveParent(r *ostree.Repository, flags commitFlags) (csum checksum.Checksum, ok bool, err error) {
	if flags.parent != "" {
		c, err := parseChecksumArg(flags.parent)
		return c, true, err
	}
	if flags.branch == "" {
		return csum, false, nil
	}
	c, err := r.ResolveRef(flags.branch)
	if err != nil {
		return csum, false, nil //nolint:nilerr // a missing branch just means "no parent"
	}
	return c, true, nil
}

func addDirToTree(tb *ostree.TreeBuilder, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_, err = tb.InsertSymlink(rel, target, 0, 0)
			return err
		case d.IsDir():
			return tb.Mkdir(rel, 0, 0, uint32(info.Mode().Perm()), nil)
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			_, err = tb.InsertFile(rel, data, 0, 0, uint32(info.Mode().Perm()), nil)
			return err
		}
	})
}
