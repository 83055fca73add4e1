package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ostreego/ostree/internal/env"
	"github.com/stretchr/testify/require"
)

// runCmd executes args against a fresh root command rooted at repoPath,
// capturing and returning whatever it wrote to stdout.
func runCmd(t *testing.T, repoPath string, args ...string) (string, error) {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)

	root := newRootCmd(cwd, env.NewFromOs())
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs(append([]string{"--repo", repoPath}, args...))

	err = root.Execute()
	return out.String(), err
}

func TestInitCommitCheckoutLog(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")

	_, err := runCmd(t, repoPath, "init", "--mode", "archive")
	require.NoError(t, err)

	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "hello.txt"), []byte("hi\n"), 0o644))

	out, err := runCmd(t, repoPath, "commit", "--branch", "heads/main", "--subject", "seed", srcDir)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	commit := out[:len(out)-1] // trailing newline from fmt.Fprintln

	out, err = runCmd(t, repoPath, "show", commit)
	require.NoError(t, err)
	require.Contains(t, out, "seed")

	out, err = runCmd(t, repoPath, "log", "heads/main")
	require.NoError(t, err)
	require.Contains(t, out, commit)

	destDir := t.TempDir()
	_, err = runCmd(t, repoPath, "checkout", commit, destDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(destDir, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi\n", string(data))

	out, err = runCmd(t, repoPath, "refs")
	require.NoError(t, err)
	require.Contains(t, out, "heads/main")

	out, err = runCmd(t, repoPath, "fsck")
	require.NoError(t, err)
	require.Contains(t, out, "0 issues found")

	out, err = runCmd(t, repoPath, "prune")
	require.NoError(t, err)
	require.Contains(t, out, "0/")
}

func TestPullIsNotImplemented(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	_, err := runCmd(t, repoPath, "init")
	require.NoError(t, err)

	_, err = runCmd(t, repoPath, "pull", "origin")
	require.ErrorIs(t, err, errPullNotImplemented)
}

func TestRemoteAddListRemove(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	_, err := runCmd(t, repoPath, "init")
	require.NoError(t, err)

	_, err = runCmd(t, repoPath, "remote", "add", "origin", "https://example.com/repo")
	require.NoError(t, err)

	out, err := runCmd(t, repoPath, "remote", "list")
	require.NoError(t, err)
	require.Contains(t, out, "origin https://example.com/repo")

	_, err = runCmd(t, repoPath, "remote", "remove", "origin")
	require.NoError(t, err)

	out, err = runCmd(t, repoPath, "remote", "list")
	require.NoError(t, err)
	require.Empty(t, out)
}
