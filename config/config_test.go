package config_test

import (
	"testing"

	"github.com/ostreego/ostree/config"
	"github.com/ostreego/ostree/internal/env"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T) (afero.Fs, *config.File) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s := store.New(fs, "/repo", store.ModeArchive)
	require.NoError(t, s.Init())
	f, err := config.Load(fs, "/repo")
	require.NoError(t, err)
	return fs, f
}

func TestCoreDefaultsAndMode(t *testing.T) {
	_, f := newTestFile(t)
	c, err := f.Core()
	require.NoError(t, err)
	require.Equal(t, store.ModeArchive, c.Mode)
	require.Equal(t, 3, c.MinFreeSpacePercent)
	require.Equal(t, []string{"config", "lan", "mount"}, c.DefaultRepoFinders)
}

func TestAddAndListRemotes(t *testing.T) {
	fs, f := newTestFile(t)
	require.NoError(t, f.AddRemote(config.Remote{
		Name:      "origin",
		URL:       "https://example.com/repo",
		GPGVerify: true,
	}))
	require.NoError(t, f.Save())

	f2, err := config.Load(fs, "/repo")
	require.NoError(t, err)
	remotes, err := f2.Remotes()
	require.NoError(t, err)
	require.Len(t, remotes, 1)
	require.Equal(t, "origin", remotes[0].Name)
	require.Equal(t, "https://example.com/repo", remotes[0].URL)
	require.True(t, remotes[0].GPGVerify)

	r, ok := f2.Remote("origin")
	require.True(t, ok)
	require.Equal(t, "https://example.com/repo", r.URL)
}

func TestRemoveRemote(t *testing.T) {
	fs, f := newTestFile(t)
	require.NoError(t, f.AddRemote(config.Remote{Name: "origin", URL: "https://example.com"}))
	require.NoError(t, f.Save())

	f2, err := config.Load(fs, "/repo")
	require.NoError(t, err)
	f2.RemoveRemote("origin")
	require.NoError(t, f2.Save())

	f3, err := config.Load(fs, "/repo")
	require.NoError(t, err)
	_, ok := f3.Remote("origin")
	require.False(t, ok)
}

func TestSysrootFromEnv(t *testing.T) {
	require.Equal(t, config.DefaultSysroot, config.Sysroot(env.NewFromKVList(nil)))
	require.Equal(t, "/sysroot", config.Sysroot(env.NewFromKVList([]string{"OSTREE_SYSROOT=/sysroot"})))
}
