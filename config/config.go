// Package config reads and writes a repository's config file: the
// core.* keys and the per-remote "remote \"<name>\"" sections (§6). It
// generalizes the teacher's ginternals/config.FileAggregate — which
// layers system/global/local git config files through go-ini — down to
// ostree's single repository-local file, and adds the remote section
// shape git's FileAggregate has no equivalent for.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ostreego/ostree/internal/env"
	"github.com/ostreego/ostree/internal/errutil"
	"github.com/ostreego/ostree/internal/layout"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

// DefaultSysroot is used when OSTREE_SYSROOT is unset (§6).
const DefaultSysroot = "/"

// Sysroot returns the system root selected by OSTREE_SYSROOT in e,
// falling back to DefaultSysroot.
func Sysroot(e *env.Env) string {
	if v := e.Get("OSTREE_SYSROOT"); v != "" {
		return v
	}
	return DefaultSysroot
}

// Core holds the core.* keys this implementation consumes (§6).
type Core struct {
	Mode                  store.Mode
	MinFreeSpacePercent   int
	MinFreeSpaceSize      int64
	CollectionID          string
	PayloadLinkThreshold  int64
	DefaultRepoFinders    []string
}

// Remote holds one `remote "<name>"` section (§6).
type Remote struct {
	Name             string
	URL              string
	GPGVerify        bool
	GPGVerifySummary bool
}

// defaultCore supplies the values Core reports for core keys the file
// does not set. store.Store.Init writes only repo_version and mode, so a
// freshly initialized repository reads the other fields from here.
var defaultCore = Core{
	Mode:                store.ModeBare,
	MinFreeSpacePercent: 3,
	DefaultRepoFinders:  []string{"config", "lan", "mount"},
}

// File is a repository's parsed config file.
type File struct {
	fs   afero.Fs
	path string
	ini  *ini.File
}

// Load reads the config file at the root of a repository. Callers
// normally get root and fs from an open ostree.Repository.
func Load(fs afero.Fs, repoRoot string) (*File, error) {
	path := filepath.Join(repoRoot, layout.ConfigPath)
	f, err := fs.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	cfg, err := ini.Load(f)
	if err != nil {
		return nil, xerrors.Errorf("could not parse %s: %w", path, err)
	}
	return &File{fs: fs, path: path, ini: cfg}, nil
}

// Save persists any changes made through AddRemote/RemoveRemote/SetCore
// back to the config file, atomically.
func (f *File) Save() (err error) {
	tmp := f.path + ".tmp"
	out, err := f.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return xerrors.Errorf("could not create %s: %w", tmp, err)
	}
	defer errutil.Close(out, &err)

	if _, werr := f.ini.WriteTo(out); werr != nil {
		return xerrors.Errorf("could not write %s: %w", tmp, werr)
	}
	if err := f.fs.Rename(tmp, f.path); err != nil {
		return xerrors.Errorf("could not rename %s to %s: %w", tmp, f.path, err)
	}
	return nil
}

// Core returns the core.* section, falling back to defaultCore for any
// key that is absent.
func (f *File) Core() (Core, error) {
	c := defaultCore
	sec := f.ini.Section("core")
	if !sec.HasKey("mode") {
		// keep c.Mode
	} else {
		mode, err := store.ParseMode(sec.Key("mode").String())
		if err != nil {
			return Core{}, xerrors.Errorf("core.mode: %w", err)
		}
		c.Mode = mode
	}
	if sec.HasKey("min-free-space-percent") {
		v, err := sec.Key("min-free-space-percent").Int()
		if err != nil {
			return Core{}, xerrors.Errorf("core.min-free-space-percent: %w", err)
		}
		c.MinFreeSpacePercent = v
	}
	if sec.HasKey("min-free-space-size") {
		v, err := sec.Key("min-free-space-size").Int64()
		if err != nil {
			return Core{}, xerrors.Errorf("core.min-free-space-size: %w", err)
		}
		c.MinFreeSpaceSize = v
	}
	c.CollectionID = sec.Key("collection-id").String()
	if sec.HasKey("payload-link-threshold") {
		v, err := sec.Key("payload-link-threshold").Int64()
		if err != nil {
			return Core{}, xerrors.Errorf("core.payload-link-threshold: %w", err)
		}
		c.PayloadLinkThreshold = v
	}
	if sec.HasKey("default-repo-finders") {
		c.DefaultRepoFinders = strings.Fields(sec.Key("default-repo-finders").String())
	}
	return c, nil
}

// remoteSectionName builds the `remote "<name>"` section header ini
// uses for subsections.
func remoteSectionName(name string) string {
	return `remote "` + name + `"`
}

// Remotes returns every configured remote, sorted by name.
func (f *File) Remotes() ([]Remote, error) {
	var out []Remote
	for _, sec := range f.ini.Sections() {
		name, ok := remoteNameFromSection(sec.Name())
		if !ok {
			continue
		}
		out = append(out, Remote{
			Name:             name,
			URL:              sec.Key("url").String(),
			GPGVerify:        sec.Key("gpg-verify").MustBool(true),
			GPGVerifySummary: sec.Key("gpg-verify-summary").MustBool(false),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Remote returns the remote named name, if configured.
func (f *File) Remote(name string) (Remote, bool) {
	sec, err := f.ini.GetSection(remoteSectionName(name))
	if err != nil {
		return Remote{}, false
	}
	return Remote{
		Name:             name,
		URL:              sec.Key("url").String(),
		GPGVerify:        sec.Key("gpg-verify").MustBool(true),
		GPGVerifySummary: sec.Key("gpg-verify-summary").MustBool(false),
	}, true
}

// AddRemote creates or replaces a remote section.
func (f *File) AddRemote(r Remote) error {
	sec, err := f.ini.NewSection(remoteSectionName(r.Name))
	if err != nil {
		return xerrors.Errorf("could not create remote section for %q: %w", r.Name, err)
	}
	sec.Key("url").SetValue(r.URL)
	sec.Key("gpg-verify").SetValue(strconv.FormatBool(r.GPGVerify))
	sec.Key("gpg-verify-summary").SetValue(strconv.FormatBool(r.GPGVerifySummary))
	return nil
}

// RemoveRemote deletes the named remote's section. It is a no-op if the
// remote was never configured.
func (f *File) RemoveRemote(name string) {
	f.ini.DeleteSection(remoteSectionName(name))
}

// remoteNameFromSection extracts "<name>" out of a `remote "<name>"`
// ini section header, as git's equivalent subsection parsing does.
func remoteNameFromSection(section string) (string, bool) {
	const prefix = `remote "`
	if !strings.HasPrefix(section, prefix) || !strings.HasSuffix(section, `"`) {
		return "", false
	}
	return section[len(prefix) : len(section)-1], true
}
