/*
Package packastack provides a convenient api over the packaging instrumentation:
reading Debian packaging sources, checking them for upstream updates and
planning upstream imports.

Usage:

	src := packastack.NewDirSource("nova")
	update, err := packastack.NewWatchUpdatesChecker(nil).LastUpdate(ctx, src)
	if err == nil && update.NeedsUpdate {
		fmt.Println(update.Name, update.CurrentVersion, "->", update.Version)
	}
*/
package packastack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/packastack/packastack-core/providers/fetchers"
	"github.com/packastack/packastack-core/providers/parsers"
)

// Packaging file locations relative to the packaging repository root.
const (
	WatchPath     = "debian/watch"
	ChangelogPath = "debian/changelog"
	ControlPath   = "debian/control"
)

// ErrFileNotFound is returned when a packaging file is absent from the source.
var ErrFileNotFound = fetchers.ErrFileNotFound

// gitRepoRgx is used to parse repository info from GIT-compatible address string.
//
// Examples matching the regexp:
//
//	'git@myhostname:vendor/reponame.git'
//	'https://myhostname/vendor/reponame.git' and so on...
//
// Groups:
//
//	1: protocol (e.g. 'https://' or 'git@')
//	6: hostname (e.g. 'github.com')
//	8: full repo name (e.g. 'vendor/reponame')
var gitRepoRgx string = `^(((git@)|(git:|ssh:|(http[s]?:\/\/))))([\w\.@\\-~]+)(:|\/)([\w\.@\:\/\-~]+)(\.git)(\/-)?`

// gitRepoRgxCompiled is compiled from gitRepoRgx.
var gitRepoRgxCompiled = regexp.MustCompile(gitRepoRgx)

// PackagingSource represents a Debian packaging repository and
// provides convenient access to its debian/ files.
type PackagingSource interface {
	// Name identifies the source in reports (e.g. a directory or a repository address).
	Name() string
	// Watch returns the raw debian/watch content.
	Watch(ctx context.Context) ([]byte, error)
	// Changelog returns the raw debian/changelog content.
	Changelog(ctx context.Context) ([]byte, error)
	// Control returns the parsed source stanza of debian/control.
	Control(ctx context.Context) (*parsers.Control, error)
}

// NewMemorySource constructs a PackagingSource over in-memory files keyed by
// their repository path (e.g. 'debian/watch').
func NewMemorySource(name string, files map[string][]byte) PackagingSource {
	return &MemorySource{name: name, fetcher: fetchers.ByteMapFetcher{Files: files}}
}

// MemorySource is an in-memory PackagingSource, useful for tests and generated packaging.
type MemorySource struct {
	name    string
	fetcher fetchers.ByteMapFetcher
}

func (ms MemorySource) Name() string { return ms.name }

// Watch returns the raw debian/watch content.
func (ms MemorySource) Watch(ctx context.Context) ([]byte, error) {
	return ms.fetcher.FileContent(ctx, WatchPath)
}

// Changelog returns the raw debian/changelog content.
func (ms MemorySource) Changelog(ctx context.Context) ([]byte, error) {
	return ms.fetcher.FileContent(ctx, ChangelogPath)
}

// Control returns the parsed source stanza of debian/control.
func (ms MemorySource) Control(ctx context.Context) (*parsers.Control, error) {
	return parseControl(ctx, ms.fetcher)
}

// NewDirSource constructs a PackagingSource over a local packaging checkout.
func NewDirSource(root string) PackagingSource {
	return &DirSource{root: root, fetcher: fetchers.NewDirFetcher(root)}
}

// DirSource reads packaging files from a local directory.
type DirSource struct {
	root    string
	fetcher fetchers.FileFetcher
}

func (ds DirSource) Name() string { return ds.root }

// Watch returns the raw debian/watch content.
func (ds DirSource) Watch(ctx context.Context) ([]byte, error) {
	return ds.fetcher.FileContent(ctx, WatchPath)
}

// Changelog returns the raw debian/changelog content.
func (ds DirSource) Changelog(ctx context.Context) ([]byte, error) {
	return ds.fetcher.FileContent(ctx, ChangelogPath)
}

// Control returns the parsed source stanza of debian/control.
func (ds DirSource) Control(ctx context.Context) (*parsers.Control, error) {
	return parseControl(ctx, ds.fetcher)
}

// gitRepo represents basic repository information.
type gitRepo struct {
	host, vendor, repo string
}

// supGitSrcs - supported git sources.
var supGitSrcs = []string{"github.com"}

// NewGitSource constructs new Git PackagingSource implementation.
//
// ref can both refer to commit hash/branch/tag.
//
// You can pass specific signed httpClient with any information you want the requests go with
// for example you would like to pass OAuth2/BasicAuth information to github API for increased
// rate limits and so on.
//
// repoAddr is your repository address (e.g. 'https://github.com/openstack/nova.git')
func NewGitSource(httpClient *http.Client, repoAddr, ref string) (PackagingSource, error) {
	repoData, err := parseGitAddr(repoAddr)
	if err != nil {
		return nil, err
	}
	fetcher := fetchers.NewGitHubFetcher(httpClient, repoData.vendor, repoData.repo, ref)
	return &GitSource{addr: repoAddr, fetcher: fetcher}, nil
}

// GitSource represents Git PackagingSource implementation,
// capable of reading packaging files from hosted Git repositories.
type GitSource struct {
	addr    string
	fetcher fetchers.FileFetcher
}

func (gs GitSource) Name() string { return gs.addr }

// Watch returns the raw debian/watch content.
func (gs GitSource) Watch(ctx context.Context) ([]byte, error) {
	return gs.fetcher.FileContent(ctx, WatchPath)
}

// Changelog returns the raw debian/changelog content.
func (gs GitSource) Changelog(ctx context.Context) ([]byte, error) {
	return gs.fetcher.FileContent(ctx, ChangelogPath)
}

// Control returns the parsed source stanza of debian/control.
func (gs GitSource) Control(ctx context.Context) (*parsers.Control, error) {
	return parseControl(ctx, gs.fetcher)
}

func parseControl(ctx context.Context, fetcher fetchers.FileFetcher) (*parsers.Control, error) {
	b, err := fetcher.FileContent(ctx, ControlPath)
	if err != nil {
		return nil, err
	}
	return parsers.ParseControl(b)
}

// packagedInfo returns the source package name and the packaged version from the
// changelog header, falling back to the control Source field and the source name.
// A missing changelog is not an error: the version is then empty.
func packagedInfo(ctx context.Context, src PackagingSource) (name, version string, changelog []byte, err error) {
	changelog, err = src.Changelog(ctx)
	switch {
	case err == nil:
		if header, herr := parsers.ParseChangelogHeader(changelog); herr == nil {
			return header.Name, header.Version, changelog, nil
		}
	case !errors.Is(err, ErrFileNotFound):
		return "", "", nil, err
	}

	if control, cerr := src.Control(ctx); cerr == nil {
		return control.Source, "", changelog, nil
	}
	return src.Name(), "", changelog, nil
}

// parseGitAddr - helper to parse information from git repository address string
func parseGitAddr(addr string) (*gitRepo, error) {
	matches := gitRepoRgxCompiled.FindStringSubmatch(addr)
	if matches == nil || matches[6] == "" || matches[8] == "" {
		return nil, fmt.Errorf("unsupported git repository format %q", addr)
	}
	hostName, repoName := matches[6], matches[8]

	if !gitHostSupported(hostName) {
		return nil, fmt.Errorf("git source %q is not supported", hostName)
	}

	if !strings.Contains(repoName, "/") {
		return nil, fmt.Errorf("unable to parse vendor from name %q", repoName)
	}
	repoNameParts := strings.Split(repoName, "/")

	return &gitRepo{host: hostName, vendor: repoNameParts[0], repo: repoNameParts[1]}, nil
}

// gitHostSupported - helper to check git source support status
func gitHostSupported(host string) bool {
	for _, v := range supGitSrcs {
		if v == host {
			return true
		}
	}
	return false
}
