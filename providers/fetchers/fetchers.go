/*
Package fetchers provides file fetching functions for local and remote packaging
repositories and the page fetcher used to read upstream release listings.

Usage:

	files := fetchers.NewDirFetcher("nova/debian")
	watch, err := files.FileContent(ctx, "watch")

	pages := fetchers.NewRetryFetcher(fetchers.NewHTTPFetcher(nil, 0))
	body, err := pages.Fetch(ctx, "https://tarballs.opendev.org/openstack/nova/")
*/
package fetchers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrFileNotFound = errors.New("packaging file not found")
)

// FileFetcher interface defines fetchers methods.
type FileFetcher interface {
	FileContent(ctx context.Context, path string) ([]byte, error)
}

// ByteMapFetcher is used for storing file contents in memory (useful for debugging/testing or for building custom repositories logic)
type ByteMapFetcher struct {
	Files map[string][]byte
}

// FileContent retrieves (if found) []byte contents from its map using path argument as a key.
func (sf ByteMapFetcher) FileContent(ctx context.Context, path string) ([]byte, error) {
	v, ok := sf.Files[path]
	if !ok {
		return nil, ErrFileNotFound
	}
	return v, nil
}

// DirFetcher reads files relative to a local directory (e.g. a cloned packaging repository).
type DirFetcher struct {
	Root string
}

// NewDirFetcher constructs DirFetcher rooted at dir.
func NewDirFetcher(dir string) FileFetcher {
	return &DirFetcher{Root: dir}
}

// FileContent reads the file at the root-related path.
func (df DirFetcher) FileContent(ctx context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(df.Root, filepath.FromSlash(path)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("unable to read '%s' from %s: %w", path, df.Root, err)
	}
	return b, nil
}

// SubFetcher scopes another fetcher to a directory prefix (e.g. 'debian').
type SubFetcher struct {
	Prefix  string
	Fetcher FileFetcher
}

// FileContent fetches Prefix/path from the wrapped fetcher.
func (sf SubFetcher) FileContent(ctx context.Context, path string) ([]byte, error) {
	if sf.Prefix == "" {
		return sf.Fetcher.FileContent(ctx, path)
	}
	return sf.Fetcher.FileContent(ctx, sf.Prefix+"/"+path)
}
