package fetchers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v33/github"
)

// ErrNotAFile is returned when a packaging path names a directory, a symlink or a submodule.
var ErrNotAFile = errors.New("not a regular file")

// GitHubFetcher reads packaging files from a GitHub mirror of a packaging repository.
// Owner and Repo represent '{owner}/{repo}' notation, Ref is a commit hash, branch or tag
// (the default branch when empty).
type GitHubFetcher struct {
	Owner        string
	Repo         string
	Ref          string
	githubClient *github.Client
}

// NewGitHubFetcher constructs GitHubFetcher.
// httpClient can be used as OAuth2 or BasicAuth http transport.
func NewGitHubFetcher(httpClient *http.Client, owner, repo, ref string) FileFetcher {
	return &GitHubFetcher{
		Owner:        owner,
		Repo:         repo,
		Ref:          ref,
		githubClient: github.NewClient(httpClient),
	}
}

// FileContent returns the decoded content of path (e.g. 'debian/watch') at Ref.
// A path missing at Ref wraps ErrFileNotFound, anything but a regular file wraps ErrNotAFile.
func (p GitHubFetcher) FileContent(ctx context.Context, path string) ([]byte, error) {
	rc, dc, resp, err := p.githubClient.Repositories.GetContents(ctx, p.Owner, p.Repo, path,
		&github.RepositoryContentGetOptions{Ref: p.Ref})
	if err != nil {
		if resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s/%s:%s", ErrFileNotFound, p.Owner, p.Repo, path)
		}
		return nil, fmt.Errorf("unable to load '%s' from %s/%s: %w", path, p.Owner, p.Repo, err)
	}

	if dc != nil || rc == nil {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotAFile, path)
	}
	if kind := rc.GetType(); kind != "" && kind != "file" {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotAFile, path, kind)
	}

	c, err := rc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("unable to decode '%s': %w", path, err)
	}
	return []byte(c), nil
}
