/*
Package launchpad provides a client for the Launchpad REST API, limited to listing
the git repositories owned by a team.

Usage:

	lp := launchpad.NewClient(nil, nil)
	repos, err := lp.TeamRepositories(ctx, launchpad.DefaultTeam)
	repos = launchpad.FilterRepositories(repos, []string{"python-oslo*"}, false)
*/
package launchpad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/packastack/packastack-core/providers/fetchers"
)

// DefaultTeam owns the OpenStack packaging repositories.
const DefaultTeam = "~ubuntu-openstack-dev"

// launchpadHostname - Launchpad API hostname (used as default API).
var launchpadHostname string = "https://api.launchpad.net"

var (
	// ErrTeamNotFound is returned when Launchpad does not know the team.
	ErrTeamNotFound = errors.New("team not found")
	// ErrInvalidRepository is returned for listing entries lacking a name or a clone URL.
	ErrInvalidRepository = errors.New("invalid repository entry")
)

// Repository is a git repository hosted on Launchpad.
type Repository struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	DisplayName string `json:"display_name"`
}

// Client is used to send API requests to Launchpad.
type Client struct {
	baseURL url.URL
	fetcher fetchers.PageFetcher
}

// NewClient creates and returns a new client.
//
// If fetcher is nil, pages are fetched over HTTP with the default retry policy.
// If URL is nil, the client talks to api.launchpad.net.
func NewClient(fetcher fetchers.PageFetcher, URL *url.URL) *Client {
	if URL == nil {
		URL, _ = url.Parse(launchpadHostname)
	}
	if fetcher == nil {
		fetcher = fetchers.NewRetryFetcher(fetchers.NewHTTPFetcher(nil, 0))
	}
	return &Client{baseURL: *URL, fetcher: fetcher}
}

// getRepositoriesOptions specifies the parameters of the getRepositories named operation.
type getRepositoriesOptions struct {
	Op     string `url:"ws.op"`
	Target string `url:"target"`
}

// repositoryCollection is one page of a Launchpad collection.
type repositoryCollection struct {
	TotalSize          int             `json:"total_size"`
	Start              int             `json:"start"`
	Entries            []repositoryRaw `json:"entries"`
	NextCollectionLink string          `json:"next_collection_link"`
}

type repositoryRaw struct {
	Name        string `json:"name"`
	UniqueName  string `json:"unique_name"`
	DisplayName string `json:"display_name"`
	GitHTTPSURL string `json:"git_https_url"`
}

// TeamRepositories lists every git repository owned by team ('~name' or 'name').
// The listing is followed through all of its pages.
func (c *Client) TeamRepositories(ctx context.Context, team string) ([]Repository, error) {
	team = strings.TrimPrefix(strings.TrimSpace(team), "~")
	if team == "" {
		return nil, fmt.Errorf("team name is required and can't be empty")
	}

	v, err := query.Values(getRepositoriesOptions{
		Op:     "getRepositories",
		Target: c.apiURL("~" + team),
	})
	if err != nil {
		return nil, fmt.Errorf("error parsing the options: %w", err)
	}

	var repos []Repository
	next := c.apiURL("+git") + "?" + v.Encode()
	for next != "" {
		page, err := c.collection(ctx, next)
		if err != nil {
			var netErr *fetchers.NetworkError
			if errors.As(err, &netErr) && netErr.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, team)
			}
			return nil, fmt.Errorf("failed to list repositories for ~%s: %w", team, err)
		}

		for i, raw := range page.Entries {
			repo, err := raw.validate()
			if err != nil {
				return nil, fmt.Errorf("entry %d of ~%s listing: %w", page.Start+i, team, err)
			}
			repos = append(repos, repo)
		}
		next = page.NextCollectionLink
	}

	return repos, nil
}

func (c *Client) apiURL(resource string) string {
	u := c.baseURL
	u.Path = path.Join("/", u.Path, "devel", resource)
	return u.String()
}

func (c *Client) collection(ctx context.Context, route string) (*repositoryCollection, error) {
	body, err := c.fetcher.Fetch(ctx, route)
	if err != nil {
		return nil, err
	}

	var rc repositoryCollection
	if err := json.Unmarshal(body, &rc); err != nil {
		return nil, fmt.Errorf("unable to parse the response body: %w", err)
	}
	return &rc, nil
}

// validate converts a listing entry into a Repository.
func (raw repositoryRaw) validate() (Repository, error) {
	if raw.Name == "" {
		return Repository{}, fmt.Errorf("%w: missing name", ErrInvalidRepository)
	}
	if raw.GitHTTPSURL == "" {
		return Repository{}, fmt.Errorf("%w: %s has no git_https_url", ErrInvalidRepository, raw.Name)
	}

	repo := Repository{Name: raw.Name, URL: raw.GitHTTPSURL, DisplayName: raw.DisplayName}
	if repo.DisplayName == "" {
		repo.DisplayName = raw.UniqueName
	}
	if repo.DisplayName == "" {
		repo.DisplayName = raw.Name
	}
	return repo, nil
}

// FilterRepositories keeps the repositories whose name matches one of patterns,
// or, with exclude, the ones matching none of them. Names are compared
// case-insensitively; a pattern containing one of '*?[]' is a glob.
// No patterns means no filtering.
func FilterRepositories(repos []Repository, patterns []string, exclude bool) []Repository {
	if len(patterns) == 0 {
		return repos
	}

	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		normalized = append(normalized, strings.ToLower(p))
	}

	var result []Repository
	for _, r := range repos {
		if nameMatches(strings.ToLower(r.Name), normalized) != exclude {
			result = append(result, r)
		}
	}
	return result
}

func nameMatches(name string, patterns []string) bool {
	for _, p := range patterns {
		if strings.ContainsAny(p, "*?[]") {
			// A malformed glob matches nothing.
			if ok, _ := path.Match(p, name); ok {
				return true
			}
			continue
		}
		if name == p {
			return true
		}
	}
	return false
}
