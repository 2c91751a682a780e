package launchpad

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packastack/packastack-core/providers/fetchers"
)

func newLaunchpadServer(t *testing.T, pages map[string]string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/devel/+git" {
			rw.WriteHeader(http.StatusNotFound)
			return
		}
		if op := r.URL.Query().Get("ws.op"); op != "getRepositories" {
			t.Errorf("expected ws.op getRepositories, got %q", op)
		}
		target := r.URL.Query().Get("target")
		if target != "http://"+r.Host+"/devel/~ubuntu-openstack-dev" {
			rw.WriteHeader(http.StatusNotFound)
			return
		}

		page, ok := pages[r.URL.Query().Get("ws.start")]
		if !ok {
			t.Errorf("unexpected page requested: %s", r.URL.RawQuery)
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		// NEXT stands for the link of the following page
		next := fmt.Sprintf("%q", "http://"+r.Host+"/devel/+git?ws.op=getRepositories&ws.start=2&target="+url.QueryEscape(target))
		_, _ = fmt.Fprint(rw, strings.ReplaceAll(page, `"NEXT"`, next))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	URL, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewClient(fetchers.NewHTTPFetcher(srv.Client(), 0), URL)
}

func TestClient_TeamRepositories(t *testing.T) {
	srv := newLaunchpadServer(t, map[string]string{
		"": `{"total_size": 3, "start": 0, "entries": [
			{"name": "nova", "unique_name": "~ubuntu-openstack-dev/ubuntu/+source/nova/+git/nova",
			 "display_name": "lp:~ubuntu-openstack-dev/ubuntu/+source/nova", "git_https_url": "https://git.launchpad.net/~ubuntu-openstack-dev/ubuntu/+source/nova"},
			{"name": "glance", "unique_name": "~ubuntu-openstack-dev/ubuntu/+source/glance/+git/glance",
			 "git_https_url": "https://git.launchpad.net/~ubuntu-openstack-dev/ubuntu/+source/glance"}
		], "next_collection_link": "NEXT"}`,
		"2": `{"total_size": 3, "start": 2, "entries": [
			{"name": "python-oslo.config", "display_name": "oslo", "git_https_url": "https://git.launchpad.net/python-oslo.config"}
		]}`,
	})
	repos, err := newTestClient(t, srv).TeamRepositories(context.Background(), DefaultTeam)
	require.NoError(t, err)

	assert.Equal(t, []Repository{
		{Name: "nova", URL: "https://git.launchpad.net/~ubuntu-openstack-dev/ubuntu/+source/nova", DisplayName: "lp:~ubuntu-openstack-dev/ubuntu/+source/nova"},
		{Name: "glance", URL: "https://git.launchpad.net/~ubuntu-openstack-dev/ubuntu/+source/glance", DisplayName: "~ubuntu-openstack-dev/ubuntu/+source/glance/+git/glance"},
		{Name: "python-oslo.config", URL: "https://git.launchpad.net/python-oslo.config", DisplayName: "oslo"},
	}, repos)
}

func TestClient_TeamRepositories_InvalidEntry(t *testing.T) {
	srv := newLaunchpadServer(t, map[string]string{
		"": `{"total_size": 1, "start": 0, "entries": [{"name": "nova"}]}`,
	})

	_, err := newTestClient(t, srv).TeamRepositories(context.Background(), "ubuntu-openstack-dev")
	assert.ErrorIs(t, err, ErrInvalidRepository)
}

func TestClient_TeamRepositories_Errors(t *testing.T) {
	srv := newLaunchpadServer(t, map[string]string{})
	c := newTestClient(t, srv)

	_, err := c.TeamRepositories(context.Background(), "~missing-team")
	assert.ErrorIs(t, err, ErrTeamNotFound)

	_, err = c.TeamRepositories(context.Background(), "  ")
	assert.Error(t, err)

	srv.Close()
	_, err = c.TeamRepositories(context.Background(), DefaultTeam)
	assert.ErrorIs(t, err, fetchers.ErrNetwork)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(nil, nil)
	assert.Equal(t, "https://api.launchpad.net/devel/+git", c.apiURL("+git"))
	assert.IsType(t, &fetchers.RetryFetcher{}, c.fetcher)
}

func TestFilterRepositories(t *testing.T) {
	repos := []Repository{{Name: "nova"}, {Name: "Glance"}, {Name: "python-oslo.config"}, {Name: "python-oslo.log"}}

	tests := []struct {
		name     string
		patterns []string
		exclude  bool
		want     []string
	}{
		{name: "no patterns", patterns: nil, want: []string{"nova", "Glance", "python-oslo.config", "python-oslo.log"}},
		{name: "exact case insensitive", patterns: []string{"glance"}, want: []string{"Glance"}},
		{name: "glob", patterns: []string{"python-oslo.*"}, want: []string{"python-oslo.config", "python-oslo.log"}},
		{name: "exclude", patterns: []string{"python-*", "NOVA"}, exclude: true, want: []string{"Glance"}},
		{name: "exact does not glob", patterns: []string{"python-oslo"}, want: nil},
		{name: "malformed glob", patterns: []string{"[nova"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range FilterRepositories(repos, tt.patterns, tt.exclude) {
				got = append(got, r.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
