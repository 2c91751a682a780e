/*
Package pip provides a client for the PyPI JSON API.

It is used as an alternative source of upstream releases for Python projects
whose packaging has no usable debian/watch file.

Usage:

	pypi := pip.NewPyPiClient(nil, nil)
	latest, err := pip.LatestRelease(ctx, pypi, "oslo.config")
*/
package pip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/packastack/packastack-core/providers/fetchers"
	"github.com/packastack/packastack-core/providers/versioneer"
)

// ErrNoReleases is returned when a project has no usable release.
var ErrNoReleases = errors.New("no usable releases")

// pyPiBaseURL - PyPi base API url (used as default client baseURL)
var pyPiBaseURL *url.URL

// pyPiHostname - PyPi API hostname (used as default API).
var pyPiHostname string = "https://pypi.org"

func init() {
	pyPiBaseURL, _ = url.Parse(pyPiHostname)
}

// Client is the subset of the PyPI API the update checkers rely on.
type Client interface {
	Release(ctx context.Context, name, version string) (*PipPackage, *http.Response, error)
}

// NewPyPiClient constructs a new PyPiClient
//
// If httpClient or URL is nil - default values will be used.
// Pass URL only if you are sure that the address is compatible with PyPi public API.
func NewPyPiClient(httpClient *http.Client, URL *url.URL) *PyPiClient {
	if URL == nil {
		URL = pyPiBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PyPiClient{httpClient: httpClient, baseUrl: *URL, UserAgent: fetchers.DefaultUserAgent}
}

// PyPiClient is used to communicate with PyPi compatible API service.
type PyPiClient struct {
	httpClient *http.Client
	baseUrl    url.URL
	// UserAgent is sent with every request.
	UserAgent string
}

// Package method is used to get information about packages, their versions and metadata.
//
// It is a shortcut for Release() without a version.
func (pc PyPiClient) Package(ctx context.Context, name string) (*PipPackage, *http.Response, error) {
	return pc.Release(ctx, name, "")
}

// Release method is used to get information about a package release.
//
// Version argument is optional. Transport failures and non-200 responses are
// returned as *fetchers.NetworkError.
func (pc PyPiClient) Release(ctx context.Context, name, version string) (*PipPackage, *http.Response, error) {
	if name == "" {
		return nil, nil, fmt.Errorf("package name is required and can't be empty")
	}

	var path string
	if version == "" {
		path = fmt.Sprintf("%s/pypi/%s/json", &pc.baseUrl, url.PathEscape(name))
	} else {
		path = fmt.Sprintf("%s/pypi/%s/%s/json", &pc.baseUrl, url.PathEscape(name), url.PathEscape(version))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create a request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", pc.UserAgent)

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return nil, nil, &fetchers.NetworkError{URL: path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, resp, &fetchers.NetworkError{URL: path, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, &fetchers.NetworkError{URL: path, Err: fmt.Errorf("unable to read the response body: %w", err)}
	}

	pp := PipPackage{}
	if err = json.Unmarshal(body, &pp); err != nil {
		return nil, resp, fmt.Errorf("unable to parse the response body: %w", err)
	}

	return &pp, resp, nil
}

// PipPackage represents package metadata from PyPi.
type PipPackage struct {
	Info       PipPackageInfo     `json:"info"`
	LastSerial int                `json:"last_serial"`
	Releases   PipPackageVersions `json:"releases"`
}

// PipPackageInfo represents package information data.
type PipPackageInfo struct {
	Author         string `json:"author"`
	HomePage       string `json:"home_page"`
	License        string `json:"license"`
	Name           string `json:"name"`
	PackageURL     string `json:"package_url"`
	ProjectURL     string `json:"project_url"`
	ReleaseURL     string `json:"release_url"`
	RequiresPython string `json:"requires_python"`
	Summary        string `json:"summary"`
	Version        string `json:"version"`
	Yanked         bool   `json:"yanked"`
}

// PipPackageVersion represents one version with its uploaded files.
type PipPackageVersion struct {
	Version  string
	Releases []PipPackageRelease
}

// Yanked reports whether every file of the version was yanked.
func (v PipPackageVersion) Yanked() bool {
	for _, r := range v.Releases {
		if !r.Yanked {
			return false
		}
	}
	return len(v.Releases) > 0
}

// Sdist returns the source distribution of the version, if uploaded.
func (v PipPackageVersion) Sdist() (PipPackageRelease, bool) {
	for _, r := range v.Releases {
		if r.Packagetype == "sdist" && !r.Yanked {
			return r, true
		}
	}
	return PipPackageRelease{}, false
}

// PipPackageVersions represents package versions list.
type PipPackageVersions []PipPackageVersion

// UnmarshalJSON is used in unmarshalling process to keep the original versions order.
//
// We basically use custom decoder to decode and transform key=>obj values into slice values.
func (pms *PipPackageVersions) UnmarshalJSON(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("invalid slice length %d", len(data))
	}

	d := json.NewDecoder(bytes.NewReader(data))
	t, err := d.Token()
	if err != nil || t != json.Delim('{') {
		return fmt.Errorf("releases custom unmarshaller failed: %v", err)
	}

	var result PipPackageVersions
	for d.More() {
		t, err := d.Token()
		if err != nil {
			return fmt.Errorf("releases custom unmarshaller failed: %w", err)
		}

		var v PipPackageVersion
		v.Version = t.(string)
		if err := d.Decode(&v.Releases); err != nil {
			return fmt.Errorf("releases custom unmarshaller failed decoding token: %w", err)
		}

		result = append(result, v)
	}

	*pms = result
	return nil
}

// PipPackageRelease represents one uploaded file of a release.
type PipPackageRelease struct {
	Filename string `json:"filename"`
	Digests  struct {
		Md5    string `json:"md5"`
		Sha256 string `json:"sha256"`
	} `json:"digests"`
	HasSig            bool      `json:"has_sig"`
	Packagetype       string    `json:"packagetype"`
	PythonVersion     string    `json:"python_version"`
	Size              int       `json:"size"`
	UploadTimeIso8601 time.Time `json:"upload_time_iso_8601"`
	URL               string    `json:"url"`
	Yanked            bool      `json:"yanked"`
	YankedReason      string    `json:"yanked_reason"`
}

// UpstreamRelease is the newest release of a PyPI project.
type UpstreamRelease struct {
	Name          string `json:"name"`
	Version       string `json:"version"` // as published on PyPI
	DebianVersion string `json:"debian_version"`
	// URL and Filename of the source distribution, empty when only wheels were uploaded.
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// LatestRelease returns the newest release of name, ordered by the Debian versions of
// the published ones. Versions without files, yanked versions and versions that have
// no Debian rendition (e.g. post or dev releases) are skipped.
func LatestRelease(ctx context.Context, c Client, name string) (*UpstreamRelease, error) {
	pkg, _, err := c.Release(ctx, name, "")
	if err != nil {
		return nil, err
	}

	var latest *UpstreamRelease
	for _, v := range pkg.Releases {
		if len(v.Releases) == 0 || v.Yanked() {
			continue
		}
		deb, err := versioneer.Convert(v.Version)
		if err != nil {
			continue
		}
		if latest != nil && versioneer.Compare(deb, latest.DebianVersion) <= 0 {
			continue
		}

		latest = &UpstreamRelease{Name: name, Version: v.Version, DebianVersion: deb}
		if sdist, ok := v.Sdist(); ok {
			latest.URL, latest.Filename = sdist.URL, sdist.Filename
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoReleases, name)
	}
	return latest, nil
}
