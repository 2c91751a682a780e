package parsers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/packastack/packastack-core/providers/fetchers"
)

// Paths inside the OpenStack releases repository.
const (
	SeriesStatusPath     = "data/series_status.yaml"
	SigningKeyIndexPath  = "doc/source/index.rst"
	SigningKeyStaticDir  = "doc/source/static"
	deliverablesDir      = "deliverables"
	defaultNamespace     = "openstack"
	developmentStatus    = "development"
	signatureURLSuffix   = ".asc"
	defaultTarballSuffix = ".tar.gz"
)

// TarballsBaseURL is the default location of the official OpenStack tarballs.
var TarballsBaseURL = "https://tarballs.opendev.org"

var signingKeyRgx = regexp.MustCompile("present.*Cycle key.*\\n.*key\\s*(?P<key>0x[0-9a-fA-F]+)`_")

// Series is one entry of data/series_status.yaml.
type Series struct {
	Name   string `yaml:"name"`
	Status string `yaml:"status"`
}

// ParseSeriesStatus parses data/series_status.yaml (a reverse-chronological list of series).
func ParseSeriesStatus(content []byte) ([]Series, error) {
	var series []Series
	if err := yaml.Unmarshal(content, &series); err != nil {
		return nil, fmt.Errorf("%w: failed to parse series_status.yaml: %v", ErrMalformed, err)
	}
	return series, nil
}

// CurrentCycle returns the name of the series under development.
func CurrentCycle(series []Series) (string, error) {
	for _, s := range series {
		if s.Status == developmentStatus && s.Name != "" {
			return s.Name, nil
		}
	}
	return "", fmt.Errorf("%w: no development cycle found in series_status.yaml", ErrMalformed)
}

// PreviousCycle returns the series released before the current one (the second entry),
// or an empty string when there is none.
func PreviousCycle(series []Series) string {
	if len(series) < 2 {
		return ""
	}
	return series[1].Name
}

// Deliverable is the subset of deliverables/<cycle>/<project>.yaml used for imports.
type Deliverable struct {
	Namespace     string // e.g. 'openstack'
	ProjectName   string // e.g. 'nova'
	TarballBase   string // tarball name prefix, defaults to ProjectName
	LatestVersion string // last listed release, empty when nothing was released yet
	RepoPath      string // e.g. 'openstack/nova'
}

// deliverableFile mirrors the deliverable YAML layout. Repository settings are kept
// as a node so the first repository can be chosen in document order.
type deliverableFile struct {
	RepositorySettings yaml.Node `yaml:"repository-settings"`
	Releases           []struct {
		Version string `yaml:"version"`
	} `yaml:"releases"`
}

type repositorySettings struct {
	TarballBase string `yaml:"tarball-base"`
}

// ParseDeliverable parses a deliverable file. It returns nil without error when
// the deliverable declares no repository.
func ParseDeliverable(content []byte) (*Deliverable, error) {
	var df deliverableFile
	if err := yaml.Unmarshal(content, &df); err != nil {
		return nil, fmt.Errorf("%w: failed to parse deliverable: %v", ErrMalformed, err)
	}

	node := df.RepositorySettings
	if node.Kind != yaml.MappingNode || len(node.Content) < 2 {
		return nil, nil
	}

	repoPath := node.Content[0].Value
	var settings repositorySettings
	if err := node.Content[1].Decode(&settings); err != nil {
		return nil, fmt.Errorf("%w: invalid repository settings for %s: %v", ErrMalformed, repoPath, err)
	}

	d := &Deliverable{Namespace: defaultNamespace, ProjectName: repoPath, RepoPath: repoPath}
	if parts := strings.Split(repoPath, "/"); len(parts) >= 2 {
		d.Namespace, d.ProjectName = parts[0], parts[1]
	}
	d.TarballBase = settings.TarballBase
	if d.TarballBase == "" {
		d.TarballBase = d.ProjectName
	}
	if n := len(df.Releases); n > 0 {
		d.LatestVersion = df.Releases[n-1].Version
	}

	return d, nil
}

// TarballName returns '<tarball-base>-<version>.tar.gz'.
func (d *Deliverable) TarballName(version string) string {
	return d.TarballBase + "-" + version + defaultTarballSuffix
}

// TarballURL returns the download URL of the release tarball below baseURL
// (TarballsBaseURL when empty).
func (d *Deliverable) TarballURL(baseURL, version string) string {
	if baseURL == "" {
		baseURL = TarballsBaseURL
	}
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(baseURL, "/"), d.Namespace, d.TarballBase, d.TarballName(version))
}

// SignatureURL returns the detached signature URL of the release tarball.
func (d *Deliverable) SignatureURL(baseURL, version string) string {
	return d.TarballURL(baseURL, version) + signatureURLSuffix
}

// SigningKeyID extracts the current cycle signing key id from doc/source/index.rst.
func SigningKeyID(indexRST []byte) (string, error) {
	m := signingKeyRgx.FindSubmatch(indexRST)
	if m == nil {
		return "", fmt.Errorf("%w: could not find signing key in index.rst", ErrMalformed)
	}
	return strings.TrimSpace(string(m[signingKeyRgx.SubexpIndex("key")])), nil
}

// ReleasesRepo reads metadata from a checkout (or any FileFetcher) of the releases repository.
type ReleasesRepo struct {
	fetcher fetchers.FileFetcher
}

// NewReleasesRepo constructs ReleasesRepo.
func NewReleasesRepo(fetcher fetchers.FileFetcher) *ReleasesRepo {
	return &ReleasesRepo{fetcher: fetcher}
}

func (r *ReleasesRepo) file(ctx context.Context, path string) ([]byte, error) {
	b, err := r.fetcher.FileContent(ctx, path)
	if err != nil {
		if errors.Is(err, fetchers.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("unable to read %s from the releases repository: %w", path, err)
	}
	return b, nil
}

func (r *ReleasesRepo) series(ctx context.Context) ([]Series, error) {
	b, err := r.file(ctx, SeriesStatusPath)
	if err != nil {
		return nil, err
	}
	return ParseSeriesStatus(b)
}

// CurrentCycle returns the development cycle name (e.g. 'flamingo').
func (r *ReleasesRepo) CurrentCycle(ctx context.Context) (string, error) {
	series, err := r.series(ctx)
	if err != nil {
		return "", err
	}
	return CurrentCycle(series)
}

// PreviousCycle returns the previously released cycle name, or an empty string.
func (r *ReleasesRepo) PreviousCycle(ctx context.Context) (string, error) {
	series, err := r.series(ctx)
	if err != nil {
		return "", err
	}
	return PreviousCycle(series), nil
}

// Deliverable reads deliverables/<cycle>/<project>.yaml.
// Not every project has a deliverable file: nil is returned without error in that case.
func (r *ReleasesRepo) Deliverable(ctx context.Context, cycle, project string) (*Deliverable, error) {
	b, err := r.file(ctx, fmt.Sprintf("%s/%s/%s.yaml", deliverablesDir, cycle, project))
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ParseDeliverable(b)
}

// SigningKey returns the current cycle signing key id and its armored content.
func (r *ReleasesRepo) SigningKey(ctx context.Context) (string, []byte, error) {
	index, err := r.file(ctx, SigningKeyIndexPath)
	if err != nil {
		return "", nil, err
	}
	id, err := SigningKeyID(index)
	if err != nil {
		return "", nil, err
	}
	key, err := r.file(ctx, fmt.Sprintf("%s/%s.txt", SigningKeyStaticDir, id))
	if err != nil {
		return "", nil, err
	}
	return id, key, nil
}
