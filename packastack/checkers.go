package packastack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/packastack/packastack-core/providers/api/pip"
	"github.com/packastack/packastack-core/providers/fetchers"
	"github.com/packastack/packastack-core/providers/uscan"
	"github.com/packastack/packastack-core/providers/versioneer"
)

// ErrNoUpstreamRelease is returned when the upstream location lists no release at all.
var ErrNoUpstreamRelease = errors.New("no upstream release found")

// UpdatesChecker represents checkers interface.
type UpdatesChecker interface {
	// LastUpdate returns the newest upstream release of the packaging source.
	LastUpdate(ctx context.Context, src PackagingSource) (*Update, error)
}

// Update represents the newest upstream release of one source package.
type Update struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	URL            string `json:"url"`
	Filename       string `json:"filename,omitempty"`
	SignatureURL   string `json:"signature_url,omitempty"`
	CurrentVersion string `json:"current_version,omitempty"`
	NeedsUpdate    bool   `json:"needs_update"`
}

// Failure records a source whose check failed.
type Failure struct {
	Source string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Source, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// LastUpdates checks every source in order. A failing source is recorded in the
// returned failures and the remaining sources are still checked, unless failFast
// is set: the first failure is then returned as the error.
//
// The returned error is also set when ctx is done.
func LastUpdates(ctx context.Context, uc UpdatesChecker, sources []PackagingSource, failFast bool) ([]Update, []Failure, error) {
	var (
		updates  []Update
		failures []Failure
	)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return updates, failures, err
		}

		update, err := uc.LastUpdate(ctx, src)
		if err != nil {
			f := Failure{Source: src.Name(), Err: err}
			if failFast {
				return updates, failures, f
			}
			failures = append(failures, f)
			continue
		}
		updates = append(updates, *update)
	}

	return updates, failures, nil
}

// NewWatchUpdatesChecker constructs new WatchUpdatesChecker.
//
// If fetcher is nil, upstream pages are fetched over HTTP with the default retry policy.
func NewWatchUpdatesChecker(fetcher fetchers.PageFetcher) UpdatesChecker {
	if fetcher == nil {
		fetcher = fetchers.NewRetryFetcher(fetchers.NewHTTPFetcher(nil, 0))
	}
	return &WatchUpdatesChecker{fetcher: fetcher}
}

// WatchUpdatesChecker finds upstream releases with the source's debian/watch file.
type WatchUpdatesChecker struct {
	fetcher fetchers.PageFetcher
}

// LastUpdate scans the debian/watch locations and returns the newest match.
func (uc WatchUpdatesChecker) LastUpdate(ctx context.Context, src PackagingSource) (*Update, error) {
	watch, err := src.Watch(ctx)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s has no debian/watch", uscan.ErrMalformedWatchFile, src.Name())
		}
		return nil, err
	}

	name, current, changelog, err := packagedInfo(ctx, src)
	if err != nil {
		return nil, err
	}

	sc := uscan.NewScanner(watch,
		uscan.WithFetcher(uc.fetcher),
		uscan.WithPackageName(name),
		uscan.WithChangelog(changelog),
	)
	res, err := sc.Scan(ctx)
	if err != nil {
		return nil, err
	}

	latest, ok := res.Latest()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoUpstreamRelease, name)
	}

	return &Update{
		Name:           name,
		Version:        latest.Version,
		URL:            latest.URL,
		Filename:       latest.Filename,
		SignatureURL:   latest.SignatureURL,
		CurrentVersion: current,
		NeedsUpdate:    res.NeedsUpdate,
	}, nil
}

// NewPyPIUpdatesChecker constructs new PyPIUpdatesChecker.
func NewPyPIUpdatesChecker(api pip.Client) UpdatesChecker {
	if api == nil {
		api = pip.NewPyPiClient(nil, nil)
	}
	return &PyPIUpdatesChecker{api: api}
}

// PyPIUpdatesChecker finds upstream releases of Python projects on PyPI.
type PyPIUpdatesChecker struct {
	api pip.Client
}

// LastUpdate returns the newest PyPI release of the project behind the source.
//
// The project name is the last path segment of the control Homepage, or the
// source package name without its 'python-' prefix.
func (uc PyPIUpdatesChecker) LastUpdate(ctx context.Context, src PackagingSource) (*Update, error) {
	control, err := src.Control(ctx)
	if err != nil {
		return nil, err
	}

	project := control.UpstreamProjectName()
	if project == "" {
		project = strings.TrimPrefix(control.Source, "python-")
	}

	_, current, _, err := packagedInfo(ctx, src)
	if err != nil {
		return nil, err
	}

	latest, err := pip.LatestRelease(ctx, uc.api, project)
	if err != nil {
		if errors.Is(err, pip.ErrNoReleases) {
			return nil, fmt.Errorf("%w: %v", ErrNoUpstreamRelease, err)
		}
		return nil, err
	}

	return &Update{
		Name:           control.Source,
		Version:        latest.DebianVersion,
		URL:            latest.URL,
		Filename:       latest.Filename,
		CurrentVersion: current,
		NeedsUpdate:    current != "" && versioneer.Compare(latest.DebianVersion, current) > 0,
	}, nil
}
