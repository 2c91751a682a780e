package uscan

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/packastack/packastack-core/providers/fetchers"
	"github.com/packastack/packastack-core/providers/parsers"
	"github.com/packastack/packastack-core/providers/versioneer"
)

// Names of the files NewScannerFromDir reads.
const (
	WatchFileName     = "watch"
	ChangelogFileName = "changelog"
)

// versionGroup is the preferred capture group name for the upstream version.
const versionGroup = "version"

// Scanner scans the upstream locations of one watch file.
type Scanner struct {
	content         []byte
	fetcher         fetchers.PageFetcher
	packageName     string
	packagedVersion string

	entries []WatchEntry
}

// Option configures Scanner.
type Option func(*Scanner)

// WithFetcher sets the page fetcher. By default pages are fetched with
// fetchers.NewHTTPFetcher and no retries.
func WithFetcher(f fetchers.PageFetcher) Option {
	return func(s *Scanner) {
		s.fetcher = f
	}
}

// WithPackageName sets the value substituted for @PACKAGE@.
func WithPackageName(name string) Option {
	return func(s *Scanner) {
		s.packageName = name
	}
}

// WithPackagedVersion sets the version the scan results are compared against.
func WithPackagedVersion(version string) Option {
	return func(s *Scanner) {
		s.packagedVersion = version
	}
}

// WithChangelog takes the package name and the packaged version from the
// first debian/changelog header. A changelog without header is ignored.
func WithChangelog(changelog []byte) Option {
	return func(s *Scanner) {
		header, err := parsers.ParseChangelogHeader(changelog)
		if err != nil {
			return
		}
		s.packageName = header.Name
		s.packagedVersion = header.Version
	}
}

// NewScanner constructs Scanner over watch file content. Nothing is parsed or fetched yet.
func NewScanner(content []byte, opts ...Option) *Scanner {
	s := &Scanner{content: content}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = fetchers.NewHTTPFetcher(nil, 0)
	}
	return s
}

// NewScannerFromDir constructs Scanner from the 'watch' file of a debian directory.
//
// The package name defaults to the directory name; a sibling 'changelog' provides
// the package name and packaged version when present. Options passed by the caller
// take precedence.
func NewScannerFromDir(ctx context.Context, dir string, opts ...Option) (*Scanner, error) {
	files := fetchers.NewDirFetcher(dir)

	watch, err := files.FileContent(ctx, WatchFileName)
	if err != nil {
		if errors.Is(err, fetchers.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: watch file not found in %s", ErrMalformedWatchFile, dir)
		}
		return nil, err
	}

	defaults := []Option{WithPackageName(filepath.Base(filepath.Clean(dir)))}

	changelog, err := files.FileContent(ctx, ChangelogFileName)
	switch {
	case err == nil:
		defaults = append(defaults, WithChangelog(changelog))
	case !errors.Is(err, fetchers.ErrFileNotFound):
		return nil, err
	}

	return NewScanner(watch, append(defaults, opts...)...), nil
}

// PackagedVersion returns the version scan results are compared against, if known.
func (s *Scanner) PackagedVersion() string {
	return s.packagedVersion
}

// Entries returns the parsed watch entries. The watch file is parsed on the first call.
func (s *Scanner) Entries() ([]WatchEntry, error) {
	if s.entries != nil {
		return s.entries, nil
	}

	entries, err := ParseWatch(s.content, s.packageName)
	if err != nil {
		return nil, err
	}
	s.entries = entries

	return s.entries, nil
}

// Scan fetches every entry's upstream page and collects the matching artifacts.
//
// Entries are scanned one by one; ctx is checked before each of them. Fetch failures
// are returned as is, so errors.Is(err, fetchers.ErrNetwork) tells them apart from
// ErrMalformedWatchFile.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}

	res := &Result{PackagedVersion: s.packagedVersion}
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := s.scanEntry(ctx, &entries[i])
		if err != nil {
			return nil, err
		}
		res.Matches = append(res.Matches, matches...)
	}

	if latest, ok := res.Latest(); ok && s.packagedVersion != "" {
		res.NeedsUpdate = versioneer.Compare(latest.Version, s.packagedVersion) > 0
	}

	return res, nil
}

func (s *Scanner) scanEntry(ctx context.Context, entry *WatchEntry) ([]WatchMatch, error) {
	base, err := url.Parse(entry.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid watch URL %q: %v", ErrMalformedWatchFile, entry.URL, err)
	}

	body, err := s.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		return nil, err
	}

	// Pages without links (plain listings) are matched as a whole.
	targets := extractLinks(body)
	available := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		available[t] = struct{}{}
	}
	if len(targets) == 0 {
		targets = []string{string(body)}
	}

	var (
		matches []WatchMatch
		seen    = map[WatchMatch]struct{}{}
	)
	for _, target := range targets {
		for _, loc := range entry.Pattern.FindAllStringSubmatchIndex(target, -1) {
			m, err := buildMatch(entry, base, target, loc, available)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			matches = append(matches, m)
		}
	}

	return matches, nil
}

// buildMatch turns one regex match into a WatchMatch by running the mangle pipelines.
func buildMatch(entry *WatchEntry, base *url.URL, target string, loc []int, available map[string]struct{}) (WatchMatch, error) {
	version, err := extractVersion(entry.Pattern, target, loc)
	if err != nil {
		return WatchMatch{}, err
	}
	if version, err = ApplyMangles(version, entry.UVersionMangle); err != nil {
		return WatchMatch{}, err
	}

	matched := target[loc[0]:loc[1]]

	download, err := ApplyMangles(matched, entry.DownloadURLMangle)
	if err != nil {
		return WatchMatch{}, err
	}
	downloadURL, err := resolveURL(base, download)
	if err != nil {
		return WatchMatch{}, err
	}

	filename, err := ApplyMangles(matched, entry.FilenameMangle)
	if err != nil {
		return WatchMatch{}, err
	}
	if filename == "" {
		filename = downloadURL[strings.LastIndex(downloadURL, "/")+1:]
	}

	m := WatchMatch{Version: version, URL: downloadURL, Filename: filename}

	if len(entry.PGPSigURLMangle) > 0 {
		sig, err := ApplyMangles(matched, entry.PGPSigURLMangle)
		if err != nil {
			return WatchMatch{}, err
		}
		// Only signatures actually linked from the page are attached.
		if _, ok := available[sig]; ok {
			if m.SignatureURL, err = resolveURL(base, sig); err != nil {
				return WatchMatch{}, err
			}
		}
	}

	return m, nil
}

// extractVersion returns the 'version' group of the match, or its first group.
func extractVersion(rgx *regexp.Regexp, target string, loc []int) (string, error) {
	idx := rgx.SubexpIndex(versionGroup)
	if idx < 0 && rgx.NumSubexp() > 0 {
		idx = 1
	}
	if idx < 0 {
		return "", fmt.Errorf("%w: watch regex %q must expose an upstream version via a named group 'version' or at least one capturing group",
			ErrMalformedWatchFile, rgx.String())
	}

	if loc[2*idx] < 0 {
		return "", nil
	}
	return target[loc[2*idx]:loc[2*idx+1]], nil
}

func resolveURL(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: invalid download URL %q: %v", ErrMalformedWatchFile, ref, err)
	}
	return base.ResolveReference(u).String(), nil
}
