/*
Package uscan discovers upstream release artifacts described by a debian/watch file.

It covers the subset of Debian's uscan needed for automation: version 3+ watch
files with opts= blocks, the uversionmangle, downloadurlmangle, filenamemangle
and pgpsigurlmangle pipelines, and dpkg ordering of the discovered versions.

Usage:

	sc := uscan.NewScanner(watch, uscan.WithChangelog(changelog))
	res, err := sc.Scan(ctx)
	if err != nil {
		return err
	}
	if latest, ok := res.Latest(); ok && res.NeedsUpdate {
		fmt.Println(latest.Version, latest.URL)
	}
*/
package uscan

import (
	"errors"
	"regexp"

	"github.com/packastack/packastack-core/providers/versioneer"
)

// ErrMalformedWatchFile is returned for structural problems of a watch file: missing or
// unsupported version, unparseable entries, invalid regexes or mangles, and regexes
// which expose no version group. It is never worth retrying.
//
// Network failures are reported as fetchers.ErrNetwork instead.
var ErrMalformedWatchFile = errors.New("malformed watch file")

// WatchEntry is one parsed watch file stanza.
type WatchEntry struct {
	URL     string
	Pattern *regexp.Regexp

	UVersionMangle    []string
	DownloadURLMangle []string
	FilenameMangle    []string
	PGPSigURLMangle   []string
}

// WatchMatch is a discovered upstream artifact.
type WatchMatch struct {
	Version  string `json:"version"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	// SignatureURL is empty when no detached signature was found on the page.
	SignatureURL string `json:"signature_url,omitempty"`
}

// Result holds the matches of a scan.
type Result struct {
	Matches []WatchMatch `json:"matches"`
	// PackagedVersion comes from the changelog header, empty when unknown.
	PackagedVersion string `json:"packaged_version,omitempty"`
	NeedsUpdate     bool   `json:"needs_update"`
}

// Latest returns the match with the highest version in dpkg ordering.
// The first one wins among equal versions.
func (r *Result) Latest() (WatchMatch, bool) {
	if len(r.Matches) == 0 {
		return WatchMatch{}, false
	}

	latest := r.Matches[0]
	for _, m := range r.Matches[1:] {
		if versioneer.Compare(m.Version, latest.Version) > 0 {
			latest = m
		}
	}
	return latest, true
}

// Signatures returns the non-empty signature URLs in match order.
func (r *Result) Signatures() []string {
	var sigs []string
	for _, m := range r.Matches {
		if m.SignatureURL != "" {
			sigs = append(sigs, m.SignatureURL)
		}
	}
	return sigs
}
