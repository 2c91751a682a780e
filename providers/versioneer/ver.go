/*
Package versioneer converts upstream OpenStack version identifiers into Debian
package versions and orders Debian versions the way dpkg does.

Usage:

	deb, err := versioneer.Convert("12.0.0.0rc1") // "12.0.0~rc1"
	snap, err := versioneer.ConvertSnapshot("12.0.0-5-gabcdef", "") // "12.0.0+5-gabcdef.1-1ubuntu0"
*/
package versioneer

import (
	"errors"
	"regexp"

	"pault.ag/go/debian/version"
)

// ErrInvalidFormat is returned when a version or git-describe string does not
// match any supported grammar.
var ErrInvalidFormat = errors.New("invalid version format")

// VersionType is the kind of upstream version (see DetectType).
type VersionType string

// Supported version types.
const (
	TypeBeta      = VersionType("beta")
	TypeCandidate = VersionType("candidate")
	TypeRelease   = VersionType("release")
	TypeUnknown   = VersionType("unknown")
)

var (
	betaMarkerRgx      = regexp.MustCompile(`(\.0b|b)\d+`)
	candidateMarkerRgx = regexp.MustCompile(`(\.0rc|rc)\d+`)
	releaseRgx         = regexp.MustCompile(`^\d+(?:\.\d+)*$`)
)

// DetectType classifies a version string.
//
// Beta and candidate markers are searched anywhere in the string, but only
// when the marker is directly followed by digits: "v1.2.3-beta" is unknown.
func DetectType(v string) VersionType {
	switch {
	case betaMarkerRgx.MatchString(v):
		return TypeBeta
	case candidateMarkerRgx.MatchString(v):
		return TypeCandidate
	case releaseRgx.MatchString(v):
		return TypeRelease
	}
	return TypeUnknown
}

// Compare orders two Debian version strings with the dpkg algorithm.
// It returns a negative number when a < b, zero when equal and a positive number when a > b.
func Compare(a, b string) int {
	return version.Compare(parseDebian(a), parseDebian(b))
}

// Latest returns the highest version by dpkg ordering, false for an empty list.
func Latest(versions ...string) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if Compare(v, latest) > 0 {
			latest = v
		}
	}
	return latest, true
}

// parseDebian never fails: strings dpkg would reject (empty revision, bad epoch)
// are compared as a bare upstream version.
func parseDebian(v string) version.Version {
	parsed, err := version.Parse(v)
	if err != nil {
		return version.Version{Version: v}
	}
	return parsed
}
