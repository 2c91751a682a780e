package versioneer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

/*
Upstream to Debian version conversion rules.
*/

// preReleaseConfig describes one pre-release marker (e.g. 'b' for betas).
type preReleaseConfig struct {
	marker string         // Literal marker token between base version and number
	rgx    *regexp.Regexp // Compiled '^(.+)<marker>(\d+)$' expression
}

var (
	betaCfg      = preReleaseConfig{marker: "b", rgx: regexp.MustCompile(`^(.+)b(\d+)$`)}
	candidateCfg = preReleaseConfig{marker: "rc", rgx: regexp.MustCompile(`^(.+)rc(\d+)$`)}

	// describeRgx matches 'git describe --long --tags' output: <tag>-<commits>-g<hash>
	describeRgx = regexp.MustCompile(`^(.+?)-(\d+)-g([0-9a-f]+)$`)
)

// ConvertBeta converts an upstream beta version into Debian format.
//
//	12.0.0.0b0 -> 12.0.0~b0
//	12.0.0b1   -> 12.0.0~b1
func ConvertBeta(upstream string) (string, error) {
	return convertPreRelease(upstream, betaCfg)
}

// ConvertCandidate converts an upstream release candidate version into Debian format.
//
//	1.2.3.0rc10 -> 1.2.3~rc10
func ConvertCandidate(upstream string) (string, error) {
	return convertPreRelease(upstream, candidateCfg)
}

func convertPreRelease(upstream string, cfg preReleaseConfig) (string, error) {
	m := cfg.rgx.FindStringSubmatch(upstream)
	if m == nil {
		return "", fmt.Errorf("%w: %q is not a '%s' version", ErrInvalidFormat, upstream, cfg.marker)
	}
	base, number := m[1], m[2]

	// A fourth (or later) trailing '0' component is a release-stub placeholder.
	components := strings.Split(base, ".")
	if len(components) >= 4 && components[len(components)-1] == "0" {
		base = strings.Join(components[:len(components)-1], ".")
	}

	return base + "~" + cfg.marker + number, nil
}

// ConvertRelease converts an upstream release version into Debian format.
// Only a version with exactly four components and a '0' fourth component is changed.
func ConvertRelease(upstream string) string {
	parts := strings.Split(upstream, ".")
	if len(parts) == 4 && parts[3] == "0" {
		return strings.Join(parts[:3], ".")
	}
	return upstream
}

// ConvertSnapshot converts git-describe output into a Debian snapshot version.
//
// Existing is the previously imported version for the same package (may be empty).
// When it refers to the same tag, commit count and hash the trailing counter is
// incremented so that repeated imports of one commit stay ordered:
//
//	12.0.0-5-gabcdef                                -> 12.0.0+5-gabcdef.1-1ubuntu0
//	12.0.0-5-gabcdef, 12.0.0+5-gabcdef.2-1ubuntu0 -> 12.0.0+5-gabcdef.3-1ubuntu0
//
// Older versions without the dot before the counter are still recognised.
func ConvertSnapshot(describe, existing string) (string, error) {
	m := describeRgx.FindStringSubmatch(describe)
	if m == nil {
		return "", fmt.Errorf("%w: invalid git-describe output %q", ErrInvalidFormat, describe)
	}
	tag, commits, hash := strings.TrimPrefix(m[1], "v"), m[2], m[3]

	// Best effort: tags that look like betas or candidates but do not follow the
	// grammar are kept verbatim.
	if strings.Contains(tag, "b") {
		if converted, err := ConvertBeta(tag); err == nil {
			tag = converted
		}
	} else if strings.Contains(tag, "rc") {
		if converted, err := ConvertCandidate(tag); err == nil {
			tag = converted
		}
	}

	snapshot := fmt.Sprintf("%s+%s-g%s", tag, commits, hash)
	return fmt.Sprintf("%s.%d-1ubuntu0", snapshot, snapshotCounter(snapshot, existing)), nil
}

// snapshotCounter returns the counter following the snapshot in existing plus one, or 1.
func snapshotCounter(snapshot, existing string) int {
	if existing == "" || !strings.Contains(existing, snapshot) {
		return 1
	}
	rgx := regexp.MustCompile(regexp.QuoteMeta(snapshot) + `\.?(\d+)-`)
	m := rgx.FindStringSubmatch(existing)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return n + 1
}

// Convert converts an upstream beta, candidate or release version according to its
// detected type. Snapshots are not detectable from a single version string; use
// ConvertSnapshot for git-describe output.
func Convert(upstream string) (string, error) {
	switch DetectType(upstream) {
	case TypeBeta:
		return ConvertBeta(upstream)
	case TypeCandidate:
		return ConvertCandidate(upstream)
	case TypeRelease:
		return ConvertRelease(upstream), nil
	}
	return "", fmt.Errorf("%w: unable to detect the type of %q", ErrInvalidFormat, upstream)
}
