package packastack

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/packastack/packastack-core/providers/versioneer"
)

// Strategy is the kind of upstream import.
type Strategy string

// Available import strategies.
const (
	StrategyAuto      = Strategy("auto")
	StrategyRelease   = Strategy("release")
	StrategyCandidate = Strategy("candidate")
	StrategyBeta      = Strategy("beta")
	StrategySnapshot  = Strategy("snapshot")
)

var (
	// ErrSnapshotTagConflict is returned when a snapshot import was explicitly
	// requested but HEAD carries a tag.
	ErrSnapshotTagConflict = errors.New("explicitly requested snapshot but HEAD is tagged")
	// ErrHeadTagged is returned when a snapshot import was selected automatically
	// although HEAD is tagged (with tags of no known version type).
	ErrHeadTagged = errors.New("HEAD is tagged, use the release, candidate or beta strategy instead")
	// ErrNoMatchingTag is returned when no HEAD tag fits the selected strategy.
	ErrNoMatchingTag = errors.New("no HEAD tag matches the import strategy")
	// ErrUnknownStrategy is returned for unsupported strategy names.
	ErrUnknownStrategy = errors.New("unknown import strategy")
)

// ParseStrategy validates a strategy name. An empty name means StrategyAuto.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategyRelease, StrategyCandidate, StrategyBeta, StrategySnapshot:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// SelectStrategy resolves the strategy to use for an upstream HEAD.
//
// A requested strategy other than auto is kept as is; explicit reports whether a
// snapshot was explicitly requested. In auto mode an untagged HEAD is imported as a
// snapshot, otherwise the first tag of a known version type decides ('v' prefixes
// are ignored).
func SelectStrategy(requested Strategy, headTags []string) (strategy Strategy, explicit bool) {
	if requested != "" && requested != StrategyAuto {
		return requested, requested == StrategySnapshot
	}

	for _, tag := range headTags {
		switch versioneer.DetectType(strings.TrimPrefix(tag, "v")) {
		case versioneer.TypeBeta:
			return StrategyBeta, false
		case versioneer.TypeCandidate:
			return StrategyCandidate, false
		case versioneer.TypeRelease:
			return StrategyRelease, false
		}
	}
	return StrategySnapshot, false
}

// ExistingVersionLookup returns the Debian version of a previous snapshot import
// of pkg, or an empty string when there is none.
type ExistingVersionLookup func(ctx context.Context, pkg string) (string, error)

// ImportRequest describes the upstream HEAD to import.
type ImportRequest struct {
	// Package is the source package name.
	Package string
	// Strategy is the requested strategy, auto when empty.
	Strategy Strategy
	// HeadTags are the tags pointing at the upstream HEAD.
	HeadTags []string
	// Describe is the 'git describe --long --tags' output of HEAD, used by snapshots.
	Describe string
	// ExistingVersion finds the previous snapshot version. Optional.
	ExistingVersion ExistingVersionLookup
}

// ImportPlan is the outcome of PlanImport.
type ImportPlan struct {
	Strategy        Strategy
	UpstreamVersion string
	DebianVersion   string
	// OrigTarball is the Debian name of the upstream tarball.
	OrigTarball string
}

// PlanImport selects the import strategy and renders the Debian version.
func PlanImport(ctx context.Context, req ImportRequest) (*ImportPlan, error) {
	if req.Package == "" {
		return nil, fmt.Errorf("package name is required and can't be empty")
	}

	strategy, explicit := SelectStrategy(req.Strategy, req.HeadTags)
	plan := &ImportPlan{Strategy: strategy}

	var err error
	switch strategy {
	case StrategySnapshot:
		if len(req.HeadTags) > 0 {
			if explicit {
				return nil, fmt.Errorf("%w: %s", ErrSnapshotTagConflict, strings.Join(req.HeadTags, ", "))
			}
			return nil, fmt.Errorf("%w: %s", ErrHeadTagged, strings.Join(req.HeadTags, ", "))
		}

		var existing string
		if req.ExistingVersion != nil {
			if existing, err = req.ExistingVersion(ctx, req.Package); err != nil {
				return nil, fmt.Errorf("unable to look the previous snapshot up: %w", err)
			}
		}
		plan.UpstreamVersion = req.Describe
		plan.DebianVersion, err = versioneer.ConvertSnapshot(req.Describe, existing)

	case StrategyRelease, StrategyCandidate, StrategyBeta:
		tag, ok := matchingTag(strategy, req.HeadTags)
		if !ok {
			return nil, fmt.Errorf("%w: %s in %v", ErrNoMatchingTag, strategy, req.HeadTags)
		}
		plan.UpstreamVersion = tag
		switch strategy {
		case StrategyRelease:
			plan.DebianVersion = versioneer.ConvertRelease(tag)
		case StrategyCandidate:
			plan.DebianVersion, err = versioneer.ConvertCandidate(tag)
		default:
			plan.DebianVersion, err = versioneer.ConvertBeta(tag)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	if err != nil {
		return nil, err
	}

	plan.OrigTarball = OrigTarballName(req.Package, plan.DebianVersion)
	return plan, nil
}

// matchingTag returns the first tag (without a leading 'v') of the strategy's version type.
func matchingTag(strategy Strategy, tags []string) (string, bool) {
	want := map[Strategy]versioneer.VersionType{
		StrategyRelease:   versioneer.TypeRelease,
		StrategyCandidate: versioneer.TypeCandidate,
		StrategyBeta:      versioneer.TypeBeta,
	}[strategy]

	for _, tag := range tags {
		tag = strings.TrimPrefix(tag, "v")
		if versioneer.DetectType(tag) == want {
			return tag, true
		}
	}
	return "", false
}

// OrigTarballName returns the Debian upstream tarball name '<pkg>_<version>.orig.tar.gz'.
func OrigTarballName(pkg, debianVersion string) string {
	return fmt.Sprintf("%s_%s.orig.tar.gz", pkg, debianVersion)
}

var origTarballRgx = regexp.MustCompile(`^.*_(.+)\.orig\.tar\.gz$`)

// TarballDirLookup looks previous imports up among the '<pkg>_*.orig.tar.gz'
// files of dir and returns the highest version found.
func TarballDirLookup(dir string) ExistingVersionLookup {
	return func(ctx context.Context, pkg string) (string, error) {
		paths, err := filepath.Glob(filepath.Join(dir, globEscape(pkg)+"_*.orig.tar.gz"))
		if err != nil {
			return "", err
		}

		var versions []string
		for _, p := range paths {
			if m := origTarballRgx.FindStringSubmatch(filepath.Base(p)); m != nil {
				versions = append(versions, m[1])
			}
		}
		latest, _ := versioneer.Latest(versions...)
		return latest, nil
	}
}

// globEscape escapes the filepath.Match metacharacters of s.
func globEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`).Replace(s)
}
