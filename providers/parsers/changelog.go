package parsers

import (
	"bufio"
	"bytes"
	"errors"
	"regexp"
)

// ErrNoChangelogHeader is returned when the first changelog line is not an entry header.
var ErrNoChangelogHeader = errors.New("no changelog header")

// changelogHeaderRgx matches '<name> (<version>) <distribution>; urgency=...'.
var changelogHeaderRgx = regexp.MustCompile(`^(?P<name>\S+) \((?P<version>[^)]+)\)`)

// ChangelogHeader is the package name and version of the newest changelog entry.
type ChangelogHeader struct {
	Name    string
	Version string
}

// ParseChangelogHeader reads the first line of a debian/changelog.
func ParseChangelogHeader(content []byte) (ChangelogHeader, error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	if !scanner.Scan() {
		return ChangelogHeader{}, ErrNoChangelogHeader
	}

	m := changelogHeaderRgx.FindStringSubmatch(scanner.Text())
	if m == nil {
		return ChangelogHeader{}, ErrNoChangelogHeader
	}

	return ChangelogHeader{
		Name:    m[changelogHeaderRgx.SubexpIndex("name")],
		Version: m[changelogHeaderRgx.SubexpIndex("version")],
	}, nil
}
