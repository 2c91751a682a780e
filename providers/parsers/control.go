package parsers

import (
	"bytes"
	"fmt"
	"strings"

	"pault.ag/go/debian/control"
)

// Control holds the debian/control source stanza fields the importers use.
type Control struct {
	Source   string
	Homepage string
	// Values contains every field of the source stanza.
	Values map[string]string
}

// ParseControl parses the source stanza of a debian/control file.
func ParseControl(content []byte) (*Control, error) {
	var s control.SourceParagraph
	if err := control.Unmarshal(&s, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("%w: unable to parse control file: %v", ErrMalformed, err)
	}

	c := &Control{
		Source:   field(s.Values, "Source"),
		Homepage: field(s.Values, "Homepage"),
		Values:   s.Values,
	}
	if c.Source == "" {
		return nil, fmt.Errorf("%w: Source field not found in control file", ErrMalformed)
	}

	return c, nil
}

// UpstreamProjectName returns the last path segment of the Homepage URL
// (e.g. 'nova' for 'https://opendev.org/openstack/nova'), or an empty string.
func (c *Control) UpstreamProjectName() string {
	homepage := strings.TrimRight(c.Homepage, "/")
	if homepage == "" {
		return ""
	}
	return homepage[strings.LastIndex(homepage, "/")+1:]
}

// field looks a control field up case-insensitively.
func field(values map[string]string, name string) string {
	for key, val := range values {
		if strings.EqualFold(key, name) {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
