/*
Package parsers provides parsers for Debian packaging metadata (debian/changelog,
debian/control) and for the OpenStack releases repository (series status,
deliverables, signing keys).

Goals:
  - Parsing packaging files into readable structs
  - Reading only what the importers need, tolerating everything else
*/
package parsers

import (
	"errors"
)

var (
	ErrFileNotFound = errors.New("file not found")
	// ErrMalformed is returned for packaging or releases metadata that cannot be parsed.
	ErrMalformed = errors.New("malformed metadata")
)
