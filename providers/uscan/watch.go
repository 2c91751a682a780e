package uscan

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// MinWatchVersion is the oldest supported watch file format.
const MinWatchVersion = 3

// PackageToken is replaced with the source package name in every entry.
const PackageToken = "@PACKAGE@"

// Option names recognized in opts= blocks.
const (
	optUVersionMangle    = "uversionmangle"
	optDownloadURLMangle = "downloadurlmangle"
	optFilenameMangle    = "filenamemangle"
	optDVersionMangle    = "dversionmangle"
	optPGPSigURLMangle   = "pgpsigurlmangle"
)

var watchVersionRgx = regexp.MustCompile(`(?i)^version\s*=\s*(\S*)$`)

// ParseWatch parses a watch file. Every occurrence of @PACKAGE@ is replaced with packageName.
//
// The file is rejected as a whole on the first problem, all errors wrap ErrMalformedWatchFile.
func ParseWatch(content []byte, packageName string) ([]WatchEntry, error) {
	lines := watchLines(string(content))

	if err := checkWatchVersion(lines); err != nil {
		return nil, err
	}

	var entries []WatchEntry
	for _, logical := range logicalLines(lines) {
		entry, err := parseWatchEntry(strings.ReplaceAll(logical, PackageToken, packageName))
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no usable entries found in watch file", ErrMalformedWatchFile)
	}
	return entries, nil
}

// watchLines returns the trimmed non-blank lines.
func watchLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "#")
}

// checkWatchVersion requires the first non-comment line to be 'version=N' with N >= MinWatchVersion.
func checkWatchVersion(lines []string) error {
	for _, line := range lines {
		if isComment(line) {
			continue
		}

		m := watchVersionRgx.FindStringSubmatch(line)
		if m == nil {
			return fmt.Errorf("%w: watch file missing version declaration (e.g. version=4)", ErrMalformedWatchFile)
		}
		v, err := strconv.Atoi(m[1])
		if err != nil || v < MinWatchVersion {
			return fmt.Errorf("%w: unsupported watch file version: %q", ErrMalformedWatchFile, m[1])
		}
		return nil
	}
	return fmt.Errorf("%w: watch file missing version declaration (e.g. version=4)", ErrMalformedWatchFile)
}

// logicalLines joins '\' continuations and drops comments and version declarations.
// A continuation left open at the end of the file still yields its entry.
func logicalLines(lines []string) []string {
	var (
		result []string
		buffer strings.Builder
	)

	for _, line := range lines {
		if isComment(line) || watchVersionRgx.MatchString(line) {
			continue
		}
		if strings.HasSuffix(line, `\`) {
			buffer.WriteString(strings.TrimRightFunc(strings.TrimSuffix(line, `\`), unicode.IsSpace))
			buffer.WriteByte(' ')
			continue
		}

		buffer.WriteString(line)
		result = append(result, strings.TrimSpace(buffer.String()))
		buffer.Reset()
	}

	if rest := strings.TrimSpace(buffer.String()); rest != "" {
		result = append(result, rest)
	}
	return result
}

// parseWatchEntry parses '[opts=...] <url> <regex>' or '[opts=...] <url>/<regex>'.
func parseWatchEntry(entry string) (*WatchEntry, error) {
	tokens, err := tokenize(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid watch entry %q: %v", ErrMalformedWatchFile, entry, err)
	}

	var (
		opts   map[string]string
		fields []string
	)
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "opts=") {
			opts = parseOpts(tok)
			continue
		}
		fields = append(fields, tok)
	}

	var url, pattern string
	switch {
	case len(fields) == 1:
		idx := strings.LastIndex(fields[0], "/")
		if idx < 0 || idx == len(fields[0])-1 {
			return nil, fmt.Errorf("%w: invalid watch entry %q", ErrMalformedWatchFile, entry)
		}
		url, pattern = fields[0][:idx+1], fields[0][idx+1:]
	case len(fields) >= 2:
		// Trailing version/script fields of the full uscan grammar are ignored.
		url, pattern = fields[0], fields[1]
	default:
		return nil, fmt.Errorf("%w: invalid watch entry %q", ErrMalformedWatchFile, entry)
	}

	rgx, err := regexp.Compile(NormalizePattern(pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid regex in watch entry %q: %v", ErrMalformedWatchFile, entry, err)
	}

	filenameMangle := opts[optFilenameMangle]
	if filenameMangle == "" {
		filenameMangle = opts[optDVersionMangle]
	}

	we := &WatchEntry{
		URL:               url,
		Pattern:           rgx,
		UVersionMangle:    mangleList(opts[optUVersionMangle]),
		DownloadURLMangle: mangleList(opts[optDownloadURLMangle]),
		FilenameMangle:    mangleList(filenameMangle),
		PGPSigURLMangle:   mangleList(opts[optPGPSigURLMangle]),
	}

	for _, rules := range [][]string{we.UVersionMangle, we.DownloadURLMangle, we.FilenameMangle, we.PGPSigURLMangle} {
		for _, rule := range rules {
			if _, err := compileMangle(rule); err != nil {
				return nil, err
			}
		}
	}

	return we, nil
}

// tokenize splits an entry on whitespace outside double quotes.
func tokenize(entry string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range entry {
		switch {
		case r == '"':
			quoted = !quoted
			current.WriteRune(r)
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	flush()

	return tokens, nil
}

// parseOpts parses an 'opts=' token into option values. Bare flags map to an empty string.
func parseOpts(token string) map[string]string {
	block := strings.TrimSpace(strings.TrimPrefix(token, "opts="))
	if len(block) >= 2 && strings.HasPrefix(block, `"`) && strings.HasSuffix(block, `"`) {
		block = block[1 : len(block)-1]
	}

	opts := map[string]string{}
	for _, raw := range strings.Split(block, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		key, value, _ := strings.Cut(raw, "=")
		opts[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return opts
}

// mangleList splits ';'-chained mangle rules.
func mangleList(value string) []string {
	var rules []string
	for _, rule := range strings.Split(value, ";") {
		if rule != "" {
			rules = append(rules, rule)
		}
	}
	return rules
}
