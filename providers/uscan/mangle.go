package uscan

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// mangle is a compiled sed-style substitution 's<d>pattern<d>replacement<d>flags'.
type mangle struct {
	rgx      *regexp.Regexp
	template string
	global   bool
}

// compileMangle compiles rule. A nil mangle without error means the rule is not
// a substitution and leaves values unchanged.
func compileMangle(rule string) (*mangle, error) {
	if !strings.HasPrefix(rule, "s") {
		return nil, nil
	}

	delim, size := utf8.DecodeRuneInString(rule[1:])
	if size == 0 {
		return nil, fmt.Errorf("%w: invalid mangle expression %q", ErrMalformedWatchFile, rule)
	}

	parts := splitUnescaped(rule[1+size:], delim)
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("%w: invalid mangle expression %q", ErrMalformedWatchFile, rule)
	}

	var flags string
	if len(parts) == 3 {
		flags = parts[2]
	}

	pattern := quoteBare(NormalizePattern(parts[0]), delim)
	if strings.ContainsRune(flags, 'i') {
		pattern = "(?i)" + pattern
	}

	rgx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid regex in mangle expression %q: %v", ErrMalformedWatchFile, rule, err)
	}

	return &mangle{
		rgx:      rgx,
		template: NormalizeReplacement(parts[1]),
		global:   strings.ContainsRune(flags, 'g'),
	}, nil
}

func (m *mangle) apply(value string) string {
	if m.global {
		return m.rgx.ReplaceAllString(value, m.template)
	}

	loc := m.rgx.FindStringSubmatchIndex(value)
	if loc == nil {
		return value
	}
	dst := m.rgx.ExpandString(nil, m.template, value, loc)
	return value[:loc[0]] + string(dst) + value[loc[1]:]
}

// ApplyMangle applies a single sed-style substitution rule to value.
//
// The delimiter is the character following the leading 's'. Flag 'i' makes the
// match case-insensitive, flag 'g' replaces every occurrence instead of the first one.
// Rules not starting with 's' return value unchanged.
func ApplyMangle(value, rule string) (string, error) {
	m, err := compileMangle(rule)
	if err != nil {
		return "", err
	}
	if m == nil {
		return value, nil
	}
	return m.apply(value), nil
}

// ApplyMangles applies rules in order, feeding each rule the previous output.
func ApplyMangles(value string, rules []string) (string, error) {
	for _, rule := range rules {
		var err error
		if value, err = ApplyMangle(value, rule); err != nil {
			return "", err
		}
	}
	return value, nil
}

// splitUnescaped splits value on delim. A backslash-escaped delimiter is kept in
// the segment without its backslash; every other escape sequence is kept verbatim.
func splitUnescaped(value string, delim rune) []string {
	var (
		parts   []string
		current strings.Builder
		escaped bool
	)

	for _, r := range value {
		switch {
		case escaped:
			if r != delim {
				current.WriteByte('\\')
			}
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == delim:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if escaped {
		current.WriteByte('\\')
	}

	return append(parts, current.String())
}

// quoteBare escapes bare occurrences of delim in a regex when delim is a regex
// metacharacter. Once split, a bare delimiter can only come from an escaped one.
func quoteBare(pattern string, delim rune) string {
	quoted := regexp.QuoteMeta(string(delim))
	if quoted == string(delim) {
		return pattern
	}

	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == delim:
			b.WriteString(quoted)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizePattern turns Perl '\Q...\E' literal blocks into escaped regex text.
// A block without '\E' runs to the end of the pattern.
func NormalizePattern(pattern string) string {
	if !strings.Contains(pattern, `\Q`) {
		return pattern
	}

	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '\\' || i+1 == len(pattern) {
			b.WriteByte(pattern[i])
			continue
		}
		if pattern[i+1] != 'Q' {
			b.WriteString(pattern[i : i+2])
			i++
			continue
		}

		literal, rest := literalBlock(pattern[i+2:])
		b.WriteString(regexp.QuoteMeta(literal))
		i = len(pattern) - len(rest) - 1
	}
	return b.String()
}

// NormalizeReplacement converts a Perl replacement string into a regexp.Expand template:
// '$1' and '\1' become '${1}', '\Q...\E' and '\x' become literal text, and a '$'
// not introducing a group reference is escaped.
func NormalizeReplacement(replacement string) string {
	var b strings.Builder
	writeLiteral := func(s string) {
		b.WriteString(strings.ReplaceAll(s, "$", "$$"))
	}

	for i := 0; i < len(replacement); i++ {
		c := replacement[i]
		switch {
		case c == '\\' && i+1 < len(replacement):
			next := replacement[i+1]
			switch {
			case next == 'Q':
				literal, rest := literalBlock(replacement[i+2:])
				writeLiteral(literal)
				i = len(replacement) - len(rest) - 1
			case isDigit(next):
				n := digitsPrefix(replacement[i+1:])
				b.WriteString("${" + n + "}")
				i += len(n)
			default:
				writeLiteral(string(next))
				i++
			}
		case c == '$' && i+1 < len(replacement) && isDigit(replacement[i+1]):
			n := digitsPrefix(replacement[i+1:])
			b.WriteString("${" + n + "}")
			i += len(n)
		case c == '$' && strings.HasPrefix(replacement[i:], "${") && strings.Contains(replacement[i:], "}"):
			end := i + strings.IndexByte(replacement[i:], '}')
			b.WriteString(replacement[i : end+1])
			i = end
		case c == '$':
			b.WriteString("$$")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// literalBlock returns the text up to the next '\E' and what follows it.
func literalBlock(s string) (literal, rest string) {
	end := strings.Index(s, `\E`)
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end+2:]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func digitsPrefix(s string) string {
	n := 0
	for n < len(s) && isDigit(s[n]) {
		n++
	}
	return s[:n]
}
