package directory

import (
	"regexp"
	"strings"
)

// MatchPattern reports whether a group name matches a wildcard pattern.
// `*` is the only wildcard; matching is case-insensitive and anchored.
// An empty pattern matches everything.
func MatchPattern(pattern, name string) bool {
	if pattern == "" {
		return true
	}

	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}

	re, err := regexp.Compile(`(?i)^` + strings.Join(parts, ".*") + `$`)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// ExtractRoleSlug derives the role slug a matched group name implies.
//
// Without a wildcard the pattern must equal the name (case-insensitive)
// and the whole lower-cased name is the slug. With exactly one wildcard
// the literal prefix and suffix are stripped from the name and the
// lower-cased remainder is the slug. Returns "" when nothing remains or
// the name does not fit the pattern.
func ExtractRoleSlug(name, pattern string) string {
	if pattern == "" {
		return ""
	}

	if !strings.Contains(pattern, "*") {
		if strings.EqualFold(name, pattern) {
			return strings.ToLower(name)
		}
		return ""
	}

	if strings.Count(pattern, "*") != 1 {
		// Multi-wildcard patterns still filter groups but give no
		// unambiguous slug to extract.
		return ""
	}

	idx := strings.Index(pattern, "*")
	prefix := strings.ToLower(pattern[:idx])
	suffix := strings.ToLower(pattern[idx+1:])

	slug := strings.ToLower(name)
	if prefix != "" && strings.HasPrefix(slug, prefix) {
		slug = slug[len(prefix):]
	}
	if suffix != "" && strings.HasSuffix(slug, suffix) {
		slug = slug[:len(slug)-len(suffix)]
	}

	return slug
}

// literalPrefix returns the literal part of a pattern before its first
// wildcard, used for server-side startswith filtering.
func literalPrefix(pattern string) string {
	idx := strings.Index(pattern, "*")
	if idx < 0 {
		return pattern
	}
	return pattern[:idx]
}
