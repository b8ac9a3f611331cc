package templates

import (
	"regexp"
	"sort"
	"strings"
)

// Interpolate replaces every {{ name }} token in content with the mapped
// value. Token matching is case-insensitive and tolerant of whitespace
// inside the delimiters, so "{{ Student_Name }}" resolves from the
// "student_name" key. Tokens naming variables absent from values are left
// verbatim; coverage checking is a separate concern. The result depends
// only on content and values, never on map iteration order.
func Interpolate(content string, values map[string]string) string {
	if len(values) == 0 {
		return content
	}

	// Normalize to lowercase keys in sorted order of the original keys, so
	// keys differing only by case collapse to the same winner every call:
	// the lexicographically first original key.
	originals := make([]string, 0, len(values))
	for name := range values {
		originals = append(originals, name)
	}
	sort.Strings(originals)

	normalized := make(map[string]string, len(values))
	names := make([]string, 0, len(values))
	for _, name := range originals {
		lowered := strings.ToLower(name)
		if _, taken := normalized[lowered]; taken {
			continue
		}
		normalized[lowered] = values[name]
		names = append(names, lowered)
	}
	sort.Strings(names)

	for _, name := range names {
		re := regexp.MustCompile(`(?i)\{\{\s*` + regexp.QuoteMeta(name) + `\s*\}\}`)
		content = re.ReplaceAllLiteralString(content, normalized[name])
	}

	return content
}

// tokenPattern matches any placeholder token and captures its name.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// TokenNames returns the lowercased names of every placeholder token in
// content, in first-appearance order without duplicates. Used to confirm a
// supplied variable set covers a template.
func TokenNames(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range tokenPattern.FindAllStringSubmatch(content, -1) {
		name := strings.ToLower(m[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// MissingVariables returns the template token names that values does not
// cover, in template order.
func MissingVariables(content string, values map[string]string) []string {
	normalized := make(map[string]bool, len(values))
	for name := range values {
		normalized[strings.ToLower(name)] = true
	}

	var missing []string
	for _, name := range TokenNames(content) {
		if !normalized[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
