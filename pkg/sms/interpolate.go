package sms

import (
	"regexp"
	"sort"
)

var placeholder = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Interpolate replaces every {{name}} in body with variables[name]. Names without a
// value are returned, sorted and de-duplicated, and their placeholders are left as-is.
func Interpolate(body string, variables map[string]string) (string, []string) {
	missing := map[string]struct{}{}
	result := placeholder.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		value, ok := variables[name]
		if !ok {
			missing[name] = struct{}{}
			return match
		}
		return value
	})

	var unresolved []string
	for name := range missing {
		unresolved = append(unresolved, name)
	}
	sort.Strings(unresolved)
	return result, unresolved
}

// Placeholders returns the distinct placeholder names used in body, in order of appearance.
func Placeholders(body string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
