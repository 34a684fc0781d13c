// Package hashtag finds hashtag tokens in post text.
package hashtag

import "regexp"

// A token is '#' followed by one or more word characters.
var tokenPattern = regexp.MustCompile(`#([A-Za-z0-9_]+)`)

// Extract returns the distinct hashtag names in text, without the leading
// '#', in order of first occurrence. Names are case-sensitive. It returns
// nil when text contains no tokens.
func Extract(text string) []string {
	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
