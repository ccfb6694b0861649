package deploy

import "strings"

// ParseEnvText splits KEY=VALUE lines into a map. Blank lines, '#' comment
// lines, and lines without '=' are skipped; the value is everything after
// the first '=', so values may themselves contain '='. Whitespace around
// the key is trimmed, the value is kept as written.
func ParseEnvText(text string) map[string]string {
	vars := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		vars[key] = value
	}
	return vars
}
