package app

import (
	"net/url"
	"strings"
)

func dbNameFromURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(trimmed, "file:"); ok {
		return sqliteName(rest)
	}

	parsed, err := url.Parse(trimmed)
	if err == nil && parsed != nil && parsed.Scheme != "" {
		name := strings.TrimSpace(strings.TrimPrefix(parsed.Path, "/"))
		if name != "" {
			return name
		}
	}

	for _, token := range strings.Fields(trimmed) {
		if !strings.HasPrefix(token, "dbname=") {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(token, "dbname="))
		name = strings.Trim(name, `"'`)
		if name != "" {
			return name
		}
	}

	if !strings.Contains(trimmed, "=") {
		return sqliteName(trimmed)
	}
	return ""
}

// sqliteName reduces a sqlite path such as "data/scrim.db?_pragma=..." to "scrim".
func sqliteName(path string) string {
	path, _, _ = strings.Cut(path, "?")
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" {
		return path
	}
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		path = path[idx+1:]
	}
	if idx := strings.LastIndex(path, "."); idx > 0 {
		path = path[:idx]
	}
	return path
}
