package blueprint

import (
	"regexp"
	"strings"
)

var schemePattern = regexp.MustCompile(`https*://`)

// Tags derives the full ordered tag list of one check.
// Params: run identifier, check name, base URL, priority, and slash-joined path.
// Returns: run/check/host/priority tags followed by one tag per non-empty path segment.
func Tags(runID, checkName, baseURL, priority, path string) []string {
	segments := strings.Split(path, "/")
	tags := make([]string, 0, 4+len(segments))
	tags = append(tags, runID, checkName, SanitizedHost(baseURL), "priority-"+priority)
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		tags = append(tags, SanitizeSegment(segment))
	}
	return tags
}

// SanitizedHost strips scheme prefixes and replaces dots and slashes with underscores.
func SanitizedHost(baseURL string) string {
	host := strings.ReplaceAll(baseURL, ".", "_")
	host = schemePattern.ReplaceAllString(host, "")
	return strings.ReplaceAll(host, "/", "_")
}

// SanitizeSegment makes one path segment tag-safe.
func SanitizeSegment(segment string) string {
	return strings.ReplaceAll(segment, ".", "_")
}

// StripScheme removes every http(s):// prefix from a base URL.
func StripScheme(baseURL string) string {
	return schemePattern.ReplaceAllString(baseURL, "")
}

// isEncrypted reports whether base URL uses the https scheme.
func isEncrypted(baseURL string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(baseURL)), "https://")
}
