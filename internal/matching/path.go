package matching

import (
	"regexp"
	"strings"
	"sync"
)

// MatchPath checks if the request path matches the pattern.
// Returns a score > 0 if matched, 0 if not matched.
// Exact matches score higher than pattern matches.
// Supports:
//   - Exact match: "/api/users" matches "/api/users"
//   - Named params: "/api/users/{id}" matches "/api/users/123"
//   - Wildcard: "/api/users/*" matches "/api/users/123"
//   - Regex: "/api/users/[0-9]+" matches "/api/users/123" (whole path)
func MatchPath(pattern, path string) int {
	if pattern == path {
		return ScorePathExact
	}

	if strings.Contains(pattern, "{") && strings.Contains(pattern, "}") {
		if matchNamedParams(pattern, path) {
			return ScorePathNamedParams
		}
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return ScorePathWildcard
		}
	}

	if re := compile(pattern); re != nil && re.MatchString(path) {
		return ScorePathPattern
	}

	if strings.Contains(pattern, "*") && matchWildcard(pattern, path) {
		return ScorePathWildcard
	}

	return 0
}

// MatchValue checks a header, query parameter or method value: exact,
// then whole-value regex.
func MatchValue(pattern, value string) bool {
	if pattern == value {
		return true
	}
	re := compile(pattern)
	return re != nil && re.MatchString(value)
}

// matchNamedParams checks if path matches a pattern with named parameters.
// Example: "/users/{id}" matches "/users/123"
func matchNamedParams(pattern, path string) bool {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i, patternPart := range patternParts {
		if strings.HasPrefix(patternPart, "{") && strings.HasSuffix(patternPart, "}") {
			continue
		}
		if patternPart != pathParts[i] {
			return false
		}
	}

	return true
}

// matchWildcard performs simple wildcard pattern matching.
// * matches any sequence of characters.
func matchWildcard(pattern, path string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == path
	}

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			if !strings.HasPrefix(path, part) {
				return false
			}
			pos = len(part)
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx == -1 {
			return false
		}
		pos += idx + len(part)
	}

	// A pattern not ending in * must consume the whole path.
	return strings.HasSuffix(pattern, "*") || strings.HasSuffix(path, parts[len(parts)-1])
}

var (
	regexMu    sync.RWMutex
	regexCache = make(map[string]*regexp.Regexp)
)

// compile returns the anchored regex for pattern, or nil when pattern has
// no regex metacharacters or does not compile.
func compile(pattern string) *regexp.Regexp {
	if !strings.ContainsAny(pattern, `.+?()[]{}|^$\`) && !strings.Contains(pattern, "*") {
		return nil
	}

	regexMu.RLock()
	re, ok := regexCache[pattern]
	regexMu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		re = nil
	}
	regexMu.Lock()
	regexCache[pattern] = re
	regexMu.Unlock()
	return re
}
