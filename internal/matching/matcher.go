package matching

import (
	"strings"

	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/negatable"
)

// Score scores actual against the definition want. Returns 0 if there's no
// match, higher scores indicate more specific matches. A nil definition
// matches every request with ScoreAny.
func Score(want, actual *expectation.HTTPRequest) int {
	if actual == nil {
		return 0
	}
	if want == nil {
		return ScoreAny
	}

	score := ScoreAny

	s, ok := matchNegatable(want.Method, actual.MethodValue(), func(p, v string) int {
		if MatchMethod(p, v) {
			return ScoreMethod
		}
		return 0
	})
	if !ok {
		return 0
	}
	score += s

	s, ok = matchNegatable(want.Path, actual.PathValue(), MatchPath)
	if !ok {
		return 0
	}
	score += s

	s, ok = matchKeyValues(want.Headers, actual.Headers, true, ScoreHeader)
	if !ok {
		return 0
	}
	score += s

	s, ok = matchKeyValues(want.QueryStringParameters, actual.QueryStringParameters, false, ScoreQueryParam)
	if !ok {
		return 0
	}
	score += s

	s, ok = MatchBody(want.Body, actual.Body)
	if !ok {
		return 0
	}
	score += s

	if want.Secure != nil && (actual.Secure == nil || *want.Secure != *actual.Secure) {
		return 0
	}

	return score
}

// Matches reports whether actual satisfies want.
func Matches(want, actual *expectation.HTTPRequest) bool {
	return Score(want, actual) > 0
}

// MatchMethod checks if the request method matches, ignoring case.
func MatchMethod(expected, actual string) bool {
	return strings.EqualFold(expected, actual) || MatchValue(strings.ToUpper(expected), strings.ToUpper(actual))
}

// matchNegatable applies match to an optional, possibly negated constraint.
func matchNegatable(want *negatable.String, actual string, match func(pattern, value string) int) (int, bool) {
	if want == nil {
		return 0, true
	}
	s := match(want.Value, actual)
	if want.Not {
		if s > 0 {
			return 0, false
		}
		return ScoreNegated, true
	}
	return s, s > 0
}
