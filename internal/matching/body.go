package matching

import "strings"

// MatchBody checks the body constraint. An exact match scores higher than a
// substring match; an empty constraint matches any body with score 0.
func MatchBody(want, body string) (int, bool) {
	switch {
	case want == "":
		return 0, true
	case want == body:
		return ScoreBodyEquals, true
	case strings.Contains(body, want):
		return ScoreBodyContains, true
	default:
		return 0, false
	}
}
