package matching

// Match score constants for path matching.
const (
	// ScorePathExact is the score for an exact path match.
	ScorePathExact = 15

	// ScorePathPattern is the score for a path regex match.
	ScorePathPattern = 14

	// ScorePathNamedParams is the score for a path with named parameters match.
	ScorePathNamedParams = 12

	// ScorePathWildcard is the score for a wildcard path match.
	ScorePathWildcard = 10
)

// Match score constants for method, header, query and body matching.
const (
	ScoreMethod     = 10
	ScoreHeader     = 10
	ScoreQueryParam = 5

	ScoreBodyEquals   = 25
	ScoreBodyContains = 20
)

// ScoreNegated is the score of any satisfied negated constraint.
const ScoreNegated = 1

// ScoreAny is the score of a definition without constraints.
const ScoreAny = 1
