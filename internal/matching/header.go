package matching

import (
	"strings"

	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/negatable"
)

// matchKeyValues checks every constraint in want against actual and returns
// the summed score, or 0 with false on a mismatch. foldCase selects
// case-insensitive names, as for headers.
func matchKeyValues(want, actual expectation.KeyMultiValues, foldCase bool, per int) (int, bool) {
	score := 0
	for _, kv := range want {
		values := lookup(actual, kv.Name.Value, foldCase)
		if kv.Name.Not {
			if len(values) > 0 {
				return 0, false
			}
			score += ScoreNegated
			continue
		}
		if !valuesMatch(kv.Constraints(), values) {
			return 0, false
		}
		score += per
	}
	return score, true
}

// valuesMatch reports whether every value constraint is satisfied by at
// least one actual value. No constraints only requires presence.
func valuesMatch(want []*negatable.String, actual []string) bool {
	if len(want) == 0 {
		return len(actual) > 0
	}
	for _, w := range want {
		found := false
		for _, v := range actual {
			if MatchValue(w.Value, v) != w.Not {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func lookup(kvs expectation.KeyMultiValues, name string, foldCase bool) []string {
	var out []string
	for _, kv := range kvs {
		if kv.Name == nil {
			continue
		}
		if kv.Name.Value == name || (foldCase && strings.EqualFold(kv.Name.Value, name)) {
			for _, v := range kv.Values {
				if v != nil {
					out = append(out, v.Value)
				}
			}
		}
	}
	return out
}
