// Package matching scores concrete requests against expectation request
// definitions.
//
// Every constraint of a definition must hold for a match; the score then
// grows with how specific the satisfied constraints are, so that among
// expectations of equal priority the most specific one wins. Score
// constants are defined in scores.go.
//
// Constraints are negatable: a negated constraint holds when its positive
// form does not, and contributes ScoreNegated.
package matching
