package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/negatable"
)

func actualRequest() *expectation.HTTPRequest {
	return expectation.Request().
		WithMethod(negatable.New("GET")).
		WithPath(negatable.New("/api/users/42")).
		WithHeader(negatable.New("Accept"), negatable.New("application/json")).
		WithHeader(negatable.New("X-Flag"), negatable.Literal("")).
		WithQueryStringParameter(negatable.New("page"), negatable.New("2")).
		WithBody(`{"name":"ada"}`)
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		want    *expectation.HTTPRequest
		matches bool
	}{
		{"nil definition", nil, true},
		{"empty definition", expectation.Request(), true},
		{"method", expectation.Request().WithMethod(negatable.New("get")), true},
		{"method mismatch", expectation.Request().WithMethod(negatable.New("POST")), false},
		{"negated method", expectation.Request().WithMethod(negatable.Not("POST")), true},
		{"negated method mismatch", expectation.Request().WithMethod(negatable.Not("GET")), false},
		{"path named", expectation.Request().WithPath(negatable.New("/api/users/{id}")), true},
		{"path negated", expectation.Request().WithPath(negatable.Not("/api/users/42")), false},
		{"header case-insensitive", expectation.Request().WithHeader(negatable.New("accept"), negatable.New("application/json")), true},
		{"header regex value", expectation.Request().WithHeader(negatable.New("Accept"), negatable.New("application/.*")), true},
		{"header wrong value", expectation.Request().WithHeader(negatable.New("Accept"), negatable.New("text/plain")), false},
		{"header presence", expectation.Request().WithHeader(negatable.New("Accept")), true},
		{"header absent required", expectation.Request().WithHeader(negatable.New("X-Missing")), false},
		{"negated header name", expectation.Request().WithHeader(negatable.Not("X-Missing")), true},
		{"negated header value", expectation.Request().WithHeader(negatable.New("Accept"), negatable.Not("text/plain")), true},
		{"empty header present", expectation.Request().WithHeader(negatable.New("X-Flag")), true},
		{"empty header value", expectation.Request().WithHeader(negatable.New("x-flag"), negatable.Literal("")), true},
		{"empty header wrong value", expectation.Request().WithHeader(negatable.New("X-Flag"), negatable.New("on")), false},
		{"negated empty header name", expectation.Request().WithHeader(negatable.Not("X-Flag")), false},
		{"query", expectation.Request().WithQueryStringParameter(negatable.New("page"), negatable.New("2")), true},
		{"query case-sensitive", expectation.Request().WithQueryStringParameter(negatable.New("Page"), negatable.New("2")), false},
		{"body contains", expectation.Request().WithBody(`"ada"`), true},
		{"body mismatch", expectation.Request().WithBody("grace"), false},
	}
	actual := actualRequest()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, Matches(tt.want, actual))
		})
	}
}

func TestScore_SpecificityOrdering(t *testing.T) {
	actual := actualRequest()
	loose := Score(expectation.Request().WithPath(negatable.New("/api/users/*")), actual)
	named := Score(expectation.Request().WithPath(negatable.New("/api/users/{id}")), actual)
	exact := Score(expectation.Request().WithPath(negatable.New("/api/users/42")), actual)
	exactWithMethod := Score(expectation.Request().
		WithMethod(negatable.New("GET")).
		WithPath(negatable.New("/api/users/42")), actual)

	assert.Less(t, loose, named)
	assert.Less(t, named, exact)
	assert.Less(t, exact, exactWithMethod)
}

func TestScore_Secure(t *testing.T) {
	yes, no := true, false
	actual := actualRequest()
	actual.Secure = &no

	want := expectation.Request()
	want.Secure = &yes
	assert.False(t, Matches(want, actual))

	want.Secure = &no
	assert.True(t, Matches(want, actual))
}

func TestScore_NilActual(t *testing.T) {
	assert.Equal(t, 0, Score(expectation.Request(), nil))
}
