package template

import (
	"encoding/json"

	"github.com/getmockd/mockserver-go/pkg/expectation"
)

// Context is the data a template is evaluated against.
type Context struct {
	Method  string
	Path    string
	RawBody string
	// Body is the decoded JSON body, or nil when the body is not JSON.
	Body    any
	Headers expectation.KeyMultiValues
	Query   expectation.KeyMultiValues
}

// NewContext captures req for template evaluation.
func NewContext(req *expectation.HTTPRequest) *Context {
	if req == nil {
		return &Context{}
	}
	c := &Context{
		Method:  req.MethodValue(),
		Path:    req.PathValue(),
		RawBody: req.Body,
		Headers: req.Headers,
		Query:   req.QueryStringParameters,
	}
	if req.Body != "" {
		var body any
		if json.Unmarshal([]byte(req.Body), &body) == nil {
			c.Body = body
		}
	}
	return c
}
