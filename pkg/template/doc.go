// Package template renders MUSTACHE-style template actions. A template is
// evaluated against the matched request and must produce the JSON form of
// an HTTPResponse (response templates) or an HTTPRequest (forward
// templates).
//
// # Expressions
//
//   - {{request.method}}, {{request.path}}, {{request.body}}
//   - {{request.body.field}} - field of a JSON body, dot separated
//   - {{request.headers.name}} - first value of a header
//   - {{request.query.name}} - first value of a query parameter
//   - {{jsonPath("$.items[0].sku")}} - first JSONPath match in a JSON body
//   - {{uuid}}, {{now}}, {{timestamp}}
//   - {{random.int(min, max)}}, {{random.string(n)}}
//   - {{sequence("name")}} - per-engine counter starting at 1
//   - {{upper(x)}}, {{lower(x)}}, {{default(x, "fallback")}}
//
// Unknown expressions render as the empty string.
package template
