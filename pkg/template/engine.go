package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/mockserver-go/pkg/expectation"
)

// ErrUnsupportedType is returned for template languages other than
// MUSTACHE.
var ErrUnsupportedType = errors.New("unsupported template type")

// Engine evaluates templates. It is safe for concurrent use.
type Engine struct {
	sequences *SequenceStore
}

// New creates an engine with its own sequence counters.
func New() *Engine {
	return &Engine{sequences: NewSequenceStore()}
}

// Reset restarts every sequence.
func (e *Engine) Reset() {
	e.sequences.Reset()
}

var (
	templateRegex    = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)
	randomIntPattern = regexp.MustCompile(`^random\.int\((-?\d+),\s*(-?\d+)\)$`)
	randomStrPattern = regexp.MustCompile(`^random\.string\((\d+)\)$`)
	sequencePattern  = regexp.MustCompile(`^sequence\("([^"]+)"\)$`)
	funcCallPattern  = regexp.MustCompile(`^(\w+)\((.+)\)$`)
)

// Process replaces every {{expression}} in tmpl. Values are escaped for use
// inside a JSON string.
func (e *Engine) Process(tmpl string, ctx *Context) string {
	return templateRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		inner := templateRegex.FindStringSubmatch(match)
		return jsonEscape(e.evaluate(inner[1], ctx))
	})
}

// RenderResponse evaluates tmpl against req and decodes the result as a
// response.
func (e *Engine) RenderResponse(_ context.Context, tmpl *expectation.HTTPTemplate, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error) {
	out, err := e.render(tmpl, req)
	if err != nil {
		return nil, err
	}
	var resp expectation.HTTPResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("template did not produce a response: %w", err)
	}
	return &resp, nil
}

// RenderForward evaluates tmpl against req and decodes the result as the
// request to forward.
func (e *Engine) RenderForward(_ context.Context, tmpl *expectation.HTTPTemplate, req *expectation.HTTPRequest) (*expectation.HTTPRequest, error) {
	out, err := e.render(tmpl, req)
	if err != nil {
		return nil, err
	}
	var fwd expectation.HTTPRequest
	if err := json.Unmarshal(out, &fwd); err != nil {
		return nil, fmt.Errorf("template did not produce a request: %w", err)
	}
	return &fwd, nil
}

func (e *Engine) render(tmpl *expectation.HTTPTemplate, req *expectation.HTTPRequest) ([]byte, error) {
	if tmpl == nil {
		return nil, errors.New("nil template")
	}
	if tmpl.TemplateType != "" && tmpl.TemplateType != expectation.TemplateMustache {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, tmpl.TemplateType)
	}
	return []byte(e.Process(tmpl.Template, NewContext(req))), nil
}

func (e *Engine) evaluate(expr string, ctx *Context) string {
	expr = strings.TrimSpace(expr)

	switch expr {
	case "uuid":
		return uuid.NewString()
	case "now":
		return time.Now().UTC().Format(time.RFC3339)
	case "timestamp":
		return strconv.FormatInt(time.Now().Unix(), 10)
	}

	if m := randomIntPattern.FindStringSubmatch(expr); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return funcRandomInt(lo, hi)
	}
	if m := randomStrPattern.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		return funcRandomString(n)
	}
	if m := sequencePattern.FindStringSubmatch(expr); m != nil {
		return strconv.FormatInt(e.sequences.Next(m[1]), 10)
	}
	if m := funcCallPattern.FindStringSubmatch(expr); m != nil {
		args := splitArgs(m[2])
		switch m[1] {
		case "upper":
			return strings.ToUpper(e.resolve(args[0], ctx))
		case "lower":
			return strings.ToLower(e.resolve(args[0], ctx))
		case "jsonPath":
			if ctx == nil {
				return ""
			}
			return funcJSONPath(ctx.Body, e.resolve(args[0], nil))
		case "default":
			if len(args) < 2 {
				return e.resolve(args[0], ctx)
			}
			return funcDefault(e.resolve(args[0], ctx), e.resolve(args[1], ctx))
		}
		return ""
	}
	if rest, ok := strings.CutPrefix(expr, "request."); ok {
		return evaluateRequest(rest, ctx)
	}
	return ""
}

// resolve returns quoted arguments as literals and evaluates the rest.
func (e *Engine) resolve(arg string, ctx *Context) string {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 2 && (arg[0] == '"' || arg[0] == '\'') && arg[len(arg)-1] == arg[0] {
		return arg[1 : len(arg)-1]
	}
	return e.evaluate(arg, ctx)
}

func evaluateRequest(expr string, ctx *Context) string {
	if ctx == nil {
		return ""
	}
	field, rest, _ := strings.Cut(expr, ".")
	switch field {
	case "method":
		return ctx.Method
	case "path":
		return ctx.Path
	case "body":
		if rest == "" {
			return ctx.RawBody
		}
		return bodyField(ctx.Body, rest)
	case "headers":
		return ctx.Headers.First(rest)
	case "query":
		return ctx.Query.First(rest)
	}
	return ""
}

// bodyField walks a dot separated path through decoded JSON. Array
// elements are addressed by index.
func bodyField(body any, path string) string {
	current := body
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return ""
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(v) {
				return ""
			}
			current = v[i]
		default:
			return ""
		}
	}
	return stringify(current)
}

// splitArgs splits a comma separated argument list, ignoring commas inside
// quotes.
func splitArgs(s string) []string {
	var (
		args  []string
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ',':
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}
