package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/negatable"
)

// hopHeaders are not copied between inbound and outbound messages.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Proxy-Connection":  true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
}

// fromHTTPRequest captures r as the concrete request handed to matching
// and callbacks. path is r's path with the context path removed.
func fromHTTPRequest(r *http.Request, path string, body []byte) *expectation.HTTPRequest {
	secure := r.TLS != nil
	req := expectation.Request().
		WithMethod(negatable.New(r.Method)).
		WithPath(negatable.New(path)).
		WithBody(string(body))
	req.Secure = &secure

	if r.Host != "" && r.Header.Get("Host") == "" {
		req.WithHeader(negatable.New("Host"), negatable.New(r.Host))
	}
	for _, name := range sortedKeys(r.Header) {
		req.WithHeader(negatable.New(name), toNegatables(r.Header[name])...)
	}
	query := r.URL.Query()
	for _, name := range sortedKeys(query) {
		req.WithQueryStringParameter(negatable.New(name), toNegatables(query[name])...)
	}
	return req
}

// toOutbound builds the request sent upstream for a forward. The target is
// taken from the Host header; Secure selects https.
func toOutbound(ctx context.Context, req *expectation.HTTPRequest) (*http.Request, error) {
	host := req.Headers.First("Host")
	if host == "" {
		return nil, fmt.Errorf("forwarded request has no Host header")
	}
	scheme := "http"
	if req.Secure != nil && *req.Secure {
		scheme = "https"
	}
	method := req.MethodValue()
	if method == "" {
		method = http.MethodGet
	}

	u := url.URL{Scheme: scheme, Host: host, Path: req.PathValue()}
	query := url.Values{}
	for _, kv := range req.QueryStringParameters {
		for _, v := range kv.Values {
			query.Add(kv.Name.Value, v.Value)
		}
	}
	u.RawQuery = query.Encode()

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	out, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for _, kv := range req.Headers {
		name := http.CanonicalHeaderKey(kv.Name.Value)
		if name == "Host" || hopHeaders[name] {
			continue
		}
		for _, v := range kv.Values {
			out.Header.Add(name, v.Value)
		}
	}
	return out, nil
}

// fromHTTPResponse captures an upstream response.
func fromHTTPResponse(resp *http.Response) (*expectation.HTTPResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	out := expectation.Response(resp.StatusCode).WithBody(string(body))
	for _, name := range sortedKeys(resp.Header) {
		if hopHeaders[name] {
			continue
		}
		out.WithHeader(name, resp.Header[name]...)
	}
	return out, nil
}

// writeResponse writes resp to w. A zero status code is written as 200.
func writeResponse(w http.ResponseWriter, resp *expectation.HTTPResponse) {
	if resp == nil {
		resp = expectation.Response(http.StatusOK)
	}
	for _, kv := range resp.Headers {
		name := http.CanonicalHeaderKey(kv.Name.Value)
		if hopHeaders[name] {
			continue
		}
		for _, v := range kv.Values {
			w.Header().Add(name, v.Value)
		}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		_, _ = io.Copy(w, bytes.NewBufferString(resp.Body))
	}
}

// overrideRequest applies the non-empty parts of override to a copy of req.
func overrideRequest(req, override *expectation.HTTPRequest) *expectation.HTTPRequest {
	out := *req
	if override == nil {
		return &out
	}
	if override.Method != nil {
		out.Method = override.Method
	}
	if override.Path != nil {
		out.Path = override.Path
	}
	if override.Body != "" {
		out.Body = override.Body
	}
	if override.Secure != nil {
		out.Secure = override.Secure
	}
	out.Headers = replaceKeys(req.Headers, override.Headers)
	out.QueryStringParameters = replaceKeys(req.QueryStringParameters, override.QueryStringParameters)
	return &out
}

// overrideResponse applies the non-empty parts of override to a copy of resp.
func overrideResponse(resp, override *expectation.HTTPResponse) *expectation.HTTPResponse {
	out := *resp
	if override == nil {
		return &out
	}
	if override.StatusCode != 0 {
		out.StatusCode = override.StatusCode
	}
	if override.ReasonPhrase != "" {
		out.ReasonPhrase = override.ReasonPhrase
	}
	if override.Body != "" {
		out.Body = override.Body
	}
	out.Headers = replaceKeys(resp.Headers, override.Headers)
	return &out
}

// replaceKeys returns base with every entry named in override replaced.
func replaceKeys(base, override expectation.KeyMultiValues) expectation.KeyMultiValues {
	if len(override) == 0 {
		return base
	}
	out := make(expectation.KeyMultiValues, 0, len(base)+len(override))
	for _, kv := range base {
		if _, replaced := override.Get(kv.Name.Value); !replaced {
			out = append(out, kv)
		}
	}
	return append(out, override...)
}

func toNegatables(values []string) []*negatable.String {
	out := make([]*negatable.String, 0, len(values))
	for _, v := range values {
		out = append(out, negatable.Literal(v))
	}
	return out
}

func sortedKeys[M ~map[string][]string](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
