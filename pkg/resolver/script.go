package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/mockrelay/mockrelay/pkg/mock"
)

// Script executes an endpoint's JavaScript handler. The source is
// compiled once and cached; each request runs in a fresh VM so scripts
// cannot leak state between calls.
//
// The script must define a handle(request) function. The request
// object exposes method, path, params, query, headers and body; the
// returned object may set status, contentType, body and headers.
type Script struct {
	mu       sync.Mutex
	programs map[string]*goja.Program
}

// NewScript returns a Script resolver with an empty program cache.
func NewScript() *Script {
	return &Script{programs: make(map[string]*goja.Program)}
}

// Resolve runs the endpoint's script against the request.
func (s *Script) Resolve(_ context.Context, req *Request, ep *mock.Endpoint) (*mock.Resolved, error) {
	if ep.Script == nil || ep.Script.Source == "" {
		return nil, nil
	}

	prog, err := s.compile(ep.Script.Source)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: compiling script: %w", ep.ID, err)
	}

	vm := goja.New()
	if _, err := vm.RunProgram(prog); err != nil {
		return nil, fmt.Errorf("endpoint %s: loading script: %w", ep.ID, err)
	}

	handle, ok := goja.AssertFunction(vm.Get("handle"))
	if !ok {
		return nil, fmt.Errorf("endpoint %s: script does not define handle(request)", ep.ID)
	}

	out, err := handle(goja.Undefined(), vm.ToValue(scriptRequest(req)))
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: running script: %w", ep.ID, err)
	}

	return scriptResult(out.Export())
}

func (s *Script) compile(src string) (*goja.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.programs[src]; ok {
		return p, nil
	}
	p, err := goja.Compile("handler.js", src, true)
	if err != nil {
		return nil, err
	}
	s.programs[src] = p
	return p, nil
}

func scriptRequest(req *Request) map[string]any {
	query := make(map[string]string, len(req.Query))
	for k, vs := range req.Query {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	headers := make(map[string]string, len(req.Headers))
	for k, vs := range req.Headers {
		if len(vs) > 0 {
			headers[strings.ToLower(k)] = vs[0]
		}
	}
	return map[string]any{
		"method":  req.Method,
		"path":    req.Path,
		"params":  req.Params,
		"query":   query,
		"headers": headers,
		"body":    req.Body,
	}
}

func scriptResult(out any) (*mock.Resolved, error) {
	res := &mock.Resolved{StatusCode: 200, ContentType: "text/plain"}

	fields, ok := out.(map[string]any)
	if !ok {
		return res, nil
	}
	if v, ok := fields["status"]; ok {
		res.StatusCode = toInt(v, res.StatusCode)
	}
	if v, ok := fields["contentType"].(string); ok && v != "" {
		res.ContentType = v
	}
	if v, ok := fields["body"].(string); ok {
		res.Body = v
	}
	if hs, ok := fields["headers"].(map[string]any); ok {
		names := make([]string, 0, len(hs))
		for name := range hs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			res.Headers = append(res.Headers, mock.Header{Name: name, Value: fmt.Sprint(hs[name])})
		}
	}
	return res, nil
}

func toInt(v any, fallback int) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}
