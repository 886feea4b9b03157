package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/mockrelay/mockrelay/pkg/mock"
)

// Rule evaluates an endpoint's rule list against the inbound request
// and returns the first match. Match expressions are compiled once and
// cached by source text.
type Rule struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
}

// NewRule returns a Rule resolver with an empty expression cache.
func NewRule() *Rule {
	return &Rule{programs: make(map[string]*vm.Program)}
}

// Resolve walks the rules in order and returns the first one whose
// conditions all hold. Rules already marked for suspension are skipped.
// No match yields (nil, nil).
func (rr *Rule) Resolve(_ context.Context, req *Request, ep *mock.Endpoint) (*mock.Resolved, error) {
	if ep.Rule == nil {
		return nil, nil
	}

	env := ruleEnv(req)
	for _, rule := range ep.Rule.Rules {
		if rule.Suspend {
			continue
		}
		ok, err := rr.matches(rule, req, env)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", ep.ID, err)
		}
		if !ok {
			continue
		}
		return &mock.Resolved{
			StatusCode:  rule.StatusCode,
			ContentType: rule.ContentType,
			Body:        rule.Body,
			Headers:     rule.Headers,
		}, nil
	}
	return nil, nil
}

func (rr *Rule) matches(rule *mock.RuleVariant, req *Request, env map[string]any) (bool, error) {
	if rule.Match != "" {
		prog, err := rr.compile(rule.Match)
		if err != nil {
			return false, fmt.Errorf("compiling rule expression %q: %w", rule.Match, err)
		}
		out, err := expr.Run(prog, env)
		if err != nil {
			return false, fmt.Errorf("evaluating rule expression %q: %w", rule.Match, err)
		}
		truthy, ok := out.(bool)
		if !ok || !truthy {
			return false, nil
		}
	}

	for path, expected := range rule.BodyJSONPath {
		ok, err := bodyPathMatches(req.Body, path, expected)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (rr *Rule) compile(src string) (*vm.Program, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if p, ok := rr.programs[src]; ok {
		return p, nil
	}
	p, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	rr.programs[src] = p
	return p, nil
}

// ruleEnv flattens the request into the variables exposed to match
// expressions: method, path, params, query (first values), headers
// (lowercased names), body, and json (the parsed JSON body, or nil).
func ruleEnv(req *Request) map[string]any {
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

	var parsed any
	if req.Body != "" {
		if doc, err := oj.ParseString(req.Body); err == nil {
			parsed = doc
		}
	}

	return map[string]any{
		"method":  req.Method,
		"path":    req.Path,
		"params":  req.Params,
		"query":   query,
		"headers": headers,
		"body":    req.Body,
		"json":    parsed,
	}
}

func bodyPathMatches(body, path string, expected any) (bool, error) {
	if body == "" {
		return false, nil
	}
	doc, err := oj.ParseString(body)
	if err != nil {
		return false, nil
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return false, fmt.Errorf("parsing json path %q: %w", path, err)
	}
	results := x.Get(doc)
	if len(results) == 0 {
		return false, nil
	}
	return fmt.Sprint(results[0]) == fmt.Sprint(expected), nil
}
