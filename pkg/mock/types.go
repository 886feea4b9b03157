// Package mock defines the mock endpoint model shared by the definition
// store, the registry builder, and the response resolvers.
//
// An Endpoint is a tagged union: the Type field selects which spec pointer
// is populated, and each spec carries exactly the data its resolver needs.
package mock

import (
	"fmt"
	"strings"
)

// Type identifies the response-resolution strategy of an endpoint.
type Type string

// Supported mock types.
const (
	TypeSequence  Type = "sequence"
	TypeRule      Type = "rule"
	TypeProxyHTTP Type = "proxy-http"
	TypeProxySSE  Type = "proxy-sse"
	TypeScript    Type = "script"
	TypeStateful  Type = "stateful"
)

// ParseType converts a string to a Type, rejecting unknown values.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeSequence, TypeRule, TypeProxyHTTP, TypeProxySSE, TypeScript, TypeStateful:
		return t, nil
	default:
		return "", fmt.Errorf("unknown mock type %q", s)
	}
}

// Role is the role of an endpoint's owner.
type Role string

// Owner roles. Sys-admin owners serve endpoints at their bare path;
// everyone else is prefixed by their routing context.
const (
	RoleUser     Role = "user"
	RoleSysAdmin Role = "sys-admin"
)

// Owner identifies who configured an endpoint and their routing context.
type Owner struct {
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Role    Role   `json:"role,omitempty" yaml:"role,omitempty"`
	CtxPath string `json:"ctxPath,omitempty" yaml:"ctxPath,omitempty"`
}

// Header is one response header. Headers are kept as an ordered slice,
// not a map, so they are applied in configured order.
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// ResponseVariant is one entry in a sequence endpoint's rotation.
type ResponseVariant struct {
	StatusCode  int      `json:"statusCode" yaml:"statusCode"`
	ContentType string   `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Body        string   `json:"body,omitempty" yaml:"body,omitempty"`
	Headers     []Header `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Suspend marks the variant for one-shot removal: it is pruned from the
	// in-memory list before the next resolution and never reappears until
	// the registry is rebuilt from the definition store.
	Suspend bool `json:"suspend,omitempty" yaml:"suspend,omitempty"`
}

// RuleVariant is one rule entry consumed by the rule resolver. Match is an
// expression over the inbound request; BodyJSONPath maps JSONPath
// expressions to expected values extracted from a JSON request body.
type RuleVariant struct {
	Match        string         `json:"match,omitempty" yaml:"match,omitempty"`
	BodyJSONPath map[string]any `json:"bodyJsonPath,omitempty" yaml:"bodyJsonPath,omitempty"`

	StatusCode  int      `json:"statusCode" yaml:"statusCode"`
	ContentType string   `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Body        string   `json:"body,omitempty" yaml:"body,omitempty"`
	Headers     []Header `json:"headers,omitempty" yaml:"headers,omitempty"`
	Suspend     bool     `json:"suspend,omitempty" yaml:"suspend,omitempty"`
}

// LatencyConfig enables randomized latency injection for an endpoint.
// Non-positive bounds fall back to 1000/5000 milliseconds.
type LatencyConfig struct {
	Enabled   bool  `json:"enabled" yaml:"enabled"`
	MinMillis int64 `json:"minMillis,omitempty" yaml:"minMillis,omitempty"`
	MaxMillis int64 `json:"maxMillis,omitempty" yaml:"maxMillis,omitempty"`
}

// SequenceSpec carries the ordered variants of a sequence endpoint.
type SequenceSpec struct {
	Variants []*ResponseVariant `json:"variants" yaml:"variants"`
}

// RuleSpec carries the rule entries of a rule endpoint, plus the
// response variants served when no rule matches.
type RuleSpec struct {
	Rules []*RuleVariant `json:"rules" yaml:"rules"`

	// Defaults are the endpoint's plain response variants. When no rule
	// matches, the first remaining default answers.
	Defaults []*ResponseVariant `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// ProxySpec configures an HTTP proxy endpoint.
type ProxySpec struct {
	// Target is the upstream base URL requests are forwarded to.
	Target string `json:"target" yaml:"target"`
	// TimeoutMillis bounds the outbound call. Zero means the client default.
	TimeoutMillis int `json:"timeoutMillis,omitempty" yaml:"timeoutMillis,omitempty"`
}

// SSESpec configures a server-sent-events endpoint.
type SSESpec struct {
	// HeartbeatMillis is the interval between heartbeat comments.
	// Zero disables heartbeats.
	HeartbeatMillis int64 `json:"heartbeatMillis,omitempty" yaml:"heartbeatMillis,omitempty"`
	// PushIDOnConnect pushes the connection identifier as the first event.
	PushIDOnConnect bool `json:"pushIdOnConnect,omitempty" yaml:"pushIdOnConnect,omitempty"`
}

// ScriptSpec carries the source of a scripted endpoint. The script must
// define a handle(request) function returning status, contentType, body
// and headers.
type ScriptSpec struct {
	Source string `json:"source" yaml:"source"`
}

// StatefulSpec configures a stateful endpoint backed by a JSON collection.
type StatefulSpec struct {
	// IDField is the document field used as the item identifier ("id" by default).
	IDField string `json:"idField,omitempty" yaml:"idField,omitempty"`
	// Seed is the initial collection content.
	Seed []map[string]any `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Endpoint is one configured mock: a (method, path) pair with a
// resolution strategy. Exactly one spec pointer is populated, selected
// by Type.
type Endpoint struct {
	ID     string `json:"id" yaml:"id"`
	Method string `json:"method" yaml:"method"`
	Path   string `json:"path" yaml:"path"`
	Type   Type   `json:"type" yaml:"type"`
	Owner  Owner  `json:"owner,omitempty" yaml:"owner,omitempty"`

	// Enabled indicates whether this endpoint is active. Nil means enabled.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	Latency LatencyConfig `json:"latency,omitempty" yaml:"latency,omitempty"`

	Sequence *SequenceSpec `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	Rule     *RuleSpec     `json:"rule,omitempty" yaml:"rule,omitempty"`
	Proxy    *ProxySpec    `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	SSE      *SSESpec      `json:"sse,omitempty" yaml:"sse,omitempty"`
	Script   *ScriptSpec   `json:"script,omitempty" yaml:"script,omitempty"`
	Stateful *StatefulSpec `json:"stateful,omitempty" yaml:"stateful,omitempty"`
}

// Resolved is the transient output of a resolver. It is never persisted.
type Resolved struct {
	StatusCode  int
	ContentType string
	Body        string
	Headers     []Header
}

// supportedMethods are the HTTP methods an endpoint may bind.
var supportedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
	"PATCH":  true,
}

// MethodSupported reports whether the given HTTP method can be bound.
func MethodSupported(method string) bool {
	return supportedMethods[strings.ToUpper(method)]
}

// IsEnabled reports whether the endpoint is active.
func (e *Endpoint) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// EffectivePath returns the path the endpoint is served at: the bare path
// for sys-admin owners, otherwise prefixed with the owner's routing context.
func (e *Endpoint) EffectivePath() string {
	if e.Owner.Role == RoleSysAdmin || e.Owner.CtxPath == "" {
		return e.Path
	}
	return "/" + strings.Trim(e.Owner.CtxPath, "/") + e.Path
}

// Detach returns a deep copy of the endpoint with all variant and rule
// collections materialized, safe to reuse across requests independent of
// the definition store it was loaded from.
func (e *Endpoint) Detach() *Endpoint {
	cp := *e
	if e.Enabled != nil {
		enabled := *e.Enabled
		cp.Enabled = &enabled
	}
	if e.Sequence != nil {
		cp.Sequence = &SequenceSpec{Variants: copyVariants(e.Sequence.Variants)}
	}
	if e.Rule != nil {
		cp.Rule = &RuleSpec{
			Rules:    copyRules(e.Rule.Rules),
			Defaults: copyVariants(e.Rule.Defaults),
		}
	}
	if e.Proxy != nil {
		p := *e.Proxy
		cp.Proxy = &p
	}
	if e.SSE != nil {
		s := *e.SSE
		cp.SSE = &s
	}
	if e.Script != nil {
		s := *e.Script
		cp.Script = &s
	}
	if e.Stateful != nil {
		s := *e.Stateful
		s.Seed = make([]map[string]any, len(e.Stateful.Seed))
		for i, doc := range e.Stateful.Seed {
			d := make(map[string]any, len(doc))
			for k, v := range doc {
				d[k] = v
			}
			s.Seed[i] = d
		}
		cp.Stateful = &s
	}
	return &cp
}

func copyVariants(in []*ResponseVariant) []*ResponseVariant {
	out := make([]*ResponseVariant, len(in))
	for i, v := range in {
		c := *v
		c.Headers = append([]Header(nil), v.Headers...)
		out[i] = &c
	}
	return out
}

func copyRules(in []*RuleVariant) []*RuleVariant {
	out := make([]*RuleVariant, len(in))
	for i, r := range in {
		c := *r
		c.Headers = append([]Header(nil), r.Headers...)
		if r.BodyJSONPath != nil {
			c.BodyJSONPath = make(map[string]any, len(r.BodyJSONPath))
			for k, v := range r.BodyJSONPath {
				c.BodyJSONPath[k] = v
			}
		}
		out[i] = &c
	}
	return out
}

// Validate checks that the endpoint is well-formed and that its spec
// matches its declared type.
func (e *Endpoint) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("endpoint is missing an id")
	}
	if !MethodSupported(e.Method) {
		return fmt.Errorf("endpoint %s: unsupported method %q", e.ID, e.Method)
	}
	if e.Path == "" || !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("endpoint %s: path must start with /", e.ID)
	}
	switch e.Type {
	case TypeSequence:
		if e.Sequence == nil || len(e.Sequence.Variants) == 0 {
			return fmt.Errorf("endpoint %s: sequence mock requires at least one variant", e.ID)
		}
	case TypeRule:
		if e.Rule == nil || len(e.Rule.Rules) == 0 {
			return fmt.Errorf("endpoint %s: rule mock requires at least one rule", e.ID)
		}
	case TypeProxyHTTP:
		if e.Proxy == nil || e.Proxy.Target == "" {
			return fmt.Errorf("endpoint %s: proxy mock requires a target", e.ID)
		}
	case TypeProxySSE:
		if e.SSE == nil {
			e.SSE = &SSESpec{}
		}
	case TypeScript:
		if e.Script == nil || e.Script.Source == "" {
			return fmt.Errorf("endpoint %s: script mock requires a source", e.ID)
		}
	case TypeStateful:
		if e.Stateful == nil {
			e.Stateful = &StatefulSpec{}
		}
	default:
		return fmt.Errorf("endpoint %s: unknown mock type %q", e.ID, e.Type)
	}
	return nil
}
