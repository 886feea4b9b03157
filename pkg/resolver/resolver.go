// Package resolver turns matched endpoints into concrete responses.
// Each mock type has its own Resolver; the engine dispatches on
// endpoint type and post-processes whatever comes back.
package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/mockrelay/mockrelay/pkg/mock"
)

// ErrInvalidInput marks resolution failures caused by the caller's
// request (malformed body, missing identifier). The serving layer may
// expose the error text to the client; any other resolution error is
// reported generically.
var ErrInvalidInput = errors.New("invalid request input")

// Request is the inbound-request snapshot handed to resolvers. The
// body has already been read so resolvers never touch the network
// stream directly.
type Request struct {
	Method  string
	Path    string
	Params  map[string]string
	Query   url.Values
	Headers http.Header
	Body    string
}

// NewRequest builds a Request from an http.Request plus the path
// parameters extracted by the route table.
func NewRequest(r *http.Request, params map[string]string, body string) *Request {
	return &Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Params:  params,
		Query:   r.URL.Query(),
		Headers: r.Header,
		Body:    body,
	}
}

// Resolver produces a response for one endpoint. A (nil, nil) return
// means the resolver had no outcome for this request; the caller
// decides what that maps to (typically the endpoint's default).
type Resolver interface {
	Resolve(ctx context.Context, req *Request, ep *mock.Endpoint) (*mock.Resolved, error)
}

// Guard hands out one mutex per endpoint so that mutations of shared
// endpoint state (suspend pruning, sequence cursors) never interleave
// across concurrent requests to the same mock, while requests to
// different mocks stay independent.
type Guard struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard {
	return &Guard{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given endpoint ID, creating it on
// first use. The caller must call Unlock with the same ID.
func (g *Guard) Lock(endpointID string) {
	g.mu.Lock()
	l, ok := g.locks[endpointID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[endpointID] = l
	}
	g.mu.Unlock()
	l.Lock()
}

// Unlock releases the mutex for the given endpoint ID.
func (g *Guard) Unlock(endpointID string) {
	g.mu.Lock()
	l := g.locks[endpointID]
	g.mu.Unlock()
	if l != nil {
		l.Unlock()
	}
}
