package engine

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/mockrelay/mockrelay/pkg/httputil"
	"github.com/mockrelay/mockrelay/pkg/logging"
	"github.com/mockrelay/mockrelay/pkg/mock"
	"github.com/mockrelay/mockrelay/pkg/requestlog"
	"github.com/mockrelay/mockrelay/pkg/resolver"
	"github.com/mockrelay/mockrelay/pkg/sse"
)

// Pipeline is the engine's root handler. Every inbound request goes
// through the same two stages: one upstream passthrough attempt, then
// local mock resolution against the route table.
type Pipeline struct {
	client    *Client
	registry  *Registry
	guard     *resolver.Guard
	resolvers map[mock.Type]resolver.Resolver
	broker    *sse.Broker
	post      *post
	reqlog    requestlog.Logger
	log       *slog.Logger
}

// NewPipeline wires the pipeline. The registry is attached later, once
// built, because route handlers close over the pipeline itself.
func NewPipeline(client *Client, guard *resolver.Guard, resolvers map[mock.Type]resolver.Resolver,
	broker *sse.Broker, reqlog requestlog.Logger, log *slog.Logger) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{
		client:    client,
		guard:     guard,
		resolvers: resolvers,
		broker:    broker,
		post:      newPost(log),
		reqlog:    reqlog,
		log:       log,
	}
}

// SetRegistry attaches the route table. Must be called before serving.
func (p *Pipeline) SetRegistry(r *Registry) { p.registry = r }

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "unable to read request body")
		p.record(r, start, requestlog.SourceError, "", http.StatusBadRequest)
		return
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if p.client != nil && p.client.Base() != "" {
		if p.relayUpstream(w, r, string(bodyBytes), start) {
			return
		}
	}

	handle, params, ok := p.registry.Lookup(r.Method, r.URL.Path)
	if !ok {
		httputil.WriteNotFound(w, "no_match", "no mock is configured for this route")
		p.record(r, start, requestlog.SourceNotFound, "", http.StatusNotFound)
		return
	}
	handle(w, r, params)
}

// relayUpstream makes the single passthrough attempt and relays any
// non-404 answer verbatim. It reports whether the request was handled.
func (p *Pipeline) relayUpstream(w http.ResponseWriter, r *http.Request, body string, start time.Time) bool {
	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	out, err := p.client.Do(r.Context(), &Call{
		Method:  r.Method,
		URL:     r.URL.RequestURI(),
		Headers: headers,
		Body:    body,
	}, true)
	if err != nil {
		// A malformed call descriptor never blocks local resolution.
		p.log.Warn("upstream passthrough skipped", "method", r.Method, "url", r.URL.Path, "error", err)
		return false
	}
	if out.Status == http.StatusNotFound {
		return false
	}

	for name, vals := range out.Headers {
		if name == "Content-Length" {
			continue
		}
		for _, v := range vals {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(out.Status)
	if out.Body != "" {
		_, _ = w.Write([]byte(out.Body))
	}
	p.record(r, start, requestlog.SourceRelay, "", out.Status)
	return true
}

// handlerFor binds one endpoint into a route handler. The endpoint is
// the registry's detached copy, shared by all requests to this route.
func (p *Pipeline) handlerFor(ep *mock.Endpoint) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				p.log.Error("mock handler panicked", "endpoint", ep.ID, "panic", rec)
				httputil.WriteInternalError(w, "internal_error", "something went wrong")
				p.record(r, start, requestlog.SourceError, ep.ID, http.StatusInternalServerError)
			}
		}()

		if ep.Type == mock.TypeProxySSE {
			p.record(r, start, requestlog.SourceSSE, ep.ID, http.StatusOK)
			if err := p.broker.Register(ep.EffectivePath(), ep.SSE.HeartbeatMillis, ep.SSE.PushIDOnConnect, w, r); err != nil {
				p.log.Warn("sse registration failed", "endpoint", ep.ID, "error", err)
				httputil.WriteInternalError(w, "sse_unsupported", "connection does not support event streams")
			}
			return
		}

		body, _ := io.ReadAll(r.Body)
		paramMap := make(map[string]string, len(params))
		for _, pa := range params {
			paramMap[pa.Key] = pa.Value
		}
		req := resolver.NewRequest(r, paramMap, string(body))

		// Pruning, resolution, and the default read all touch the shared
		// variant lists, so they stay mutually exclusive per endpoint. The
		// lock is released before post-processing: latency sleeps must not
		// stall other requests to the same mock.
		res, err := func() (*mock.Resolved, error) {
			p.guard.Lock(ep.ID)
			defer p.guard.Unlock(ep.ID)
			pruneSuspended(ep)
			res, err := p.resolvers[ep.Type].Resolve(r.Context(), req, ep)
			if err == nil && res == nil {
				res = defaultResolved(ep)
			}
			return res, err
		}()
		if err != nil {
			// Only caller-input problems leak their message; anything else
			// gets the generic line.
			msg := "something went wrong"
			if errors.Is(err, resolver.ErrInvalidInput) {
				msg = err.Error()
			} else {
				p.log.Error("mock resolution failed", "endpoint", ep.ID, "error", err)
			}
			httputil.WriteInternalError(w, "resolution_failed", msg)
			p.record(r, start, requestlog.SourceError, ep.ID, http.StatusInternalServerError)
			return
		}
		if res == nil {
			p.log.Error("endpoint has no response to serve", "endpoint", ep.ID)
			httputil.WriteInternalError(w, "internal_error", "something went wrong")
			p.record(r, start, requestlog.SourceError, ep.ID, http.StatusInternalServerError)
			return
		}

		status := p.post.write(w, req, ep, res)
		source := requestlog.SourceMock
		if status == http.StatusInternalServerError && res.StatusCode != http.StatusInternalServerError {
			source = requestlog.SourceError
		}
		p.record(r, start, source, ep.ID, status)
	}
}

func (p *Pipeline) record(r *http.Request, start time.Time, source, endpointID string, status int) {
	if p.reqlog == nil {
		return
	}
	p.reqlog.Log(&requestlog.Entry{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		Source:     source,
		EndpointID: endpointID,
		Status:     status,
		DurationMs: int(time.Since(start).Milliseconds()),
	})
}
