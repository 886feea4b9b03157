// Package engine runs the mock serving pipeline: a route table built
// from the definition store, an upstream passthrough stage, per-type
// response resolvers, and a lifecycle controller around one HTTP
// listener.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/mockrelay/mockrelay/pkg/config"
	"github.com/mockrelay/mockrelay/pkg/logging"
	"github.com/mockrelay/mockrelay/pkg/mock"
	"github.com/mockrelay/mockrelay/pkg/requestlog"
	"github.com/mockrelay/mockrelay/pkg/resolver"
	"github.com/mockrelay/mockrelay/pkg/sse"
	"github.com/mockrelay/mockrelay/pkg/stateful"
	"github.com/mockrelay/mockrelay/pkg/store"
)

// Phase is the engine lifecycle state.
type Phase string

// Lifecycle phases. Transitions only move forward within one
// start/stop cycle: stopped -> starting -> running -> stopping -> stopped.
const (
	PhaseStopped  Phase = "stopped"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
)

// Engine owns the listener and everything behind it.
type Engine struct {
	cfg   *config.Config
	store store.Store
	log   *slog.Logger

	state    *State
	pipeline *Pipeline
	broker   *sse.Broker
	sequence *resolver.Sequence
	states   *stateful.Store
	reqlog   *requestlog.MemoryStore

	mu       sync.Mutex
	phase    Phase
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New wires an engine over the given definition store. Nothing listens
// until Start.
func New(cfg *config.Config, st store.Store, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  st,
		log:    logging.Nop(),
		state:  NewState(),
		phase:  PhaseStopped,
		states: stateful.NewStore(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.broker = sse.NewBroker(e.log)
	e.reqlog = requestlog.NewMemoryStore(cfg.MaxLogEntries)
	e.sequence = resolver.NewSequence()

	upstream := &http.Client{}
	if cfg.UpstreamTimeout > 0 {
		upstream.Timeout = time.Duration(cfg.UpstreamTimeout) * time.Second
	}
	client := NewClient(cfg.RedirectBase, e.state, upstream, e.log)

	resolvers := map[mock.Type]resolver.Resolver{
		mock.TypeSequence:  e.sequence,
		mock.TypeRule:      resolver.NewRule(),
		mock.TypeScript:    resolver.NewScript(),
		mock.TypeStateful:  resolver.NewStateful(e.states),
		mock.TypeProxyHTTP: resolver.NewProxy(&http.Client{}, e.log),
	}

	e.pipeline = NewPipeline(client, resolver.NewGuard(), resolvers, e.broker, e.reqlog, e.log)
	return e
}

// Start builds the route table, binds the listener, and begins
// serving. The listener is bound before Start returns, so the engine's
// port is valid immediately afterwards.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseStopped {
		return fmt.Errorf("engine is %s, cannot start", e.phase)
	}
	e.phase = PhaseStarting

	registry, err := BuildRegistry(ctx, e.store, e.pipeline.handlerFor, e.log)
	if err != nil {
		e.phase = PhaseStopped
		return err
	}
	e.pipeline.SetRegistry(registry)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", e.cfg.HTTPPort))
	if err != nil {
		e.phase = PhaseStopped
		return fmt.Errorf("binding port %d: %w", e.cfg.HTTPPort, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if e.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, e.cfg.MaxConns)
	}

	e.listener = ln
	e.srv = &http.Server{
		Handler:      e.pipeline,
		ReadTimeout:  time.Duration(e.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(e.cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(e.cfg.IdleTimeout) * time.Second,
	}
	e.done = make(chan struct{})

	go func(srv *http.Server, ln net.Listener, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("http server stopped", "error", err)
		}
	}(e.srv, ln, e.done)

	e.state.Set(true, port)
	e.phase = PhaseRunning
	e.log.Info("engine started", "port", port, "routes", registry.Count())
	return nil
}

// Stop shuts the listener down gracefully and waits until the serve
// loop has fully exited. When the context expires first the engine
// stays in the stopping phase: stopped is only reported once teardown
// is confirmed. A later Stop call resumes the wait.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var shutdownErr error
	switch e.phase {
	case PhaseRunning:
		e.phase = PhaseStopping
		e.state.Set(false, 0)
		shutdownErr = e.srv.Shutdown(ctx)
	case PhaseStopping:
		// A previous Stop timed out before the serve loop exited.
	default:
		return fmt.Errorf("engine is %s, cannot stop", e.phase)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		// The context can lose the race against an already-closed done
		// channel, so check once more before giving up.
		select {
		case <-e.done:
		default:
			if shutdownErr == nil {
				shutdownErr = ctx.Err()
			}
			return shutdownErr
		}
	}

	e.srv = nil
	e.listener = nil
	e.phase = PhaseStopped
	e.log.Info("engine stopped")
	return shutdownErr
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// IsRunning reports whether the engine is serving.
func (e *Engine) IsRunning() bool { return e.state.Running() }

// Port returns the bound port, zero when stopped.
func (e *Engine) Port() int { return e.state.Port() }

// RequestLogs exposes the request log for inspection.
func (e *Engine) RequestLogs() *requestlog.MemoryStore { return e.reqlog }

// Broker exposes the SSE broker so callers can push events to
// connected clients.
func (e *Engine) Broker() *sse.Broker { return e.broker }
