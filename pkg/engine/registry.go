package engine

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/mockrelay/mockrelay/pkg/logging"
	"github.com/mockrelay/mockrelay/pkg/mock"
	"github.com/mockrelay/mockrelay/pkg/store"
)

// Registry is the immutable route table built from the definition
// store at engine start. Every route holds a detached endpoint copy,
// so resolver-side mutations (suspend pruning, cursors) never touch
// the store.
type Registry struct {
	router *httprouter.Router
	count  int
	index  []byte
	log    *slog.Logger
}

// Binder produces the request handler bound to one endpoint.
type Binder func(ep *mock.Endpoint) httprouter.Handle

// BuildRegistry loads active endpoints and binds each to a route.
// Any endpoint the table cannot accept (bad definition, unsupported
// method, duplicate or conflicting route) aborts the build with a
// *RegistryError.
func BuildRegistry(ctx context.Context, st store.Store, bind Binder, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = logging.Nop()
	}

	eps, err := st.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active endpoints: %w", err)
	}

	r := &Registry{router: httprouter.New(), log: log}
	seen := make(map[string]bool)
	rootBound := false

	for _, ep := range eps {
		detached := st.Detach(ep)
		if err := detached.Validate(); err != nil {
			return nil, &RegistryError{EndpointID: detached.ID, Reason: err.Error()}
		}

		method := strings.ToUpper(detached.Method)
		path := detached.EffectivePath()
		key := method + " " + path
		if seen[key] {
			return nil, &RegistryError{EndpointID: detached.ID, Reason: fmt.Sprintf("duplicate route %s", key)}
		}
		seen[key] = true

		if err := r.handle(method, path, bind(detached)); err != nil {
			return nil, &RegistryError{EndpointID: detached.ID, Reason: err.Error()}
		}
		if method == http.MethodGet && path == "/" {
			rootBound = true
		}
		r.count++
		log.Debug("route bound", "endpoint", detached.ID, "method", method, "path", path, "type", detached.Type)
	}

	r.index = buildIndex(eps)
	if !rootBound {
		index := r.index
		if err := r.handle(http.MethodGet, "/", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(index)
		}); err != nil {
			return nil, &RegistryError{Reason: err.Error()}
		}
	}

	log.Info("route table built", "routes", r.count)
	return r, nil
}

// handle registers a route, converting httprouter's registration
// panics (conflicting patterns) into errors.
func (r *Registry) handle(method, path string, h httprouter.Handle) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("binding %s %s: %v", method, path, rec)
		}
	}()
	r.router.Handle(method, path, h)
	return nil
}

// Lookup finds the handler bound to a method and path.
func (r *Registry) Lookup(method, path string) (httprouter.Handle, httprouter.Params, bool) {
	h, params, _ := r.router.Lookup(method, path)
	if h == nil {
		return nil, nil, false
	}
	return h, params, true
}

// Count returns the number of mock routes in the table.
func (r *Registry) Count() int { return r.count }

// buildIndex renders the static landing page once, at build time.
func buildIndex(eps []*mock.Endpoint) []byte {
	type row struct{ method, path, kind string }
	rows := make([]row, 0, len(eps))
	for _, ep := range eps {
		rows = append(rows, row{strings.ToUpper(ep.Method), ep.EffectivePath(), string(ep.Type)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].path != rows[j].path {
			return rows[i].path < rows[j].path
		}
		return rows[i].method < rows[j].method
	})

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>mockrelay</title></head><body>")
	b.WriteString("<h1>mockrelay</h1><p>Mock server is up.</p><table><tr><th>Method</th><th>Path</th><th>Type</th></tr>")
	for _, r := range rows {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(r.method), html.EscapeString(r.path), html.EscapeString(r.kind))
	}
	b.WriteString("</table></body></html>")
	return []byte(b.String())
}
