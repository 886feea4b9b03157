package resolver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ohler55/ojg/oj"

	"github.com/mockrelay/mockrelay/pkg/mock"
	"github.com/mockrelay/mockrelay/pkg/stateful"
)

// Stateful serves CRUD semantics over an in-memory JSON collection,
// dispatching on the HTTP method. A path parameter matching the
// collection's id field selects a single item.
type Stateful struct {
	store *stateful.Store
}

// NewStateful returns a Stateful resolver backed by the given store.
func NewStateful(store *stateful.Store) *Stateful {
	return &Stateful{store: store}
}

// Resolve applies the request to the endpoint's collection.
func (s *Stateful) Resolve(_ context.Context, req *Request, ep *mock.Endpoint) (*mock.Resolved, error) {
	col := s.store.Collection(ep)
	id := req.Params[col.IDField()]

	switch req.Method {
	case http.MethodGet:
		if id == "" {
			return jsonResolved(http.StatusOK, col.List())
		}
		doc := col.Get(id)
		if doc == nil {
			return jsonResolved(http.StatusNotFound, map[string]any{"message": "not found"})
		}
		return jsonResolved(http.StatusOK, doc)

	case http.MethodPost:
		doc, err := parseDoc(req.Body)
		if err != nil {
			return nil, err
		}
		created := col.Create(doc)
		return jsonResolved(http.StatusCreated, created)

	case http.MethodPut:
		if id == "" {
			return nil, fmt.Errorf("%w: missing %s path parameter", ErrInvalidInput, col.IDField())
		}
		doc, err := parseDoc(req.Body)
		if err != nil {
			return nil, err
		}
		if !col.Update(id, doc) {
			return jsonResolved(http.StatusNotFound, map[string]any{"message": "not found"})
		}
		return &mock.Resolved{StatusCode: http.StatusNoContent, ContentType: "application/json"}, nil

	case http.MethodPatch:
		if id == "" {
			return nil, fmt.Errorf("%w: missing %s path parameter", ErrInvalidInput, col.IDField())
		}
		fields, err := parseDoc(req.Body)
		if err != nil {
			return nil, err
		}
		doc := col.Patch(id, fields)
		if doc == nil {
			return jsonResolved(http.StatusNotFound, map[string]any{"message": "not found"})
		}
		return jsonResolved(http.StatusOK, doc)

	case http.MethodDelete:
		if id == "" {
			return nil, fmt.Errorf("%w: missing %s path parameter", ErrInvalidInput, col.IDField())
		}
		if !col.Delete(id) {
			return jsonResolved(http.StatusNotFound, map[string]any{"message": "not found"})
		}
		return &mock.Resolved{StatusCode: http.StatusNoContent, ContentType: "application/json"}, nil
	}

	return nil, nil
}

func parseDoc(body string) (map[string]any, error) {
	parsed, err := oj.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: request body is not valid JSON", ErrInvalidInput)
	}
	doc, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: request body must be a JSON object", ErrInvalidInput)
	}
	return doc, nil
}

func jsonResolved(status int, payload any) (*mock.Resolved, error) {
	return &mock.Resolved{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        oj.JSON(payload),
	}, nil
}
