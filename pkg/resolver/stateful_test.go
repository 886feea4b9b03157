package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockrelay/mockrelay/pkg/mock"
	"github.com/mockrelay/mockrelay/pkg/stateful"
)

func statefulEndpoint() *mock.Endpoint {
	return &mock.Endpoint{
		ID:     "pets-1",
		Method: "GET",
		Path:   "/pets",
		Type:   mock.TypeStateful,
		Stateful: &mock.StatefulSpec{
			Seed: []map[string]any{{"id": "1", "name": "rex"}},
		},
	}
}

func statefulReq(t *testing.T, method, body string, params map[string]string) *Request {
	t.Helper()
	r := httptest.NewRequest(method, "/pets", strings.NewReader(body))
	return NewRequest(r, params, body)
}

func TestStatefulCRUD(t *testing.T) {
	t.Parallel()

	s := NewStateful(stateful.NewStore())
	ep := statefulEndpoint()
	ctx := context.Background()

	// List returns the seed.
	res, err := s.Resolve(ctx, statefulReq(t, http.MethodGet, "", nil), ep)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `[{"id":"1","name":"rex"}]`, res.Body)

	// Create.
	res, err = s.Resolve(ctx, statefulReq(t, http.MethodPost, `{"id":"2","name":"milo"}`, nil), ep)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	// Get a single item.
	res, err = s.Resolve(ctx, statefulReq(t, http.MethodGet, "", map[string]string{"id": "2"}), ep)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"id":"2","name":"milo"}`, res.Body)

	// Replace.
	res, err = s.Resolve(ctx, statefulReq(t, http.MethodPut, `{"name":"max"}`, map[string]string{"id": "2"}), ep)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	// Patch.
	res, err = s.Resolve(ctx, statefulReq(t, http.MethodPatch, `{"age":3}`, map[string]string{"id": "1"}), ep)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"id":"1","name":"rex","age":3}`, res.Body)

	// Delete.
	res, err = s.Resolve(ctx, statefulReq(t, http.MethodDelete, "", map[string]string{"id": "2"}), ep)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, err = s.Resolve(ctx, statefulReq(t, http.MethodGet, "", map[string]string{"id": "2"}), ep)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStatefulCreateAssignsID(t *testing.T) {
	t.Parallel()

	s := NewStateful(stateful.NewStore())
	ep := statefulEndpoint()

	res, err := s.Resolve(context.Background(), statefulReq(t, http.MethodPost, `{"name":"luna"}`, nil), ep)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Contains(t, res.Body, `"id"`)
}

func TestStatefulMalformedBody(t *testing.T) {
	t.Parallel()

	s := NewStateful(stateful.NewStore())
	ep := statefulEndpoint()

	_, err := s.Resolve(context.Background(), statefulReq(t, http.MethodPost, `{not json`, nil), ep)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Resolve(context.Background(), statefulReq(t, http.MethodPost, `[1,2]`, nil), ep)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStatefulMissingID(t *testing.T) {
	t.Parallel()

	s := NewStateful(stateful.NewStore())
	ep := statefulEndpoint()

	_, err := s.Resolve(context.Background(), statefulReq(t, http.MethodDelete, "", nil), ep)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
