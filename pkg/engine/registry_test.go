package engine

import (
	"context"
	"net/http"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockrelay/mockrelay/pkg/mock"
	"github.com/mockrelay/mockrelay/pkg/store"
)

func noopBinder(_ *mock.Endpoint) httprouter.Handle {
	return func(http.ResponseWriter, *http.Request, httprouter.Params) {}
}

func seqEndpoint(id, method, path string) *mock.Endpoint {
	return &mock.Endpoint{
		ID:     id,
		Method: method,
		Path:   path,
		Type:   mock.TypeSequence,
		Sequence: &mock.SequenceSpec{
			Variants: []*mock.ResponseVariant{{StatusCode: 200, Body: "ok"}},
		},
	}
}

func memoryWith(t *testing.T, eps ...*mock.Endpoint) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for _, ep := range eps {
		m.Put(ep)
	}
	return m
}

func TestBuildRegistryBindsRoutes(t *testing.T) {
	t.Parallel()

	st := memoryWith(t,
		seqEndpoint("a", "GET", "/pets"),
		seqEndpoint("b", "POST", "/pets"),
		seqEndpoint("c", "GET", "/pets/:id"),
	)

	r, err := BuildRegistry(context.Background(), st, noopBinder, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Count())

	h, params, ok := r.Lookup("GET", "/pets/42")
	require.True(t, ok)
	require.NotNil(t, h)
	assert.Equal(t, "42", params.ByName("id"))

	_, _, ok = r.Lookup("DELETE", "/pets")
	assert.False(t, ok)
}

func TestBuildRegistryRejectsUnsupportedMethod(t *testing.T) {
	t.Parallel()

	st := memoryWith(t, seqEndpoint("a", "OPTIONS", "/pets"))

	_, err := BuildRegistry(context.Background(), st, noopBinder, nil)
	require.Error(t, err)
	var re *RegistryError
	assert.ErrorAs(t, err, &re)
}

func TestBuildRegistryRejectsDuplicateRoute(t *testing.T) {
	t.Parallel()

	st := memoryWith(t,
		seqEndpoint("a", "GET", "/pets"),
		seqEndpoint("b", "GET", "/pets"),
	)

	_, err := BuildRegistry(context.Background(), st, noopBinder, nil)
	require.Error(t, err)
	var re *RegistryError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Reason, "duplicate")
}

func TestBuildRegistryRejectsConflictingPattern(t *testing.T) {
	t.Parallel()

	// Same segment position bound as both a literal and a parameter:
	// the router cannot hold both.
	st := memoryWith(t,
		seqEndpoint("a", "GET", "/pets/:id"),
		seqEndpoint("b", "GET", "/pets/special"),
	)

	_, err := BuildRegistry(context.Background(), st, noopBinder, nil)
	require.Error(t, err)
	var re *RegistryError
	assert.ErrorAs(t, err, &re)
}

func TestBuildRegistryServesIndexPage(t *testing.T) {
	t.Parallel()

	st := memoryWith(t, seqEndpoint("a", "GET", "/pets"))

	r, err := BuildRegistry(context.Background(), st, noopBinder, nil)
	require.NoError(t, err)

	h, _, ok := r.Lookup("GET", "/")
	require.True(t, ok)
	require.NotNil(t, h)
	assert.Contains(t, string(r.index), "/pets")
}

func TestBuildRegistryMockCanClaimRoot(t *testing.T) {
	t.Parallel()

	st := memoryWith(t, seqEndpoint("root", "GET", "/"))

	r, err := BuildRegistry(context.Background(), st, noopBinder, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count())
}

func TestBuildRegistrySkipsDisabled(t *testing.T) {
	t.Parallel()

	disabled := seqEndpoint("off", "GET", "/hidden")
	off := false
	disabled.Enabled = &off

	st := memoryWith(t, seqEndpoint("on", "GET", "/visible"), disabled)

	r, err := BuildRegistry(context.Background(), st, noopBinder, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count())
	_, _, ok := r.Lookup("GET", "/hidden")
	assert.False(t, ok)
}

func TestBuildRegistryAppliesOwnerContext(t *testing.T) {
	t.Parallel()

	ep := seqEndpoint("ctx", "GET", "/pets")
	ep.Owner = mock.Owner{ID: "u1", Role: mock.RoleUser, CtxPath: "team-a"}

	st := memoryWith(t, ep)
	r, err := BuildRegistry(context.Background(), st, noopBinder, nil)
	require.NoError(t, err)

	_, _, ok := r.Lookup("GET", "/team-a/pets")
	assert.True(t, ok)
	_, _, ok = r.Lookup("GET", "/pets")
	assert.False(t, ok)
}
