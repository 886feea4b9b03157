package store

import (
	"context"
	"testing"

	"github.com/mockrelay/mockrelay/pkg/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqEndpoint(id, method, path string) *mock.Endpoint {
	return &mock.Endpoint{
		ID:     id,
		Method: method,
		Path:   path,
		Type:   mock.TypeSequence,
		Sequence: &mock.SequenceSpec{Variants: []*mock.ResponseVariant{
			{StatusCode: 200, Body: "ok"},
		}},
	}
}

func TestMemoryListActive(t *testing.T) {
	t.Parallel()

	off := false
	disabled := seqEndpoint("ep-3", "GET", "/off")
	disabled.Enabled = &off

	s := NewMemoryWith(
		seqEndpoint("ep-2", "POST", "/orders"),
		seqEndpoint("ep-1", "GET", "/widgets"),
		disabled,
	)

	eps, err := s.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, eps, 2)
	// Stable order by ID.
	assert.Equal(t, "ep-1", eps[0].ID)
	assert.Equal(t, "ep-2", eps[1].ID)
}

func TestMemoryListActiveFiltered(t *testing.T) {
	t.Parallel()

	proxy := &mock.Endpoint{
		ID: "ep-p", Method: "GET", Path: "/live", Type: mock.TypeProxyHTTP,
		Proxy: &mock.ProxySpec{Target: "http://backend"},
	}
	s := NewMemoryWith(seqEndpoint("ep-1", "GET", "/widgets"), proxy)

	eps, err := s.ListActiveFiltered(context.Background(), Filter{Method: "GET", Path: "/live"})
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "ep-p", eps[0].ID)

	eps, err = s.ListActiveFiltered(context.Background(), Filter{Types: []mock.Type{mock.TypeSequence}})
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "ep-1", eps[0].ID)
}

func TestMemoryDetach(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	orig := seqEndpoint("ep-1", "GET", "/widgets")
	s.Put(orig)

	detached := s.Detach(orig)
	detached.Sequence.Variants[0].Body = "changed"
	assert.Equal(t, "ok", orig.Sequence.Variants[0].Body)
}

func TestMemoryPutDelete(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	s.Put(seqEndpoint("ep-1", "GET", "/widgets"))
	assert.Equal(t, 1, s.Count())
	assert.NotNil(t, s.Get("ep-1"))

	assert.True(t, s.Delete("ep-1"))
	assert.False(t, s.Delete("ep-1"))
	assert.Nil(t, s.Get("ep-1"))
}
