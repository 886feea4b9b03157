package requestlog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLog(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(10)
	s.Log(&Entry{Method: "GET", Path: "/widgets", Source: SourceMock, Status: 200})

	require.Equal(t, 1, s.Count())
	e := s.List()[0]
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, SourceMock, e.Source)
	assert.Same(t, e, s.Get(e.ID))
}

func TestMemoryStoreBounded(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(3)
	for i := 0; i < 5; i++ {
		s.Log(&Entry{Method: "GET", Path: fmt.Sprintf("/p%d", i)})
	}

	require.Equal(t, 3, s.Count())
	list := s.List()
	// Newest first; oldest two were evicted.
	assert.Equal(t, "/p4", list[0].Path)
	assert.Equal(t, "/p2", list[2].Path)
	assert.Nil(t, s.Get("unknown"))
}

func TestMemoryStoreClear(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(10)
	s.Log(&Entry{Method: "GET", Path: "/x"})
	s.Clear()
	assert.Equal(t, 0, s.Count())
}
