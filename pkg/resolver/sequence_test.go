package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockrelay/mockrelay/pkg/mock"
)

func sequenceEndpoint(bodies ...string) *mock.Endpoint {
	variants := make([]*mock.ResponseVariant, len(bodies))
	for i, b := range bodies {
		variants[i] = &mock.ResponseVariant{StatusCode: 200, ContentType: "text/plain", Body: b}
	}
	return &mock.Endpoint{
		ID:       "seq-1",
		Method:   "GET",
		Path:     "/seq",
		Type:     mock.TypeSequence,
		Sequence: &mock.SequenceSpec{Variants: variants},
	}
}

func TestSequenceCyclesAndWraps(t *testing.T) {
	t.Parallel()

	s := NewSequence()
	ep := sequenceEndpoint("a", "b", "c")

	var got []string
	for i := 0; i < 4; i++ {
		res, err := s.Resolve(context.Background(), nil, ep)
		require.NoError(t, err)
		require.NotNil(t, res)
		got = append(got, res.Body)
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
}

func TestSequenceCursorSurvivesPruning(t *testing.T) {
	t.Parallel()

	s := NewSequence()
	ep := sequenceEndpoint("a", "b", "c")

	_, err := s.Resolve(context.Background(), nil, ep)
	require.NoError(t, err)
	_, err = s.Resolve(context.Background(), nil, ep)
	require.NoError(t, err)

	// Two variants pruned away; the stale cursor wraps modulo what remains.
	ep.Sequence.Variants = ep.Sequence.Variants[:1]
	res, err := s.Resolve(context.Background(), nil, ep)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Body)
}

func TestSequenceNoVariants(t *testing.T) {
	t.Parallel()

	s := NewSequence()
	ep := sequenceEndpoint()

	res, err := s.Resolve(context.Background(), nil, ep)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestSequenceResetCursor(t *testing.T) {
	t.Parallel()

	s := NewSequence()
	ep := sequenceEndpoint("a", "b")

	_, err := s.Resolve(context.Background(), nil, ep)
	require.NoError(t, err)
	s.ResetCursor(ep.ID)

	res, err := s.Resolve(context.Background(), nil, ep)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Body)
}
