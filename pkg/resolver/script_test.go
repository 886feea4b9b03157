package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockrelay/mockrelay/pkg/mock"
)

func scriptEndpoint(src string) *mock.Endpoint {
	return &mock.Endpoint{
		ID:     "script-1",
		Method: "GET",
		Path:   "/calc",
		Type:   mock.TypeScript,
		Script: &mock.ScriptSpec{Source: src},
	}
}

func scriptReq(t *testing.T, target string) *Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	return NewRequest(r, map[string]string{}, "")
}

func TestScriptHandlesRequest(t *testing.T) {
	t.Parallel()

	src := `
function handle(request) {
	return {
		status: 201,
		contentType: "application/json",
		body: JSON.stringify({echo: request.query.name}),
		headers: {"X-Origin": "script"}
	};
}`
	res, err := NewScript().Resolve(context.Background(), scriptReq(t, "/calc?name=ada"), scriptEndpoint(src))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, "application/json", res.ContentType)
	assert.JSONEq(t, `{"echo":"ada"}`, res.Body)
	assert.Equal(t, []mock.Header{{Name: "X-Origin", Value: "script"}}, res.Headers)
}

func TestScriptDefaults(t *testing.T) {
	t.Parallel()

	src := `function handle(request) { return {body: "ok"}; }`
	res, err := NewScript().Resolve(context.Background(), scriptReq(t, "/calc"), scriptEndpoint(src))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "text/plain", res.ContentType)
	assert.Equal(t, "ok", res.Body)
}

func TestScriptMissingHandle(t *testing.T) {
	t.Parallel()

	_, err := NewScript().Resolve(context.Background(), scriptReq(t, "/calc"), scriptEndpoint(`var x = 1;`))
	assert.ErrorContains(t, err, "handle")
}

func TestScriptRuntimeError(t *testing.T) {
	t.Parallel()

	src := `function handle(request) { throw new Error("boom"); }`
	_, err := NewScript().Resolve(context.Background(), scriptReq(t, "/calc"), scriptEndpoint(src))
	assert.Error(t, err)
}

func TestScriptCompileError(t *testing.T) {
	t.Parallel()

	_, err := NewScript().Resolve(context.Background(), scriptReq(t, "/calc"), scriptEndpoint(`function handle( {`))
	assert.Error(t, err)
}

func TestScriptVMIsolation(t *testing.T) {
	t.Parallel()

	// Scripts run in a fresh VM per request; globals must not persist.
	src := `
var counter = 0;
function handle(request) {
	counter++;
	return {body: String(counter)};
}`
	s := NewScript()
	ep := scriptEndpoint(src)

	for i := 0; i < 2; i++ {
		res, err := s.Resolve(context.Background(), scriptReq(t, "/calc"), ep)
		require.NoError(t, err)
		assert.Equal(t, "1", res.Body)
	}
}
