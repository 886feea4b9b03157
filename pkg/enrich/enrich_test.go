package enrich

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockrelay/mockrelay/pkg/resolver"
)

func testRequest(t *testing.T) *resolver.Request {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/pets/42?limit=5&limit=10", nil)
	r.Header.Set("X-Tenant", "acme")
	return resolver.NewRequest(r, map[string]string{"id": "42"}, `{"name":"rex"}`)
}

func TestEnrichRequestTokens(t *testing.T) {
	t.Parallel()

	req := testRequest(t)

	out, err := Enrich(`id=${path.id} limit=${query.limit} tenant=${header.X-Tenant} in=${body}`, req)
	require.NoError(t, err)
	assert.Equal(t, `id=42 limit=5 tenant=acme in={"name":"rex"}`, out)
}

func TestEnrichGeneratedTokens(t *testing.T) {
	t.Parallel()

	req := testRequest(t)

	out, err := Enrich("${uuid}", req)
	require.NoError(t, err)
	_, parseErr := uuid.Parse(out)
	assert.NoError(t, parseErr)

	before := time.Now().UnixMilli()
	out, err = Enrich("${timestamp}", req)
	require.NoError(t, err)
	ts, parseIntErr := strconv.ParseInt(out, 10, 64)
	require.NoError(t, parseIntErr)
	assert.GreaterOrEqual(t, ts, before)
}

func TestEnrichUnresolvableToken(t *testing.T) {
	t.Parallel()

	req := testRequest(t)

	_, err := Enrich("hello ${path.missing}", req)
	require.Error(t, err)
	var tokenErr *Error
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, "path.missing", tokenErr.Token)
}

func TestEnrichNoTokens(t *testing.T) {
	t.Parallel()

	out, err := Enrich("plain body", testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "plain body", out)
}
