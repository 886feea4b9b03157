package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, 8001, cfg.HTTPPort)
	assert.Equal(t, 30, cfg.UpstreamTimeout)
	assert.Equal(t, 1000, cfg.MaxLogEntries)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mockrelay.yaml")
	content := `
httpPort: 9090
maxConns: 64
redirectBase: http://backend.internal:8080
definitions: ./mocks.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 64, cfg.MaxConns)
	assert.Equal(t, "http://backend.internal:8080", cfg.RedirectBase)
	assert.Equal(t, "./mocks.yaml", cfg.Definitions)
	// Unset fields keep defaults.
	assert.Equal(t, 30, cfg.ReadTimeout)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("httpPort: [oops"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.HTTPPort = 70000
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxConns = -1
	assert.Error(t, cfg.Validate())
}
