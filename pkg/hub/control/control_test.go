package control

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-hub/proxy/pkg/hub/config"
)

func writeCompose(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNew_SeedsRegistryFromCompose(t *testing.T) {
	t.Parallel()

	path := writeCompose(t, `
services:
  search:
    ports:
      - "18081:8080"
`)
	cfg := config.Defaults()
	cfg.ComposeFile = path
	cfg.Port = freePort(t)

	in, err := New(cfg)
	require.NoError(t, err)

	names := in.Registry().Names()
	assert.Contains(t, names, "search")
}

func TestNew_MissingComposeFileStartsEmpty(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.ComposeFile = filepath.Join(t.TempDir(), "missing.yml")
	cfg.Port = freePort(t)

	in, err := New(cfg)
	require.NoError(t, err)
	assert.Empty(t, in.Registry().Names())
}

func TestRun_ServesHealthImmediately(t *testing.T) {
	t.Parallel()

	path := writeCompose(t, `
services:
  search:
    ports:
      - "18082:8080"
`)
	cfg := config.Defaults()
	cfg.ComposeFile = path
	cfg.Port = freePort(t)
	cfg.ProbeIntervalSeconds = 3600
	cfg.ShutdownGrace = time.Second

	in, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Port))
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}

func TestReload_RemovesAbsentAndAddsNew(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
services:
  a:
    ports:
      - "18083:8080"
`), 0o644))

	cfg := config.Defaults()
	cfg.ComposeFile = path
	cfg.Port = freePort(t)

	in, err := New(cfg)
	require.NoError(t, err)
	require.Contains(t, in.Registry().Names(), "a")

	require.NoError(t, os.WriteFile(path, []byte(`
services:
  b:
    ports:
      - "18084:8080"
`), 0o644))

	require.NoError(t, in.Reload())
	names := in.Registry().Names()
	assert.NotContains(t, names, "a")
	assert.Contains(t, names, "b")
}

func TestReload_MalformedDocumentLeavesRegistryIntact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
services:
  a:
    ports:
      - "18085:8080"
`), 0o644))

	cfg := config.Defaults()
	cfg.ComposeFile = path
	cfg.Port = freePort(t)

	in, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(": not valid yaml :: ["), 0o644))
	require.Error(t, in.Reload())
	assert.Contains(t, in.Registry().Names(), "a")
}
