package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testYAML = `
main:
  strict_routes: false
frontend:
  listen_port: 9090
  connections_limit: 50
  idle_timeout_ms: 2500
  request_timeout_ms: 1000
  compression: false
static:
  root: /does/not/exist
  cache_ttl_ms: 60000
logging:
  log_level: debug
metrics:
  listen_port: 0
tracing:
  provider: stdout
  service_name: demo
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "vala.yaml")
	require.NoError(t, os.WriteFile(fp, []byte(content), 0o644))
	return fp
}

func TestLoadDefaults(t *testing.T) {
	c, flags, err := Load("vala", []string{})
	require.NoError(t, err)
	require.Equal(t, DefaultConfigPath, flags.ConfigPath)
	require.True(t, c.Main.StrictRoutes)
	require.Equal(t, DefaultListenPort, c.Frontend.ListenPort)
	require.Equal(t, time.Duration(DefaultIdleTimeoutMS)*time.Millisecond, c.Frontend.IdleTimeout)
	require.Zero(t, c.Frontend.RequestTimeout)
	require.True(t, c.Frontend.Compression)
	require.Equal(t, "info", c.Logging.LogLevel)
	require.Equal(t, "none", c.Tracing.Provider)
}

func TestLoadFile(t *testing.T) {
	fp := writeConfig(t, testYAML)
	c, _, err := Load("vala", []string{"-config", fp})
	require.NoError(t, err)
	require.False(t, c.Main.StrictRoutes)
	require.Equal(t, 9090, c.Frontend.ListenPort)
	require.Equal(t, 50, c.Frontend.ConnectionsLimit)
	require.Equal(t, 2500*time.Millisecond, c.Frontend.IdleTimeout)
	require.Equal(t, time.Second, c.Frontend.RequestTimeout)
	require.False(t, c.Frontend.Compression)
	require.Equal(t, time.Minute, c.Static.CacheTTL)
	require.Equal(t, "debug", c.Logging.LogLevel)
	require.Equal(t, 0, c.Metrics.ListenPort)
	require.Equal(t, "stdout", c.Tracing.Provider)
	require.Equal(t, "demo", c.Tracing.ServiceName)
	// untouched keys keep defaults
	require.Equal(t, DefaultMaxBodyBytes, int(c.Frontend.MaxBodyBytes))
	require.Len(t, c.LoaderWarnings, 1)
}

func TestLoadMissingCustomFile(t *testing.T) {
	_, _, err := Load("vala", []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestLoadBadFlag(t *testing.T) {
	_, _, err := Load("vala", []string{"-not-a-flag"})
	require.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	c, flags, err := Load("vala", []string{"-version"})
	require.NoError(t, err)
	require.Nil(t, c)
	require.True(t, flags.PrintVersion)
}

func TestPrecedence(t *testing.T) {
	fp := writeConfig(t, testYAML)
	t.Setenv(evPort, "7070")
	t.Setenv(evLogLevel, "warn")
	t.Setenv(evStatic, "/env/static")

	c, _, err := Load("vala", []string{"-config", fp, "-log-level", "error", "-hostname", "127.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, 7070, c.Frontend.ListenPort, "env overrides file")
	require.Equal(t, "error", c.Logging.LogLevel, "flag overrides env")
	require.Equal(t, "/env/static", c.Static.Root)
	require.Equal(t, "127.0.0.1", c.Frontend.ListenAddress)

	c, _, err = Load("vala", []string{"-config", fp, "-port", "6060", "-static", "./public", "-metrics-port", "9999"})
	require.NoError(t, err)
	require.Equal(t, 6060, c.Frontend.ListenPort)
	require.Equal(t, "./public", c.Static.Root)
	require.Equal(t, 9999, c.Metrics.ListenPort)
}

func TestValidate(t *testing.T) {
	c := NewConfig()
	c.Frontend.ListenPort = 70000
	require.ErrorIs(t, c.Validate(), ErrInvalidPort)

	c = NewConfig()
	c.Metrics.ListenPort = -1
	require.ErrorIs(t, c.Validate(), ErrInvalidPort)

	c = NewConfig()
	c.Tracing.Provider = "jaeger"
	require.ErrorIs(t, c.Validate(), ErrInvalidTracingProvider)

	c = NewConfig()
	c.Frontend.MaxHeaderBytes = 0
	require.NoError(t, c.Validate())
	require.Equal(t, DefaultMaxHeaderBytes, c.Frontend.MaxHeaderBytes)
}

func TestString(t *testing.T) {
	c := NewConfig()
	s := c.String()
	require.Contains(t, s, "strict_routes: true")
	require.Contains(t, s, "listen_port: 8080")
}
