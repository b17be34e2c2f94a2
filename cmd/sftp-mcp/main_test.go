package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filepulse/sftp-mcp-server/internal/config"
	"github.com/filepulse/sftp-mcp-server/internal/errs"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), Version)
}

func TestServeFailsWithoutCredentials(t *testing.T) {
	t.Setenv(config.EnvHost, "")
	t.Setenv(config.EnvUsername, "alice")
	t.Setenv(config.EnvPassword, "s3cret")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve"})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConfiguration))
	assert.Contains(t, err.Error(), config.EnvHost)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv(config.EnvHost, "files.example.com")
	t.Setenv(config.EnvUsername, "alice")
	t.Setenv(config.EnvPassword, "s3cret")
	t.Setenv(config.EnvHostKeyPolicy, string(config.HostKeyAcceptAll))
	t.Setenv("MCP_TRANSPORT", "")

	cfg, err := loadConfig(&serveOptions{
		transport:   "http",
		listenAddr:  "127.0.0.1:9999",
		metricsAddr: ":9100",
		logLevel:    "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, config.TransportHTTP, cfg.Transport)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = loadConfig(&serveOptions{transport: "smoke-signals"})
	assert.Error(t, err)
}

func TestServeFailsOnUnreachableHost(t *testing.T) {
	t.Setenv(config.EnvHost, "127.0.0.1:1")
	t.Setenv(config.EnvUsername, "alice")
	t.Setenv(config.EnvPassword, "s3cret")
	t.Setenv(config.EnvHostKeyPolicy, string(config.HostKeyAcceptAll))
	t.Setenv(config.EnvDialTimeout, "2s")
	t.Setenv(config.EnvAllowDisconnected, "false")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("MCP_TRANSPORT", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve"})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConnection))
}
