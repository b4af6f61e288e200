package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "config.json", cfg.ConfigPath)
	assert.Equal(t, "bin/v2ray", cfg.Engine.Binary)
	assert.Equal(t, "v2fly/v2ray-core", cfg.Engine.Repo)
	assert.Equal(t, 1080, cfg.Inbounds.SocksPort)
	assert.Equal(t, 10*time.Second, cfg.Probe.Timeout())
	assert.Equal(t, 8, cfg.Probe.Concurrency)
	assert.Equal(t, "profiles.db", cfg.Storage.Path)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
config_path: /tmp/engine.json
log_level: warning
engine:
  binary: xray
  repo: XTLS/Xray-core
inbounds:
  socks_port: 2080
probe:
  timeout_seconds: 3
  concurrency: 2
geoip:
  asn_path: GeoLite2-ASN.mmdb
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/engine.json", cfg.ConfigPath)
	assert.Equal(t, "warning", cfg.LogLevel)
	assert.Equal(t, "xray", cfg.Engine.Binary)
	assert.Equal(t, "XTLS/Xray-core", cfg.Engine.Repo)
	assert.Equal(t, 2080, cfg.Inbounds.SocksPort)

	// Untouched keys keep their defaults.
	assert.Equal(t, 1081, cfg.Inbounds.HTTPPort)
	assert.Equal(t, "bin", cfg.Engine.InstallDir)
	assert.Equal(t, 3*time.Second, cfg.Probe.Timeout())
	assert.Equal(t, "GeoLite2-ASN.mmdb", cfg.GeoIP.ASNPath)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
