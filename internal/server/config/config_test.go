package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"cmd", "-a", ":9090", "-d", "postgres://x", "-k", "hmac"}

	cfg := &Config{}
	parseFlags(cfg)

	assert.Equal(t, ":9090", cfg.EndpointAddr)
	assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
	assert.Equal(t, "hmac", cfg.SecretKey)
}

func Test_parseJson_OverlaysSelectedFields(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(map[string]any{
		"endpoint_addr":       ":7070",
		"s3_bucket":           "media",
		"tombstone_retention": "72h",
		"purge_interval":      "1h",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))

	os.Args = []string{"cmd", "-config", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":7070", cfg.EndpointAddr)
	assert.Equal(t, "media", cfg.S3Bucket)
	assert.Equal(t, 72*time.Hour, cfg.TombstoneRetention)
	assert.Equal(t, time.Hour, cfg.PurgeInterval)
	// untouched fields keep their defaults
	assert.Equal(t, "us-east-1", cfg.S3Region)
}

func TestLoadConfig_DefaultsWithoutArgs(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd"}

	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 30*24*time.Hour, cfg.TombstoneRetention)
	assert.Equal(t, 24*time.Hour, cfg.PurgeInterval)
}
