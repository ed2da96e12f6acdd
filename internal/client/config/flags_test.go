package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name        string
		args        []string
		expectPanic bool
		expected    *Config
	}{
		{
			name: "flags override fields",
			args: []string{"cmd", "-a", "http://127.0.0.1:9090", "-t", "tok", "-i", "10"},
			expected: &Config{
				ServerEndpointURL:   "http://127.0.0.1:9090",
				AccessToken:         "tok",
				OnlineCheckInterval: 10 * time.Second,
			},
		},
		{
			name: "unset flags keep existing values",
			args: []string{"cmd", "-d", "other.db"},
			expected: &Config{
				DatabaseDSN: "other.db",
			},
		},
		{
			name:        "malformed interval panics",
			args:        []string{"cmd", "-i", "abc"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			cfg := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg) })
				return
			}

			require.NotPanics(t, func() { parseFlags(cfg) })
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func TestLoadConfig_DefaultsWithoutArgs(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd"}

	cfg := LoadConfig()

	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerEndpointURL)
	assert.Equal(t, "snapsync.db", cfg.DatabaseDSN)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, time.Second, cfg.DebounceWindow)
}
