// Package config handles configuration for the client component, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the snapsync client.
//
// Fields:
//   - ServerEndpointURL: base URL of the metadata API.
//   - DatabaseDSN: path of the local SQLite database.
//   - AccessToken: bearer token issued by the external auth service.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DebounceWindow: how long mutation bursts are batched before a pass.
type Config struct {
	ServerEndpointURL   string
	DatabaseDSN         string
	AccessToken         string
	OnlineCheckInterval time.Duration
	DebounceWindow      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointURL = "http://127.0.0.1:8080"
	c.DatabaseDSN = "snapsync.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.DebounceWindow = time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
